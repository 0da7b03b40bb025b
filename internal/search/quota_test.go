package search

import (
	"testing"

	"homematch/propertysearch/internal/domain"
)

func TestLimitPerProvider(t *testing.T) {
	fixed := 25
	cases := []struct {
		name      string
		settings  domain.SearchSettings
		providers int
		want      int
	}{
		{
			name:      "even split",
			settings:  domain.DefaultSearchSettings(),
			providers: 3,
			want:      20,
		},
		{
			name:      "uneven split rounds up",
			settings:  domain.DefaultSearchSettings(),
			providers: 7,
			want:      9,
		},
		{
			name:      "floor applies when split is too thin",
			settings:  domain.DefaultSearchSettings(),
			providers: 20,
			want:      5,
		},
		{
			name: "fixed cap used verbatim",
			settings: domain.SearchSettings{
				MaxPropertiesTotal:       60,
				MaxPropertiesPerProvider: &fixed,
				MaxPropertiesForAI:       60,
				MinPropertiesPerProvider: 5,
			},
			providers: 3,
			want:      25,
		},
		{
			name:      "single provider gets the whole total",
			settings:  domain.DefaultSearchSettings(),
			providers: 1,
			want:      60,
		},
		{
			name:      "zero providers",
			settings:  domain.DefaultSearchSettings(),
			providers: 0,
			want:      0,
		},
		{
			name:      "corrupt settings normalize before math",
			settings:  domain.SearchSettings{MaxPropertiesTotal: -1},
			providers: 3,
			want:      20,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := LimitPerProvider(tc.settings, tc.providers); got != tc.want {
				t.Errorf("LimitPerProvider(%+v, %d) = %d, want %d", tc.settings, tc.providers, got, tc.want)
			}
		})
	}
}
