package common

import (
	"testing"
	"time"

	"homematch/propertysearch/internal/domain"
)

func TestCanonicalID(t *testing.T) {
	cases := []struct {
		provider   domain.ProviderKey
		externalID string
		want       string
	}{
		{domain.ProviderShowcase, "12345", "showcase-12345"},
		{domain.ProviderBridge, "  ABC-1  ", "bridge-ABC-1"},
		{domain.ProviderXposure, "XP-1001", "xposure-XP-1001"},
	}
	for _, tc := range cases {
		if got := CanonicalID(tc.provider, tc.externalID); got != tc.want {
			t.Errorf("CanonicalID(%q, %q) = %q, want %q", tc.provider, tc.externalID, got, tc.want)
		}
	}
}

func TestJoinStreet(t *testing.T) {
	if got := JoinStreet("1804", "Barton Hills", "Dr"); got != "1804 Barton Hills Dr" {
		t.Errorf("unexpected street: %q", got)
	}
	if got := JoinStreet("", "Main", ""); got != "Main" {
		t.Errorf("expected empty fragments skipped, got %q", got)
	}
	if got := JoinStreet("", "  "); got != "" {
		t.Errorf("expected empty result, got %q", got)
	}
}

func TestTotalBathrooms(t *testing.T) {
	cases := []struct {
		full, half, want float64
	}{
		{2, 1, 2.5},
		{0, 0, 0},
		{-3, 2, 1},
		{1, -1, 1},
	}
	for _, tc := range cases {
		if got := TotalBathrooms(tc.full, tc.half); got != tc.want {
			t.Errorf("TotalBathrooms(%v, %v) = %v, want %v", tc.full, tc.half, got, tc.want)
		}
	}
}

func TestFallbackTitle(t *testing.T) {
	cases := []struct {
		name    string
		details domain.PropertyDetails
		address domain.Address
		want    string
	}{
		{
			name:    "beds and city",
			details: domain.PropertyDetails{PropertyType: "House", Bedrooms: 3},
			address: domain.Address{City: "Austin"},
			want:    "3 bed House in Austin",
		},
		{
			name:    "no beds",
			details: domain.PropertyDetails{PropertyType: "Condo"},
			address: domain.Address{City: "Austin"},
			want:    "Condo in Austin",
		},
		{
			name:    "state fallback",
			details: domain.PropertyDetails{PropertyType: "Land"},
			address: domain.Address{State: "TX"},
			want:    "Land in TX",
		},
		{
			name: "everything missing",
			want: "Property",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FallbackTitle(tc.details, tc.address); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAttachGeohash(t *testing.T) {
	listing := domain.Listing{
		Coordinates: &domain.Coordinates{Latitude: 30.2672, Longitude: -97.7431},
	}
	AttachGeohash(&listing)
	if listing.Geohash == "" {
		t.Fatal("expected geohash for valid coordinates")
	}
	if len(listing.Geohash) != 9 {
		t.Errorf("expected 9-character geohash, got %q", listing.Geohash)
	}

	zero := domain.Listing{Coordinates: &domain.Coordinates{}}
	AttachGeohash(&zero)
	if zero.Geohash != "" {
		t.Errorf("expected no geohash for 0,0 coordinates, got %q", zero.Geohash)
	}

	missing := domain.Listing{}
	AttachGeohash(&missing)
	if missing.Geohash != "" {
		t.Errorf("expected no geohash without coordinates, got %q", missing.Geohash)
	}
}

func TestParseTime(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{"2026-07-12T10:30:00Z", time.Date(2026, 7, 12, 10, 30, 0, 0, time.UTC)},
		{"2026-07-12T10:30:00", time.Date(2026, 7, 12, 10, 30, 0, 0, time.UTC)},
		{"2026-07-12 10:30:00", time.Date(2026, 7, 12, 10, 30, 0, 0, time.UTC)},
		{"2026-07-12", time.Date(2026, 7, 12, 0, 0, 0, 0, time.UTC)},
		{"", time.Time{}},
		{"not a date", time.Time{}},
	}
	for _, tc := range cases {
		if got := ParseTime(tc.raw); !got.Equal(tc.want) {
			t.Errorf("ParseTime(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestNonNil(t *testing.T) {
	if got := NonNil(nil); got == nil || len(got) != 0 {
		t.Errorf("expected empty slice, got %#v", got)
	}
	values := []string{"pool"}
	if got := NonNil(values); len(got) != 1 || got[0] != "pool" {
		t.Errorf("expected passthrough, got %#v", got)
	}
}
