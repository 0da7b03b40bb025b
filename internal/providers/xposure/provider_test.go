package xposure

import (
	"context"
	"testing"

	"homematch/propertysearch/internal/domain"
)

func TestSearchFilters(t *testing.T) {
	provider := NewProvider(Config{})
	ctx := context.Background()

	cases := []struct {
		name   string
		params domain.SearchParams
		want   []string
	}{
		{
			name:   "by city case insensitive",
			params: domain.SearchParams{City: "dripping springs"},
			want:   []string{"XP-1004"},
		},
		{
			name:   "by status",
			params: domain.SearchParams{Status: domain.StatusSold},
			want:   []string{"XP-1005"},
		},
		{
			name:   "by price band",
			params: domain.SearchParams{MinPrice: 400000, MaxPrice: 600000},
			want:   []string{"XP-1002", "XP-1001", "XP-1003"},
		},
		{
			name:   "by bedrooms minimum",
			params: domain.SearchParams{Bedrooms: 4},
			want:   []string{"XP-1004"},
		},
		{
			name:   "no matches",
			params: domain.SearchParams{City: "Houston"},
			want:   []string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := provider.Search(ctx, tc.params)
			if err != nil {
				t.Fatalf("Search returned error: %v", err)
			}
			if page.Total != len(tc.want) {
				t.Errorf("total = %d, want %d", page.Total, len(tc.want))
			}
			got := make([]string, 0, len(page.Listings))
			for _, listing := range page.Listings {
				got = append(got, listing.ExternalID)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("ids = %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("ids = %v, want %v", got, tc.want)
					break
				}
			}
		})
	}
}

func TestSearchDefaultSortIsNewestFirst(t *testing.T) {
	provider := NewProvider(Config{})
	page, err := provider.Search(context.Background(), domain.SearchParams{})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	for i := 1; i < len(page.Listings); i++ {
		if page.Listings[i].ListDate.After(page.Listings[i-1].ListDate) {
			t.Fatalf("listings not sorted by list date descending at index %d", i)
		}
	}
}

func TestSearchPriceSort(t *testing.T) {
	provider := NewProvider(Config{})
	page, err := provider.Search(context.Background(), domain.SearchParams{
		SortBy:    domain.SortByPrice,
		SortOrder: domain.SortOrderDesc,
	})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	for i := 1; i < len(page.Listings); i++ {
		if page.Listings[i].Price > page.Listings[i-1].Price {
			t.Fatalf("listings not sorted by price descending at index %d", i)
		}
	}
}

func TestSearchOffsetAndLimit(t *testing.T) {
	provider := NewProvider(Config{})
	ctx := context.Background()

	full, err := provider.Search(ctx, domain.SearchParams{})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(full.Listings) != 5 {
		t.Fatalf("seed inventory should have 5 listings, got %d", len(full.Listings))
	}

	page, err := provider.Search(ctx, domain.SearchParams{Offset: 1, Limit: 2})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if page.Total != 5 {
		t.Errorf("total = %d, want total before pagination", page.Total)
	}
	if len(page.Listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(page.Listings))
	}
	if page.Listings[0].ID != full.Listings[1].ID {
		t.Errorf("offset slice starts at %q, want %q", page.Listings[0].ID, full.Listings[1].ID)
	}

	beyond, err := provider.Search(ctx, domain.SearchParams{Offset: 50})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(beyond.Listings) != 0 {
		t.Errorf("offset past end should return empty page, got %d listings", len(beyond.Listings))
	}
}

func TestSearchHonorsContextCancellation(t *testing.T) {
	provider := NewProvider(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := provider.Search(ctx, domain.SearchParams{}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestSeedListingsAreNormalized(t *testing.T) {
	for _, listing := range seedListings() {
		if listing.ID == "" || listing.ExternalID == "" {
			t.Errorf("listing missing ids: %+v", listing)
		}
		if listing.Title == "" {
			t.Errorf("listing %s missing synthesized title", listing.ExternalID)
		}
		if listing.Features == nil || listing.Amenities == nil || listing.Images == nil {
			t.Errorf("listing %s has nil collections", listing.ExternalID)
		}
		if listing.Geohash == "" {
			t.Errorf("listing %s missing geohash", listing.ExternalID)
		}
	}
}
