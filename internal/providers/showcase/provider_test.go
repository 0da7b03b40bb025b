package showcase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"homematch/propertysearch/internal/domain"
)

const fixtureResponse = `{
	"total": 2,
	"listings": [
		{
			"id": "SC-100",
			"mls_number": "MLS-100",
			"title": "Charming bungalow",
			"description": "Walk to the park.",
			"price": 450000,
			"status": "Active",
			"address": {
				"street_number": "1804",
				"street_name": "Barton Hills",
				"street_suffix": "Dr",
				"city": "Austin",
				"state": "TX",
				"postal_code": "78704"
			},
			"location": {"lat": 30.2501, "lng": -97.7741},
			"property": {
				"type": "House",
				"bedrooms": 3,
				"bathrooms_full": 2,
				"bathrooms_half": 1,
				"square_feet": 1680,
				"lot_size_acres": 0.18,
				"year_built": 1952
			},
			"features": ["Hardwood floors"],
			"photos": [{"url": "https://cdn.example.com/sc-100.jpg"}],
			"listing_agent": {"name": "Dana Willis", "email": "dana@example.com", "phone": "512-555-0134", "office": "Showcase Realty"},
			"list_date": "2026-07-12T00:00:00Z"
		},
		{
			"id": "SC-200",
			"status": "Coming Soon"
		}
	]
}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	provider := NewProvider(Config{
		Endpoint: server.URL,
		APIKey:   "test-key",
		Client:   server.Client(),
	})
	return provider, server
}

func TestSearchMapsListings(t *testing.T) {
	var gotAuth, gotCity, gotPriceMin string
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCity = r.URL.Query().Get("city")
		gotPriceMin = r.URL.Query().Get("price_min")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fixtureResponse))
	})

	page, err := provider.Search(context.Background(), domain.SearchParams{
		City:     "Austin",
		MinPrice: 100000,
		Limit:    20,
	})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotCity != "Austin" {
		t.Errorf("city query param = %q", gotCity)
	}
	if gotPriceMin != "100000" {
		t.Errorf("price_min query param = %q", gotPriceMin)
	}

	if page.Total != 2 || len(page.Listings) != 2 {
		t.Fatalf("expected 2 listings, got total=%d len=%d", page.Total, len(page.Listings))
	}

	first := page.Listings[0]
	if first.ID != "showcase-SC-100" {
		t.Errorf("canonical id = %q", first.ID)
	}
	if first.SourceProvider != domain.ProviderShowcase {
		t.Errorf("source provider = %q", first.SourceProvider)
	}
	if first.Address.Street != "1804 Barton Hills Dr" {
		t.Errorf("street = %q", first.Address.Street)
	}
	if first.Address.Country != "US" {
		t.Errorf("missing country should default to US, got %q", first.Address.Country)
	}
	if first.Details.Bathrooms != 2.5 {
		t.Errorf("bathrooms = %v, want 2.5", first.Details.Bathrooms)
	}
	if first.Geohash == "" {
		t.Error("expected geohash from coordinates")
	}
	if first.Agent == nil || first.Agent.Company != "Showcase Realty" {
		t.Errorf("agent = %+v", first.Agent)
	}
}

func TestSearchNormalizationIsTotal(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fixtureResponse))
	})

	page, err := provider.Search(context.Background(), domain.SearchParams{})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	// The second fixture item omits nearly everything.
	sparse := page.Listings[1]
	if sparse.Price != 0 {
		t.Errorf("missing price should be 0, got %v", sparse.Price)
	}
	if sparse.Details.Bedrooms != 0 || sparse.Details.Bathrooms != 0 || sparse.Details.SquareFeet != 0 {
		t.Errorf("missing details should be 0, got %+v", sparse.Details)
	}
	if sparse.Status != domain.StatusActive {
		t.Errorf("unknown status should default to active, got %q", sparse.Status)
	}
	if sparse.Title == "" {
		t.Error("expected synthesized title for sparse listing")
	}
	if sparse.Features == nil || sparse.Amenities == nil || sparse.Images == nil {
		t.Error("list fields must never be nil")
	}
	if sparse.Coordinates != nil || sparse.Agent != nil {
		t.Errorf("absent nested objects should stay nil, got coords=%v agent=%v", sparse.Coordinates, sparse.Agent)
	}
}

func TestSearchNon200(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad token"}`))
	})

	_, err := provider.Search(context.Background(), domain.SearchParams{})
	if err == nil {
		t.Fatal("expected error for HTTP 401")
	}
}

func TestMapStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.ListingStatus
	}{
		{"Active", domain.StatusActive},
		{"Pending", domain.StatusPending},
		{"Under Contract", domain.StatusPending},
		{"Sold", domain.StatusSold},
		{"Closed", domain.StatusSold},
		{"Withdrawn", domain.StatusOffMarket},
		{"", domain.StatusActive},
		{"garbage", domain.StatusActive},
	}
	for _, tc := range cases {
		if got := mapStatus(tc.raw); got != tc.want {
			t.Errorf("mapStatus(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestInfoConfigured(t *testing.T) {
	if !NewProvider(Config{APIKey: "k"}).Info().Configured {
		t.Error("expected configured with api key")
	}
	if NewProvider(Config{}).Info().Configured {
		t.Error("expected not configured without api key")
	}
}
