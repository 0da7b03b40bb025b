package realtor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"homematch/propertysearch/internal/domain"
)

const fixtureResponse = `{
	"meta": {"matching_rows": 42},
	"properties": [
		{
			"property_id": "R123",
			"listing_id": "L456",
			"prop_status": "for_sale",
			"prop_type": "single_family",
			"price": 415000,
			"beds": 3,
			"baths_full": 2,
			"baths_half": 1,
			"building_size": {"size": 1980},
			"lot_size": {"size": 0.21, "units": "acres"},
			"year_built": 2011,
			"address": {
				"line": "88 Mesa Dr",
				"city": "Austin",
				"state_code": "TX",
				"postal_code": "78731",
				"lat": 30.3452,
				"lon": -97.7606
			},
			"features": [
				{"category": "Interior", "text": ["Granite Counters", "Walk-In Closet"]},
				{"category": "Exterior", "text": ["Covered Patio"]}
			],
			"photos": [{"href": "https://cdn.example.com/r123-1.jpg"}],
			"agents": [{"name": "Dana Whitfield", "phone": "512-555-0110"}],
			"office": {"name": "Mesa Realty Group"},
			"list_date": "2026-06-12T14:30:00Z"
		}
	]
}`

// The provider always dials https, so the fixture server speaks TLS and the
// provider reuses the server's client which trusts its certificate.
func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)
	return NewProvider(Config{
		Host:   server.Listener.Addr().String(),
		APIKey: "rapid-key",
		Client: server.Client(),
	})
}

func TestSearchSendsRapidAPIHeaders(t *testing.T) {
	var gotKey, gotHost, gotCity, gotSort string
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-RapidAPI-Key")
		gotHost = r.Header.Get("X-RapidAPI-Host")
		gotCity = r.URL.Query().Get("city")
		gotSort = r.URL.Query().Get("sort")
		if r.URL.Path != "/properties/v2/list-for-sale" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fixtureResponse))
	})

	_, err := provider.Search(context.Background(), domain.SearchParams{
		City:      "Austin",
		SortBy:    domain.SortByPrice,
		SortOrder: domain.SortOrderDesc,
	})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if gotKey != "rapid-key" {
		t.Errorf("X-RapidAPI-Key = %q", gotKey)
	}
	if gotHost != provider.host {
		t.Errorf("X-RapidAPI-Host = %q, want %q", gotHost, provider.host)
	}
	if gotCity != "Austin" {
		t.Errorf("city = %q", gotCity)
	}
	if gotSort != "price_high" {
		t.Errorf("sort = %q", gotSort)
	}
}

func TestSearchMapsProperties(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fixtureResponse))
	})

	page, err := provider.Search(context.Background(), domain.SearchParams{})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if page.Total != 42 {
		t.Errorf("total = %d, want 42 from meta.matching_rows", page.Total)
	}
	if len(page.Listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(page.Listings))
	}

	listing := page.Listings[0]
	if listing.ID != "realtor-R123" {
		t.Errorf("canonical id = %q", listing.ID)
	}
	if listing.Status != domain.StatusActive {
		t.Errorf("status = %q, for_sale should map to active", listing.Status)
	}
	if listing.Details.Bathrooms != 2.5 {
		t.Errorf("bathrooms = %v, want 2.5", listing.Details.Bathrooms)
	}
	if len(listing.Features) != 3 {
		t.Errorf("features = %v, want feature texts flattened across categories", listing.Features)
	}
	if listing.Agent == nil || listing.Agent.Company != "Mesa Realty Group" {
		t.Errorf("agent = %+v", listing.Agent)
	}
	if listing.Geohash == "" {
		t.Error("expected geohash from coordinates")
	}
}

func TestSearchNonActiveStatusShortCircuits(t *testing.T) {
	called := false
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	page, err := provider.Search(context.Background(), domain.SearchParams{Status: domain.StatusSold})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if called {
		t.Error("upstream should not be called for non-active status filters")
	}
	if page.Listings == nil || len(page.Listings) != 0 {
		t.Errorf("expected empty non-nil listings, got %#v", page.Listings)
	}
}

func TestMapStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.ListingStatus
	}{
		{"for_sale", domain.StatusActive},
		{"under_contract", domain.StatusPending},
		{"Pending", domain.StatusPending},
		{"recently_sold", domain.StatusSold},
		{"not_for_sale", domain.StatusOffMarket},
		{"", domain.StatusActive},
		{"mystery", domain.StatusActive},
	}
	for _, tc := range cases {
		if got := mapStatus(tc.raw); got != tc.want {
			t.Errorf("mapStatus(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
