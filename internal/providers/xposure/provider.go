package xposure

import (
	"context"
	"sort"
	"strings"

	"homematch/propertysearch/internal/domain"
	"homematch/propertysearch/internal/providers/common"
)

// Provider serves listings from a local Xposure inventory. It needs no
// credentials and is always configured; filtering and sorting happen in
// memory against the seeded dataset.
type Provider struct {
	listings []domain.Listing
}

type Config struct {
	// Listings overrides the built-in sample inventory, mainly for tests.
	Listings []domain.Listing
}

func NewProvider(cfg Config) *Provider {
	listings := cfg.Listings
	if listings == nil {
		listings = seedListings()
	}
	return &Provider{listings: listings}
}

func (p *Provider) Key() domain.ProviderKey {
	return domain.ProviderXposure
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Key:        p.Key(),
		Label:      "Xposure",
		Kind:       "local",
		Configured: true,
	}
}

func (p *Provider) Search(ctx context.Context, params domain.SearchParams) (domain.ProviderPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProviderPage{}, err
	}

	matched := make([]domain.Listing, 0, len(p.listings))
	for _, listing := range p.listings {
		if matches(listing, params) {
			matched = append(matched, listing)
		}
	}
	sortListings(matched, params)

	total := len(matched)
	if params.Offset > 0 {
		if params.Offset >= len(matched) {
			matched = matched[:0]
		} else {
			matched = matched[params.Offset:]
		}
	}
	if params.Limit > 0 && len(matched) > params.Limit {
		matched = matched[:params.Limit]
	}

	page := make([]domain.Listing, len(matched))
	copy(page, matched)
	return domain.ProviderPage{Listings: page, Total: total}, nil
}

func (p *Provider) TestConnection(ctx context.Context) domain.ConnectionStatus {
	return domain.ConnectionStatus{OK: true, Message: "local inventory ready"}
}

func matches(listing domain.Listing, params domain.SearchParams) bool {
	if city := strings.TrimSpace(params.City); city != "" && !strings.EqualFold(listing.Address.City, city) {
		return false
	}
	if state := strings.TrimSpace(params.State); state != "" && !strings.EqualFold(listing.Address.State, state) {
		return false
	}
	if zip := strings.TrimSpace(params.ZipCode); zip != "" && listing.Address.ZipCode != zip {
		return false
	}
	if params.MinPrice > 0 && listing.Price < params.MinPrice {
		return false
	}
	if params.MaxPrice > 0 && listing.Price > params.MaxPrice {
		return false
	}
	if propertyType := strings.TrimSpace(params.PropertyType); propertyType != "" &&
		!strings.EqualFold(listing.Details.PropertyType, propertyType) {
		return false
	}
	if params.Bedrooms > 0 && listing.Details.Bedrooms < params.Bedrooms {
		return false
	}
	if params.Bathrooms > 0 && listing.Details.Bathrooms < params.Bathrooms {
		return false
	}
	if params.MinSquareFeet > 0 && listing.Details.SquareFeet < params.MinSquareFeet {
		return false
	}
	if params.MaxSquareFeet > 0 && listing.Details.SquareFeet > params.MaxSquareFeet {
		return false
	}
	if params.Status != "" && listing.Status != params.Status {
		return false
	}
	return true
}

func sortListings(listings []domain.Listing, params domain.SearchParams) {
	switch params.SortBy {
	case domain.SortByPrice:
		sort.SliceStable(listings, func(i, j int) bool {
			if params.SortOrder == domain.SortOrderDesc {
				return listings[i].Price > listings[j].Price
			}
			return listings[i].Price < listings[j].Price
		})
	default:
		sort.SliceStable(listings, func(i, j int) bool {
			return listings[i].ListDate.After(listings[j].ListDate)
		})
	}
}

// seedListings is the built-in Xposure inventory. Every entry goes through
// the same canonical constructors the remote adapters use, so the local
// provider exercises the normalization path too.
func seedListings() []domain.Listing {
	raw := []struct {
		externalID  string
		title       string
		description string
		price       float64
		status      domain.ListingStatus
		street      string
		city        string
		state       string
		zip         string
		lat, lng    float64
		details     domain.PropertyDetails
		features    []string
		amenities   []string
		images      []string
		agent       *domain.Agent
		listDate    string
	}{
		{
			externalID:  "XP-1001",
			description: "Updated craftsman bungalow walking distance to Zilker Park.",
			price:       585000,
			status:      domain.StatusActive,
			street:      "1804 Barton Hills Dr",
			city:        "Austin", state: "TX", zip: "78704",
			lat: 30.2501, lng: -97.7741,
			details: domain.PropertyDetails{
				PropertyType: "House", Bedrooms: 3, Bathrooms: 2,
				SquareFeet: 1680, LotSize: 0.18, YearBuilt: 1952,
			},
			features:  []string{"Hardwood floors", "Renovated kitchen"},
			amenities: []string{"Fenced yard"},
			images:    []string{"https://cdn.xposure.local/xp-1001/main.jpg"},
			agent: &domain.Agent{
				Name: "Dana Willis", Email: "dana@xposure.local",
				Phone: "512-555-0134", Company: "Xposure Realty",
			},
			listDate: "2026-07-12T00:00:00Z",
		},
		{
			externalID:  "XP-1002",
			description: "Corner-unit condo with downtown skyline views and two parking spots.",
			price:       432000,
			status:      domain.StatusActive,
			street:      "360 Nueces St Unit 1208",
			city:        "Austin", state: "TX", zip: "78701",
			lat: 30.2672, lng: -97.7487,
			details: domain.PropertyDetails{
				PropertyType: "Condo", Bedrooms: 2, Bathrooms: 2,
				SquareFeet: 1130, YearBuilt: 2008,
			},
			amenities: []string{"Pool", "Gym", "Concierge"},
			images:    []string{"https://cdn.xposure.local/xp-1002/main.jpg"},
			agent: &domain.Agent{
				Name: "Marcus Lee", Email: "marcus@xposure.local",
				Phone: "512-555-0177", Company: "Xposure Realty",
			},
			listDate: "2026-08-02T00:00:00Z",
		},
		{
			externalID:  "XP-1003",
			description: "New-build townhouse near the Domain with a rooftop terrace.",
			price:       515000,
			status:      domain.StatusPending,
			street:      "11211 Burnet Rd Unit 4",
			city:        "Austin", state: "TX", zip: "78758",
			lat: 30.3916, lng: -97.7209,
			details: domain.PropertyDetails{
				PropertyType: "Townhouse", Bedrooms: 3, Bathrooms: 2.5,
				SquareFeet: 1820, YearBuilt: 2025,
			},
			features: []string{"Rooftop terrace", "EV charger"},
			images:   []string{"https://cdn.xposure.local/xp-1003/main.jpg"},
			listDate: "2026-06-20T00:00:00Z",
		},
		{
			externalID:  "XP-1004",
			description: "Hill country acreage with a remodeled ranch house and workshop.",
			price:       890000,
			status:      domain.StatusActive,
			street:      "204 Creek Bend Trl",
			city:        "Dripping Springs", state: "TX", zip: "78620",
			lat: 30.1902, lng: -98.0867,
			details: domain.PropertyDetails{
				PropertyType: "House", Bedrooms: 4, Bathrooms: 3,
				SquareFeet: 2740, LotSize: 2.4, YearBuilt: 1998,
			},
			features: []string{"Workshop", "Metal roof"},
			images:   []string{"https://cdn.xposure.local/xp-1004/main.jpg"},
			agent: &domain.Agent{
				Name: "Priya Natarajan", Email: "priya@xposure.local",
				Phone: "512-555-0190", Company: "Xposure Realty",
			},
			listDate: "2026-05-30T00:00:00Z",
		},
		{
			externalID:  "XP-1005",
			description: "Starter home on a quiet cul-de-sac, sold furnished.",
			price:       318000,
			status:      domain.StatusSold,
			street:      "7505 Dallum Dr",
			city:        "Austin", state: "TX", zip: "78745",
			lat: 30.1963, lng: -97.7955,
			details: domain.PropertyDetails{
				PropertyType: "House", Bedrooms: 3, Bathrooms: 1,
				SquareFeet: 1240, LotSize: 0.15, YearBuilt: 1974,
			},
			images:   []string{"https://cdn.xposure.local/xp-1005/main.jpg"},
			listDate: "2026-04-11T00:00:00Z",
		},
	}

	listings := make([]domain.Listing, 0, len(raw))
	for _, entry := range raw {
		address := domain.Address{
			Street: entry.street, City: entry.city, State: entry.state,
			ZipCode: entry.zip, Country: "US",
		}
		listing := domain.Listing{
			ID:             common.CanonicalID(domain.ProviderXposure, entry.externalID),
			SourceProvider: domain.ProviderXposure,
			ExternalID:     entry.externalID,
			Title:          common.FallbackTitle(entry.details, address),
			Description:    entry.description,
			Price:          entry.price,
			Status:         entry.status,
			Address:        address,
			Details:        entry.details,
			Features:       common.NonNil(entry.features),
			Amenities:      common.NonNil(entry.amenities),
			Images:         common.NonNil(entry.images),
			Agent:          entry.agent,
			ListDate:       common.ParseTime(entry.listDate),
			ModifiedDate:   common.ParseTime(entry.listDate),
		}
		listing.Coordinates = &domain.Coordinates{Latitude: entry.lat, Longitude: entry.lng}
		common.AttachGeohash(&listing)
		listings = append(listings, listing)
	}
	return listings
}
