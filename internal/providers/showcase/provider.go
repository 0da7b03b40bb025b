package showcase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"homematch/propertysearch/internal/domain"
	"homematch/propertysearch/internal/providers/common"
)

const (
	defaultEndpoint  = "https://api.showcaseidx.com/v3/listings"
	defaultUserAgent = "homematch-property-search/1.0"
)

type Config struct {
	Endpoint  string
	APIKey    string
	UserAgent string
	Client    *http.Client
}

// Provider queries the Showcase IDX listings API. Auth is a bearer token;
// filters map straight onto REST query parameters.
type Provider struct {
	client    *http.Client
	endpoint  string
	apiKey    string
	userAgent string
}

type apiResponse struct {
	Total    int       `json:"total"`
	Listings []apiItem `json:"listings"`
}

type apiItem struct {
	ID          string  `json:"id"`
	MLSNumber   string  `json:"mls_number"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Status      string  `json:"status"`
	Address     struct {
		StreetNumber string `json:"street_number"`
		StreetName   string `json:"street_name"`
		StreetSuffix string `json:"street_suffix"`
		City         string `json:"city"`
		State        string `json:"state"`
		PostalCode   string `json:"postal_code"`
		Country      string `json:"country"`
	} `json:"address"`
	Location *struct {
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lng"`
	} `json:"location"`
	Property struct {
		Type          string  `json:"type"`
		Bedrooms      int     `json:"bedrooms"`
		BathroomsFull float64 `json:"bathrooms_full"`
		BathroomsHalf float64 `json:"bathrooms_half"`
		SquareFeet    int     `json:"square_feet"`
		LotSizeAcres  float64 `json:"lot_size_acres"`
		YearBuilt     int     `json:"year_built"`
	} `json:"property"`
	Features  []string `json:"features"`
	Amenities []string `json:"amenities"`
	Photos    []struct {
		URL string `json:"url"`
	} `json:"photos"`
	VirtualTourURL string `json:"virtual_tour_url"`
	VideoURL       string `json:"video_url"`
	Agent          *struct {
		Name   string `json:"name"`
		Email  string `json:"email"`
		Phone  string `json:"phone"`
		Office string `json:"office"`
	} `json:"listing_agent"`
	ListDate     string `json:"list_date"`
	ModifiedDate string `json:"modified_date"`
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Provider{
		client:    client,
		endpoint:  endpoint,
		apiKey:    strings.TrimSpace(cfg.APIKey),
		userAgent: userAgent,
	}
}

func (p *Provider) Key() domain.ProviderKey {
	return domain.ProviderShowcase
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Key:        p.Key(),
		Label:      "Showcase IDX",
		Kind:       "idx",
		Configured: p.apiKey != "",
	}
}

func (p *Provider) Search(ctx context.Context, params domain.SearchParams) (domain.ProviderPage, error) {
	uri, err := url.Parse(p.endpoint)
	if err != nil {
		return domain.ProviderPage{}, fmt.Errorf("invalid endpoint: %w", err)
	}

	query := uri.Query()
	if params.City != "" {
		query.Set("city", params.City)
	}
	if params.State != "" {
		query.Set("state", params.State)
	}
	if params.ZipCode != "" {
		query.Set("postal_code", params.ZipCode)
	}
	if params.MinPrice > 0 {
		query.Set("price_min", strconv.FormatFloat(params.MinPrice, 'f', -1, 64))
	}
	if params.MaxPrice > 0 {
		query.Set("price_max", strconv.FormatFloat(params.MaxPrice, 'f', -1, 64))
	}
	if params.PropertyType != "" {
		query.Set("property_type", params.PropertyType)
	}
	if params.Bedrooms > 0 {
		query.Set("beds_min", strconv.Itoa(params.Bedrooms))
	}
	if params.Bathrooms > 0 {
		query.Set("baths_min", strconv.FormatFloat(params.Bathrooms, 'f', -1, 64))
	}
	if params.MinSquareFeet > 0 {
		query.Set("sqft_min", strconv.Itoa(params.MinSquareFeet))
	}
	if params.MaxSquareFeet > 0 {
		query.Set("sqft_max", strconv.Itoa(params.MaxSquareFeet))
	}
	if params.Status != "" {
		query.Set("status", string(params.Status))
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		query.Set("offset", strconv.Itoa(params.Offset))
	}
	uri.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return domain.ProviderPage{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.ProviderPage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return domain.ProviderPage{}, fmt.Errorf("provider HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return domain.ProviderPage{}, err
	}

	var parsed apiResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return domain.ProviderPage{}, fmt.Errorf("unexpected provider payload: %w", err)
	}

	listings := make([]domain.Listing, 0, len(parsed.Listings))
	for _, item := range parsed.Listings {
		listings = append(listings, transformToNormalized(item))
	}
	total := parsed.Total
	if total < len(listings) {
		total = len(listings)
	}
	return domain.ProviderPage{Listings: listings, Total: total}, nil
}

func (p *Provider) TestConnection(ctx context.Context) domain.ConnectionStatus {
	if p.apiKey == "" {
		return domain.ConnectionStatus{OK: false, Message: "api key is not configured"}
	}
	page, err := p.Search(ctx, domain.SearchParams{Limit: 1})
	if err != nil {
		return domain.ConnectionStatus{OK: false, Message: err.Error()}
	}
	return domain.ConnectionStatus{OK: true, Message: fmt.Sprintf("connected, %d listings available", page.Total)}
}

// transformToNormalized maps one Showcase record into the canonical shape.
// It is total: every canonical field gets a value, with zero/empty fallbacks
// for anything the upstream omits.
func transformToNormalized(item apiItem) domain.Listing {
	address := domain.Address{
		Street:  common.JoinStreet(item.Address.StreetNumber, item.Address.StreetName, item.Address.StreetSuffix),
		City:    strings.TrimSpace(item.Address.City),
		State:   strings.TrimSpace(item.Address.State),
		ZipCode: strings.TrimSpace(item.Address.PostalCode),
		Country: strings.TrimSpace(item.Address.Country),
	}
	if address.Country == "" {
		address.Country = "US"
	}

	details := domain.PropertyDetails{
		PropertyType: strings.TrimSpace(item.Property.Type),
		Bedrooms:     item.Property.Bedrooms,
		Bathrooms:    common.TotalBathrooms(item.Property.BathroomsFull, item.Property.BathroomsHalf),
		SquareFeet:   item.Property.SquareFeet,
		LotSize:      item.Property.LotSizeAcres,
		YearBuilt:    item.Property.YearBuilt,
	}
	if details.Bedrooms < 0 {
		details.Bedrooms = 0
	}
	if details.SquareFeet < 0 {
		details.SquareFeet = 0
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = common.FallbackTitle(details, address)
	}

	images := make([]string, 0, len(item.Photos))
	for _, photo := range item.Photos {
		if u := strings.TrimSpace(photo.URL); u != "" {
			images = append(images, u)
		}
	}

	listing := domain.Listing{
		ID:             common.CanonicalID(domain.ProviderShowcase, item.ID),
		SourceProvider: domain.ProviderShowcase,
		ExternalID:     strings.TrimSpace(item.ID),
		MLSNumber:      strings.TrimSpace(item.MLSNumber),
		Title:          title,
		Description:    strings.TrimSpace(item.Description),
		Price:          max(item.Price, 0),
		Status:         mapStatus(item.Status),
		Address:        address,
		Details:        details,
		Features:       common.NonNil(item.Features),
		Amenities:      common.NonNil(item.Amenities),
		Images:         images,
		VirtualTourURL: strings.TrimSpace(item.VirtualTourURL),
		VideoURL:       strings.TrimSpace(item.VideoURL),
		ListDate:       common.ParseTime(item.ListDate),
		ModifiedDate:   common.ParseTime(item.ModifiedDate),
	}

	if item.Location != nil && (item.Location.Latitude != 0 || item.Location.Longitude != 0) {
		listing.Coordinates = &domain.Coordinates{
			Latitude:  item.Location.Latitude,
			Longitude: item.Location.Longitude,
		}
		common.AttachGeohash(&listing)
	}

	if item.Agent != nil && strings.TrimSpace(item.Agent.Name) != "" {
		listing.Agent = &domain.Agent{
			Name:    strings.TrimSpace(item.Agent.Name),
			Email:   strings.TrimSpace(item.Agent.Email),
			Phone:   strings.TrimSpace(item.Agent.Phone),
			Company: strings.TrimSpace(item.Agent.Office),
		}
	}

	return listing
}

func mapStatus(raw string) domain.ListingStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "under contract", "contingent":
		return domain.StatusPending
	case "sold", "closed":
		return domain.StatusSold
	case "withdrawn", "expired", "off market", "off_market":
		return domain.StatusOffMarket
	default:
		return domain.StatusActive
	}
}
