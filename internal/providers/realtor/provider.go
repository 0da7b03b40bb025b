package realtor

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
	defaultHost      = "realtor.p.rapidapi.com"
	defaultUserAgent = "homematch-property-search/1.0"
)

type Config struct {
	Host      string
	APIKey    string
	UserAgent string
	Client    *http.Client
}

// Provider queries the Realtor.com API through RapidAPI. Auth is a pair of
// X-RapidAPI headers; the upstream only serves for-sale inventory, so status
// filters other than active return nothing without a network call.
type Provider struct {
	client    *http.Client
	host      string
	apiKey    string
	userAgent string
}

type apiResponse struct {
	Meta struct {
		MatchingRows int `json:"matching_rows"`
	} `json:"meta"`
	Properties []apiProperty `json:"properties"`
}

type apiProperty struct {
	PropertyID   string  `json:"property_id"`
	ListingID    string  `json:"listing_id"`
	PropStatus   string  `json:"prop_status"`
	PropType     string  `json:"prop_type"`
	Price        float64 `json:"price"`
	Beds         int     `json:"beds"`
	BathsFull    float64 `json:"baths_full"`
	BathsHalf    float64 `json:"baths_half"`
	BuildingSize struct {
		Size int `json:"size"`
	} `json:"building_size"`
	LotSize struct {
		Size  float64 `json:"size"`
		Units string  `json:"units"`
	} `json:"lot_size"`
	YearBuilt   int    `json:"year_built"`
	Description string `json:"description"`
	Address     struct {
		Line       string  `json:"line"`
		City       string  `json:"city"`
		StateCode  string  `json:"state_code"`
		PostalCode string  `json:"postal_code"`
		Country    string  `json:"country"`
		Lat        float64 `json:"lat"`
		Lon        float64 `json:"lon"`
	} `json:"address"`
	Features []struct {
		Category string   `json:"category"`
		Text     []string `json:"text"`
	} `json:"features"`
	Photos []struct {
		Href string `json:"href"`
	} `json:"photos"`
	VirtualTour struct {
		Href string `json:"href"`
	} `json:"virtual_tour"`
	Agents []struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"agents"`
	Office struct {
		Name string `json:"name"`
	} `json:"office"`
	ListDate   string `json:"list_date"`
	LastUpdate string `json:"last_update"`
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	host := strings.TrimSpace(cfg.Host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		host = defaultHost
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Provider{
		client:    client,
		host:      host,
		apiKey:    strings.TrimSpace(cfg.APIKey),
		userAgent: userAgent,
	}
}

func (p *Provider) Key() domain.ProviderKey {
	return domain.ProviderRealtor
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Key:        p.Key(),
		Label:      "Realtor.com",
		Kind:       "rapidapi",
		Configured: p.apiKey != "",
	}
}

func (p *Provider) Search(ctx context.Context, params domain.SearchParams) (domain.ProviderPage, error) {
	if params.Status != "" && params.Status != domain.StatusActive {
		return domain.ProviderPage{Listings: []domain.Listing{}}, nil
	}

	query := url.Values{}
	if city := strings.TrimSpace(params.City); city != "" {
		query.Set("city", city)
	}
	if state := strings.TrimSpace(params.State); state != "" {
		query.Set("state_code", state)
	}
	if zip := strings.TrimSpace(params.ZipCode); zip != "" {
		query.Set("postal_code", zip)
	}
	if params.MinPrice > 0 {
		query.Set("price_min", strconv.FormatFloat(params.MinPrice, 'f', -1, 64))
	}
	if params.MaxPrice > 0 {
		query.Set("price_max", strconv.FormatFloat(params.MaxPrice, 'f', -1, 64))
	}
	if propertyType := strings.TrimSpace(params.PropertyType); propertyType != "" {
		query.Set("prop_type", propertyType)
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
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		query.Set("offset", strconv.Itoa(params.Offset))
	}
	switch params.SortBy {
	case domain.SortByPrice:
		if params.SortOrder == domain.SortOrderDesc {
			query.Set("sort", "price_high")
		} else {
			query.Set("sort", "price_low")
		}
	case domain.SortByListDate:
		query.Set("sort", "newest")
	}

	endpoint := "https://" + p.host + "/properties/v2/list-for-sale?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.ProviderPage{}, err
	}
	req.Header.Set("X-RapidAPI-Key", p.apiKey)
	req.Header.Set("X-RapidAPI-Host", p.host)
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

	listings := make([]domain.Listing, 0, len(parsed.Properties))
	for _, property := range parsed.Properties {
		listings = append(listings, transformToNormalized(property))
	}
	total := parsed.Meta.MatchingRows
	if total < len(listings) {
		total = len(listings)
	}
	return domain.ProviderPage{Listings: listings, Total: total}, nil
}

func (p *Provider) TestConnection(ctx context.Context) domain.ConnectionStatus {
	if p.apiKey == "" {
		return domain.ConnectionStatus{OK: false, Message: "API key is not configured"}
	}
	page, err := p.Search(ctx, domain.SearchParams{City: "Austin", State: "TX", Limit: 1})
	if err != nil {
		return domain.ConnectionStatus{OK: false, Message: err.Error()}
	}
	return domain.ConnectionStatus{OK: true, Message: fmt.Sprintf("connected, %d listings available", page.Total)}
}

func transformToNormalized(property apiProperty) domain.Listing {
	address := domain.Address{
		Street:  strings.TrimSpace(property.Address.Line),
		City:    strings.TrimSpace(property.Address.City),
		State:   strings.TrimSpace(property.Address.StateCode),
		ZipCode: strings.TrimSpace(property.Address.PostalCode),
		Country: strings.TrimSpace(property.Address.Country),
	}
	if address.Country == "" {
		address.Country = "US"
	}

	details := domain.PropertyDetails{
		PropertyType: strings.TrimSpace(property.PropType),
		Bedrooms:     property.Beds,
		Bathrooms:    common.TotalBathrooms(property.BathsFull, property.BathsHalf),
		SquareFeet:   property.BuildingSize.Size,
		LotSize:      property.LotSize.Size,
		YearBuilt:    property.YearBuilt,
	}
	if details.Bedrooms < 0 {
		details.Bedrooms = 0
	}
	if details.SquareFeet < 0 {
		details.SquareFeet = 0
	}

	features := []string{}
	for _, group := range property.Features {
		for _, text := range group.Text {
			if text = strings.TrimSpace(text); text != "" {
				features = append(features, text)
			}
		}
	}

	images := make([]string, 0, len(property.Photos))
	for _, photo := range property.Photos {
		if u := strings.TrimSpace(photo.Href); u != "" {
			images = append(images, u)
		}
	}

	listing := domain.Listing{
		ID:             common.CanonicalID(domain.ProviderRealtor, property.PropertyID),
		SourceProvider: domain.ProviderRealtor,
		ExternalID:     strings.TrimSpace(property.PropertyID),
		MLSNumber:      strings.TrimSpace(property.ListingID),
		Title:          common.FallbackTitle(details, address),
		Description:    strings.TrimSpace(property.Description),
		Price:          max(property.Price, 0),
		Status:         mapStatus(property.PropStatus),
		Address:        address,
		Details:        details,
		Features:       features,
		Amenities:      []string{},
		Images:         images,
		VirtualTourURL: strings.TrimSpace(property.VirtualTour.Href),
		ListDate:       common.ParseTime(property.ListDate),
		ModifiedDate:   common.ParseTime(property.LastUpdate),
	}

	if property.Address.Lat != 0 || property.Address.Lon != 0 {
		listing.Coordinates = &domain.Coordinates{
			Latitude:  property.Address.Lat,
			Longitude: property.Address.Lon,
		}
		common.AttachGeohash(&listing)
	}

	if len(property.Agents) > 0 {
		agent := property.Agents[0]
		if name := strings.TrimSpace(agent.Name); name != "" {
			listing.Agent = &domain.Agent{
				Name:    name,
				Email:   strings.TrimSpace(agent.Email),
				Phone:   strings.TrimSpace(agent.Phone),
				Company: strings.TrimSpace(property.Office.Name),
			}
		}
	}

	return listing
}

func mapStatus(raw string) domain.ListingStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "under_contract", "pending":
		return domain.StatusPending
	case "sold", "recently_sold":
		return domain.StatusSold
	case "off_market", "not_for_sale":
		return domain.StatusOffMarket
	default:
		return domain.StatusActive
	}
}
