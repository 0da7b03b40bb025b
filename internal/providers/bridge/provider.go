package bridge

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
	defaultBaseURL   = "https://api.bridgedataoutput.com/api/v2/OData"
	defaultUserAgent = "homematch-property-search/1.0"
)

type Config struct {
	BaseURL     string
	AccessToken string
	// Dataset is the MLS dataset segment of the OData path. Required; the
	// registry treats a missing dataset as "not configured".
	Dataset   string
	UserAgent string
	Client    *http.Client
}

// Provider queries the Zillow Bridge RESO Web API. Filters are expressed as
// an OData $filter string; auth is an access_token query parameter.
type Provider struct {
	client      *http.Client
	baseURL     string
	accessToken string
	dataset     string
	userAgent   string
}

type odataResponse struct {
	Count int          `json:"@odata.count"`
	Value []resoRecord `json:"value"`
}

type resoRecord struct {
	ListingKey              string   `json:"ListingKey"`
	ListingID               string   `json:"ListingId"`
	ListPrice               float64  `json:"ListPrice"`
	StandardStatus          string   `json:"StandardStatus"`
	StreetNumber            string   `json:"StreetNumber"`
	StreetName              string   `json:"StreetName"`
	StreetSuffix            string   `json:"StreetSuffix"`
	City                    string   `json:"City"`
	StateOrProvince         string   `json:"StateOrProvince"`
	PostalCode              string   `json:"PostalCode"`
	Country                 string   `json:"Country"`
	Latitude                float64  `json:"Latitude"`
	Longitude               float64  `json:"Longitude"`
	PropertySubType         string   `json:"PropertySubType"`
	PropertyType            string   `json:"PropertyType"`
	BedroomsTotal           int      `json:"BedroomsTotal"`
	BathroomsFull           float64  `json:"BathroomsFull"`
	BathroomsHalf           float64  `json:"BathroomsHalf"`
	LivingArea              int      `json:"LivingArea"`
	LotSizeAcres            float64  `json:"LotSizeAcres"`
	YearBuilt               int      `json:"YearBuilt"`
	PublicRemarks           string   `json:"PublicRemarks"`
	InteriorFeatures        []string `json:"InteriorFeatures"`
	AssociationAmenities    []string `json:"AssociationAmenities"`
	VirtualTourURLUnbranded string   `json:"VirtualTourURLUnbranded"`
	ListAgentFullName       string   `json:"ListAgentFullName"`
	ListAgentEmail          string   `json:"ListAgentEmail"`
	ListAgentPreferredPhone string   `json:"ListAgentPreferredPhone"`
	ListOfficeName          string   `json:"ListOfficeName"`
	ListingContractDate     string   `json:"ListingContractDate"`
	ModificationTimestamp   string   `json:"ModificationTimestamp"`
	Media                   []struct {
		MediaURL string `json:"MediaURL"`
	} `json:"Media"`
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Provider{
		client:      client,
		baseURL:     baseURL,
		accessToken: strings.TrimSpace(cfg.AccessToken),
		dataset:     strings.TrimSpace(cfg.Dataset),
		userAgent:   userAgent,
	}
}

func (p *Provider) Key() domain.ProviderKey {
	return domain.ProviderBridge
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Key:        p.Key(),
		Label:      "Zillow Bridge",
		Kind:       "reso",
		Configured: p.accessToken != "" && p.dataset != "",
	}
}

func (p *Provider) Search(ctx context.Context, params domain.SearchParams) (domain.ProviderPage, error) {
	uri, err := url.Parse(p.baseURL + "/" + url.PathEscape(p.dataset) + "/Property")
	if err != nil {
		return domain.ProviderPage{}, fmt.Errorf("invalid endpoint: %w", err)
	}

	query := uri.Query()
	query.Set("access_token", p.accessToken)
	query.Set("$count", "true")
	if filter := buildFilter(params); filter != "" {
		query.Set("$filter", filter)
	}
	if params.Limit > 0 {
		query.Set("$top", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		query.Set("$skip", strconv.Itoa(params.Offset))
	}
	if orderBy := buildOrderBy(params); orderBy != "" {
		query.Set("$orderby", orderBy)
	}
	uri.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return domain.ProviderPage{}, err
	}
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

	var parsed odataResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return domain.ProviderPage{}, fmt.Errorf("unexpected provider payload: %w", err)
	}

	listings := make([]domain.Listing, 0, len(parsed.Value))
	for _, record := range parsed.Value {
		listings = append(listings, transformToNormalized(record))
	}
	total := parsed.Count
	if total < len(listings) {
		total = len(listings)
	}
	return domain.ProviderPage{Listings: listings, Total: total}, nil
}

func (p *Provider) TestConnection(ctx context.Context) domain.ConnectionStatus {
	if p.accessToken == "" {
		return domain.ConnectionStatus{OK: false, Message: "access token is not configured"}
	}
	if p.dataset == "" {
		return domain.ConnectionStatus{OK: false, Message: "MLS dataset is not configured"}
	}
	page, err := p.Search(ctx, domain.SearchParams{Limit: 1})
	if err != nil {
		return domain.ConnectionStatus{OK: false, Message: err.Error()}
	}
	return domain.ConnectionStatus{OK: true, Message: fmt.Sprintf("connected to dataset %s, %d listings available", p.dataset, page.Total)}
}

// buildFilter assembles the OData $filter expression. Only filters the RESO
// dialect can express are included; the rest are silently dropped.
func buildFilter(params domain.SearchParams) string {
	clauses := make([]string, 0, 8)
	if city := strings.TrimSpace(params.City); city != "" {
		clauses = append(clauses, fmt.Sprintf("City eq '%s'", escapeODataString(city)))
	}
	if state := strings.TrimSpace(params.State); state != "" {
		clauses = append(clauses, fmt.Sprintf("StateOrProvince eq '%s'", escapeODataString(state)))
	}
	if zip := strings.TrimSpace(params.ZipCode); zip != "" {
		clauses = append(clauses, fmt.Sprintf("PostalCode eq '%s'", escapeODataString(zip)))
	}
	if params.MinPrice > 0 {
		clauses = append(clauses, fmt.Sprintf("ListPrice ge %s", strconv.FormatFloat(params.MinPrice, 'f', -1, 64)))
	}
	if params.MaxPrice > 0 {
		clauses = append(clauses, fmt.Sprintf("ListPrice le %s", strconv.FormatFloat(params.MaxPrice, 'f', -1, 64)))
	}
	if propertyType := strings.TrimSpace(params.PropertyType); propertyType != "" {
		clauses = append(clauses, fmt.Sprintf("PropertySubType eq '%s'", escapeODataString(propertyType)))
	}
	if params.Bedrooms > 0 {
		clauses = append(clauses, fmt.Sprintf("BedroomsTotal ge %d", params.Bedrooms))
	}
	if params.MinSquareFeet > 0 {
		clauses = append(clauses, fmt.Sprintf("LivingArea ge %d", params.MinSquareFeet))
	}
	if params.MaxSquareFeet > 0 {
		clauses = append(clauses, fmt.Sprintf("LivingArea le %d", params.MaxSquareFeet))
	}
	if status := mapStatusFilter(params.Status); status != "" {
		clauses = append(clauses, fmt.Sprintf("StandardStatus eq '%s'", status))
	}
	return strings.Join(clauses, " and ")
}

func buildOrderBy(params domain.SearchParams) string {
	direction := "desc"
	if params.SortOrder == domain.SortOrderAsc {
		direction = "asc"
	}
	switch params.SortBy {
	case domain.SortByPrice:
		return "ListPrice " + direction
	case domain.SortByListDate:
		return "ListingContractDate " + direction
	default:
		return ""
	}
}

func mapStatusFilter(status domain.ListingStatus) string {
	switch status {
	case domain.StatusActive:
		return "Active"
	case domain.StatusPending:
		return "Pending"
	case domain.StatusSold:
		return "Closed"
	case domain.StatusOffMarket:
		return "Withdrawn"
	default:
		return ""
	}
}

// OData string literals escape single quotes by doubling them.
func escapeODataString(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

// transformToNormalized maps one RESO record into the canonical shape. Total
// by construction: every canonical field is assigned, numeric fields fall
// back to 0 and unknown statuses to active.
func transformToNormalized(record resoRecord) domain.Listing {
	externalID := strings.TrimSpace(record.ListingKey)
	if externalID == "" {
		externalID = strings.TrimSpace(record.ListingID)
	}

	address := domain.Address{
		Street:  common.JoinStreet(record.StreetNumber, record.StreetName, record.StreetSuffix),
		City:    strings.TrimSpace(record.City),
		State:   strings.TrimSpace(record.StateOrProvince),
		ZipCode: strings.TrimSpace(record.PostalCode),
		Country: strings.TrimSpace(record.Country),
	}
	if address.Country == "" {
		address.Country = "US"
	}

	propertyType := strings.TrimSpace(record.PropertySubType)
	if propertyType == "" {
		propertyType = strings.TrimSpace(record.PropertyType)
	}
	details := domain.PropertyDetails{
		PropertyType: propertyType,
		Bedrooms:     record.BedroomsTotal,
		Bathrooms:    common.TotalBathrooms(record.BathroomsFull, record.BathroomsHalf),
		SquareFeet:   record.LivingArea,
		LotSize:      record.LotSizeAcres,
		YearBuilt:    record.YearBuilt,
	}
	if details.Bedrooms < 0 {
		details.Bedrooms = 0
	}
	if details.SquareFeet < 0 {
		details.SquareFeet = 0
	}

	images := make([]string, 0, len(record.Media))
	for _, media := range record.Media {
		if u := strings.TrimSpace(media.MediaURL); u != "" {
			images = append(images, u)
		}
	}

	listing := domain.Listing{
		ID:             common.CanonicalID(domain.ProviderBridge, externalID),
		SourceProvider: domain.ProviderBridge,
		ExternalID:     externalID,
		MLSNumber:      strings.TrimSpace(record.ListingID),
		Title:          common.FallbackTitle(details, address),
		Description:    strings.TrimSpace(record.PublicRemarks),
		Price:          max(record.ListPrice, 0),
		Status:         mapStatus(record.StandardStatus),
		Address:        address,
		Details:        details,
		Features:       common.NonNil(record.InteriorFeatures),
		Amenities:      common.NonNil(record.AssociationAmenities),
		Images:         images,
		VirtualTourURL: strings.TrimSpace(record.VirtualTourURLUnbranded),
		ListDate:       common.ParseTime(record.ListingContractDate),
		ModifiedDate:   common.ParseTime(record.ModificationTimestamp),
	}

	if record.Latitude != 0 || record.Longitude != 0 {
		listing.Coordinates = &domain.Coordinates{
			Latitude:  record.Latitude,
			Longitude: record.Longitude,
		}
		common.AttachGeohash(&listing)
	}

	if name := strings.TrimSpace(record.ListAgentFullName); name != "" {
		listing.Agent = &domain.Agent{
			Name:    name,
			Email:   strings.TrimSpace(record.ListAgentEmail),
			Phone:   strings.TrimSpace(record.ListAgentPreferredPhone),
			Company: strings.TrimSpace(record.ListOfficeName),
		}
	}

	return listing
}

func mapStatus(raw string) domain.ListingStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "active under contract":
		return domain.StatusPending
	case "closed", "sold":
		return domain.StatusSold
	case "withdrawn", "expired", "canceled", "cancelled":
		return domain.StatusOffMarket
	default:
		return domain.StatusActive
	}
}
