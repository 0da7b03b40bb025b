package domain

import (
	"strings"
	"time"
)

// ProviderKey identifies one upstream listing source.
type ProviderKey string

const (
	ProviderShowcase ProviderKey = "showcase"
	ProviderBridge   ProviderKey = "bridge"
	ProviderRealtor  ProviderKey = "realtor"
	ProviderXposure  ProviderKey = "xposure"
)

// KnownProviders returns every provider key the registry can build, in
// stable order.
func KnownProviders() []ProviderKey {
	return []ProviderKey{ProviderShowcase, ProviderBridge, ProviderRealtor, ProviderXposure}
}

type ListingStatus string

const (
	StatusActive    ListingStatus = "active"
	StatusPending   ListingStatus = "pending"
	StatusSold      ListingStatus = "sold"
	StatusOffMarket ListingStatus = "off_market"
)

type SortBy string

const (
	SortByPrice    SortBy = "price"
	SortByListDate SortBy = "listDate"
)

type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type PropertyDetails struct {
	PropertyType string  `json:"propertyType"`
	Bedrooms     int     `json:"bedrooms"`
	Bathrooms    float64 `json:"bathrooms"`
	SquareFeet   int     `json:"squareFeet"`
	LotSize      float64 `json:"lotSize,omitempty"`
	YearBuilt    int     `json:"yearBuilt,omitempty"`
}

type Agent struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
}

// Listing is the canonical property record every adapter normalizes into.
// Numeric fields are zero rather than absent so downstream filters never see
// null; Status is always one of the four canonical values.
type Listing struct {
	ID             string          `json:"id"`
	SourceProvider ProviderKey     `json:"sourceProvider"`
	ExternalID     string          `json:"externalId"`
	MLSNumber      string          `json:"mlsNumber,omitempty"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Price          float64         `json:"price"`
	Status         ListingStatus   `json:"status"`
	Address        Address         `json:"address"`
	Coordinates    *Coordinates    `json:"coordinates,omitempty"`
	Geohash        string          `json:"geohash,omitempty"`
	Details        PropertyDetails `json:"details"`
	Features       []string        `json:"features"`
	Amenities      []string        `json:"amenities"`
	Images         []string        `json:"images"`
	VirtualTourURL string          `json:"virtualTourUrl,omitempty"`
	VideoURL       string          `json:"videoUrl,omitempty"`
	Agent          *Agent          `json:"agent,omitempty"`
	ListDate       time.Time       `json:"listDate"`
	ModifiedDate   time.Time       `json:"modifiedDate"`
}

// SearchParams is the canonical search request. Every field is optional:
// adapters silently ignore filters they cannot express natively.
type SearchParams struct {
	City          string        `json:"city,omitempty"`
	State         string        `json:"state,omitempty"`
	ZipCode       string        `json:"zipCode,omitempty"`
	MinPrice      float64       `json:"minPrice,omitempty"`
	MaxPrice      float64       `json:"maxPrice,omitempty"`
	PropertyType  string        `json:"propertyType,omitempty"`
	Bedrooms      int           `json:"bedrooms,omitempty"`
	Bathrooms     float64       `json:"bathrooms,omitempty"`
	MinSquareFeet int           `json:"minSquareFeet,omitempty"`
	MaxSquareFeet int           `json:"maxSquareFeet,omitempty"`
	Status        ListingStatus `json:"status,omitempty"`
	Limit         int           `json:"limit,omitempty"`
	Offset        int           `json:"offset,omitempty"`
	SortBy        SortBy        `json:"sortBy,omitempty"`
	SortOrder     SortOrder     `json:"sortOrder,omitempty"`
	NoCache       bool          `json:"-"`
}

// ProviderPage is one adapter's slice of normalized results.
type ProviderPage struct {
	Listings []Listing
	Total    int
}

type ConnectionStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type ProviderInfo struct {
	Key        ProviderKey `json:"key"`
	Label      string      `json:"label"`
	Kind       string      `json:"kind"`
	Configured bool        `json:"configured"`
	Enabled    bool        `json:"enabled"`
	Priority   int         `json:"priority"`
}

// ErrorKeyGeneral is the Errors map key for failures not attributable to a
// single provider, e.g. the zero-active-providers terminal case.
const ErrorKeyGeneral = "general"

// AggregatedResult is the aggregator's answer to one search. Success is true
// when at least one listing came back or no provider errored; it is false
// only when Properties is empty and at least one provider failed.
type AggregatedResult struct {
	Success          bool                `json:"success"`
	Properties       []Listing           `json:"properties"`
	TotalByProvider  map[ProviderKey]int `json:"totalByProvider"`
	Errors           map[string]string   `json:"errors,omitempty"`
	ProvidersQueried []ProviderKey       `json:"providersQueried"`
	Settings         SearchSettings      `json:"searchSettings"`
	ElapsedMS        int64               `json:"elapsedMs"`
}

type ProviderDiagnostics struct {
	Key                 ProviderKey `json:"key"`
	Label               string      `json:"label"`
	Configured          bool        `json:"configured"`
	ConsecutiveFailures int         `json:"consecutiveFailures"`
	BlockedUntil        *time.Time  `json:"blockedUntil,omitempty"`
	LastError           string      `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time  `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time  `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64       `json:"lastLatencyMs,omitempty"`
	TotalRequests       int64       `json:"totalRequests,omitempty"`
	TotalFailures       int64       `json:"totalFailures,omitempty"`
}

func NormalizeSortBy(raw string) SortBy {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(SortByPrice):
		return SortByPrice
	default:
		return SortByListDate
	}
}

func NormalizeSortOrder(raw string) SortOrder {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(SortOrderAsc):
		return SortOrderAsc
	default:
		return SortOrderDesc
	}
}

// NormalizeStatus maps a canonical status string; anything unrecognized
// defaults to active.
func NormalizeStatus(raw string) ListingStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(StatusPending):
		return StatusPending
	case string(StatusSold):
		return StatusSold
	case string(StatusOffMarket), "offmarket", "off-market":
		return StatusOffMarket
	default:
		return StatusActive
	}
}
