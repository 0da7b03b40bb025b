package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmcloughlin/geohash"

	"homematch/propertysearch/internal/domain"
)

// CanonicalID builds the globally unique listing id. Prefixing with the
// provider key keeps ids from different upstreams from colliding.
func CanonicalID(provider domain.ProviderKey, externalID string) string {
	return string(provider) + "-" + strings.TrimSpace(externalID)
}

// JoinStreet concatenates street-number/name/suffix fragments into one
// address line, skipping empties.
func JoinStreet(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if value := strings.TrimSpace(part); value != "" {
			out = append(out, value)
		}
	}
	return strings.Join(out, " ")
}

// TotalBathrooms folds full and half bathroom counts into a single numeric
// total, the unit every adapter reports in.
func TotalBathrooms(full, half float64) float64 {
	if full < 0 {
		full = 0
	}
	if half < 0 {
		half = 0
	}
	return full + half*0.5
}

// FallbackTitle synthesizes a human-readable title when the upstream omits
// one.
func FallbackTitle(details domain.PropertyDetails, address domain.Address) string {
	propertyType := strings.TrimSpace(details.PropertyType)
	if propertyType == "" {
		propertyType = "Property"
	}
	location := strings.TrimSpace(address.City)
	if location == "" {
		location = strings.TrimSpace(address.State)
	}
	if details.Bedrooms > 0 && location != "" {
		return fmt.Sprintf("%d bed %s in %s", details.Bedrooms, propertyType, location)
	}
	if location != "" {
		return fmt.Sprintf("%s in %s", propertyType, location)
	}
	return propertyType
}

// AttachGeohash derives the listing geohash from its coordinates. Listings
// without coordinates keep an empty geohash.
func AttachGeohash(listing *domain.Listing) {
	if listing == nil || listing.Coordinates == nil {
		return
	}
	c := listing.Coordinates
	if c.Latitude == 0 && c.Longitude == 0 {
		return
	}
	listing.Geohash = geohash.EncodeWithPrecision(c.Latitude, c.Longitude, 9)
}

// Atoi parses loosely-typed numeric strings, returning 0 for anything
// unparseable so canonical numeric fields are never absent.
func Atoi(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return value
}

func ParseFloat(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return value
}

// ParseTime tries the timestamp layouts seen across the upstream APIs and
// returns the zero time when none match.
func ParseTime(raw string) time.Time {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// NonNil returns an empty slice instead of nil so canonical list fields
// serialize as [] rather than null.
func NonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
