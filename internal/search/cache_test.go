package search

import (
	"context"
	"testing"
	"time"

	"homematch/propertysearch/internal/domain"
)

func sampleResult() domain.AggregatedResult {
	return domain.AggregatedResult{
		Success: true,
		Properties: []domain.Listing{
			listingFixture("alpha", "1", 100000, "2026-08-01T00:00:00Z"),
		},
		TotalByProvider:  map[domain.ProviderKey]int{"alpha": 1},
		ProvidersQueried: []domain.ProviderKey{"alpha"},
		Settings:         domain.DefaultSearchSettings(),
	}
}

func TestResultCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := NewResultCache(time.Minute)

	if _, ok := cache.Get(ctx, "k"); ok {
		t.Fatal("empty cache should miss")
	}

	cache.Set(ctx, "k", sampleResult())
	got, ok := cache.Get(ctx, "k")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if len(got.Properties) != 1 || got.TotalByProvider["alpha"] != 1 {
		t.Errorf("cached result = %+v", got)
	}
}

func TestResultCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := NewResultCache(time.Minute)
	cache.Set(ctx, "k", sampleResult())

	cache.Invalidate(ctx)
	if _, ok := cache.Get(ctx, "k"); ok {
		t.Error("expected miss after Invalidate")
	}
}

func TestResultCacheExpiry(t *testing.T) {
	ctx := context.Background()
	cache := NewResultCache(10 * time.Millisecond)
	cache.Set(ctx, "k", sampleResult())

	time.Sleep(30 * time.Millisecond)
	if _, ok := cache.Get(ctx, "k"); ok {
		t.Error("expected miss after TTL")
	}
}

func TestResultCacheReturnsClones(t *testing.T) {
	ctx := context.Background()
	cache := NewResultCache(time.Minute)
	cache.Set(ctx, "k", sampleResult())

	first, _ := cache.Get(ctx, "k")
	first.Properties[0].Price = 1
	first.TotalByProvider["alpha"] = 99

	second, _ := cache.Get(ctx, "k")
	if second.Properties[0].Price != 100000 {
		t.Errorf("mutating a returned result leaked into the cache: %v", second.Properties[0].Price)
	}
	if second.TotalByProvider["alpha"] != 1 {
		t.Errorf("mutating a returned map leaked into the cache: %v", second.TotalByProvider)
	}
}

func TestResultCacheEvictsOldestBeyondCap(t *testing.T) {
	ctx := context.Background()
	cache := NewResultCache(time.Minute, WithCacheMaxEntries(2))

	cache.Set(ctx, "a", sampleResult())
	time.Sleep(2 * time.Millisecond)
	cache.Set(ctx, "b", sampleResult())
	time.Sleep(2 * time.Millisecond)
	cache.Set(ctx, "c", sampleResult())

	if _, ok := cache.Get(ctx, "a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := cache.Get(ctx, "c"); !ok {
		t.Error("newest entry should survive")
	}
}

func TestNilResultCacheIsSafe(t *testing.T) {
	ctx := context.Background()
	var cache *ResultCache
	if _, ok := cache.Get(ctx, "k"); ok {
		t.Error("nil cache should always miss")
	}
	cache.Set(ctx, "k", sampleResult())
	cache.Invalidate(ctx)
}

func TestBuildCacheKeySensitivity(t *testing.T) {
	base := domain.SearchParams{City: "Austin", MinPrice: 100000}
	providers := []domain.ProviderKey{"alpha", "beta"}
	s := domain.DefaultSearchSettings()

	key := buildCacheKey(base, providers, s)
	if key != buildCacheKey(base, providers, s) {
		t.Error("identical inputs must produce identical keys")
	}

	reordered := buildCacheKey(base, []domain.ProviderKey{"beta", "alpha"}, s)
	if key != reordered {
		t.Error("provider order must not change the key")
	}

	otherCity := base
	otherCity.City = "Dallas"
	if key == buildCacheKey(otherCity, providers, s) {
		t.Error("different params must produce different keys")
	}

	fewer := buildCacheKey(base, []domain.ProviderKey{"alpha"}, s)
	if key == fewer {
		t.Error("different provider sets must produce different keys")
	}

	otherSettings := s
	otherSettings.MaxPropertiesTotal = 30
	if key == buildCacheKey(base, providers, otherSettings) {
		t.Error("different quota settings must produce different keys")
	}
}
