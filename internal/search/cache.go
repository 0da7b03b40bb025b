package search

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"homematch/propertysearch/internal/domain"
	"homematch/propertysearch/internal/metrics"
)

const (
	defaultCacheTTL        = 5 * time.Minute
	defaultCacheMaxEntries = 400
)

type cachedResult struct {
	result    domain.AggregatedResult
	updatedAt time.Time
	expiresAt time.Time
}

// ResultCache stores aggregated search results keyed by the full request
// shape. It is owned by the composition root and handed to both the
// aggregator (get/set) and the settings handlers (invalidate), so a settings
// write never serves stale quota or provider decisions.
type ResultCache struct {
	ttl        time.Duration
	maxEntries int
	redis      *RedisCacheBackend

	mu      sync.Mutex
	entries map[string]*cachedResult
}

type CacheOption func(*ResultCache)

func WithRedisBackend(backend *RedisCacheBackend) CacheOption {
	return func(c *ResultCache) {
		c.redis = backend
	}
}

func WithCacheMaxEntries(limit int) CacheOption {
	return func(c *ResultCache) {
		if limit > 0 {
			c.maxEntries = limit
		}
	}
}

func NewResultCache(ttl time.Duration, opts ...CacheOption) *ResultCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	cache := &ResultCache{
		ttl:        ttl,
		maxEntries: defaultCacheMaxEntries,
		entries:    make(map[string]*cachedResult),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

func (c *ResultCache) Get(ctx context.Context, key string) (domain.AggregatedResult, bool) {
	if c == nil {
		return domain.AggregatedResult{}, false
	}

	if c.redis != nil {
		result, found, err := c.redis.Get(ctx, key)
		if err == nil && found {
			metrics.CacheHitsTotal.Inc()
			c.storeMemory(key, result, time.Now())
			return result, true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return domain.AggregatedResult{}, false
	}
	now := time.Now()
	if now.After(entry.expiresAt) {
		delete(c.entries, key)
		metrics.CacheMissesTotal.Inc()
		return domain.AggregatedResult{}, false
	}
	metrics.CacheHitsTotal.Inc()
	return cloneAggregatedResult(entry.result), true
}

func (c *ResultCache) Set(ctx context.Context, key string, result domain.AggregatedResult) {
	if c == nil {
		return
	}
	if c.redis != nil {
		_ = c.redis.Set(ctx, key, result, c.ttl)
	}
	c.storeMemory(key, result, time.Now())
}

// Invalidate drops every cached result. Called after any settings mutation.
func (c *ResultCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]*cachedResult)
	c.mu.Unlock()

	if c.redis != nil {
		_ = c.redis.Flush(ctx)
	}
}

func (c *ResultCache) storeMemory(key string, result domain.AggregatedResult, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cachedResult{
		result:    cloneAggregatedResult(result),
		updatedAt: now,
		expiresAt: now.Add(c.ttl),
	}
	c.trimLocked(now)
}

func (c *ResultCache) trimLocked(now time.Time) {
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) <= c.maxEntries {
		return
	}

	type pair struct {
		key   string
		entry *cachedResult
	}
	items := make([]pair, 0, len(c.entries))
	for key, entry := range c.entries {
		items = append(items, pair{key: key, entry: entry})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.updatedAt.Before(items[j].entry.updatedAt)
	})
	for i := 0; i < len(items)-c.maxEntries; i++ {
		delete(c.entries, items[i].key)
	}
}

func cloneAggregatedResult(result domain.AggregatedResult) domain.AggregatedResult {
	cloned := result
	if result.Properties != nil {
		cloned.Properties = make([]domain.Listing, len(result.Properties))
		copy(cloned.Properties, result.Properties)
	}
	if result.TotalByProvider != nil {
		cloned.TotalByProvider = make(map[domain.ProviderKey]int, len(result.TotalByProvider))
		for key, total := range result.TotalByProvider {
			cloned.TotalByProvider[key] = total
		}
	}
	if result.Errors != nil {
		cloned.Errors = make(map[string]string, len(result.Errors))
		for key, message := range result.Errors {
			cloned.Errors[key] = message
		}
	}
	if result.ProvidersQueried != nil {
		cloned.ProvidersQueried = append([]domain.ProviderKey(nil), result.ProvidersQueried...)
	}
	return cloned
}

// buildCacheKey folds every field that changes the aggregated answer into the
// key: the request, the active provider set, and the quota settings.
func buildCacheKey(params domain.SearchParams, providerKeys []domain.ProviderKey, s domain.SearchSettings) string {
	names := make([]string, 0, len(providerKeys))
	for _, key := range providerKeys {
		names = append(names, string(key))
	}
	sort.Strings(names)

	perProvider := "auto"
	if s.MaxPropertiesPerProvider != nil {
		perProvider = strconv.Itoa(*s.MaxPropertiesPerProvider)
	}

	return strings.Join([]string{
		"city=" + strings.ToLower(strings.TrimSpace(params.City)),
		"state=" + strings.ToLower(strings.TrimSpace(params.State)),
		"zip=" + strings.TrimSpace(params.ZipCode),
		"pmin=" + strconv.FormatFloat(params.MinPrice, 'f', -1, 64),
		"pmax=" + strconv.FormatFloat(params.MaxPrice, 'f', -1, 64),
		"type=" + strings.ToLower(strings.TrimSpace(params.PropertyType)),
		"beds=" + strconv.Itoa(params.Bedrooms),
		"baths=" + strconv.FormatFloat(params.Bathrooms, 'f', -1, 64),
		"sqmin=" + strconv.Itoa(params.MinSquareFeet),
		"sqmax=" + strconv.Itoa(params.MaxSquareFeet),
		"status=" + string(params.Status),
		"limit=" + strconv.Itoa(params.Limit),
		"offset=" + strconv.Itoa(params.Offset),
		"sb=" + string(params.SortBy),
		"so=" + string(params.SortOrder),
		"total=" + strconv.Itoa(s.MaxPropertiesTotal),
		"pp=" + perProvider,
		"floor=" + strconv.Itoa(s.MinPropertiesPerProvider),
		"p=" + strings.Join(names, ","),
	}, "|")
}
