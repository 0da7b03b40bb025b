package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"homematch/propertysearch/internal/domain"
	"homematch/propertysearch/internal/metrics"
	"homematch/propertysearch/internal/settings"
)

// maxConcurrentProviders limits simultaneous provider queries so a large
// configured set cannot exhaust sockets or trip upstream rate limits.
const maxConcurrentProviders = 10

// defaultAdapterTimeout bounds each provider call. A slow upstream becomes a
// per-provider error entry instead of stalling the whole aggregation.
const defaultAdapterTimeout = 8 * time.Second

// Service aggregates listing searches across the active provider adapters.
type Service struct {
	registry      *Registry
	searchStore   settings.SearchSettingsStore
	cache         *ResultCache
	timeout       time.Duration
	cacheDisabled bool
	logger        *slog.Logger

	providerRPS   rate.Limit
	providerBurst int
	limiterMu     sync.Mutex
	limiters      map[domain.ProviderKey]*rate.Limiter

	healthMu sync.Mutex
	health   map[domain.ProviderKey]*providerHealth
}

type ServiceOption func(*Service)

func WithCache(cache *ResultCache) ServiceOption {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

func WithAdapterTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithProviderRateLimit(rps float64, burst int) ServiceOption {
	return func(s *Service) {
		if rps > 0 {
			s.providerRPS = rate.Limit(rps)
		}
		if burst > 0 {
			s.providerBurst = burst
		}
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(registry *Registry, searchStore settings.SearchSettingsStore, opts ...ServiceOption) *Service {
	svc := &Service{
		registry:      registry,
		searchStore:   searchStore,
		timeout:       defaultAdapterTimeout,
		logger:        slog.Default(),
		providerRPS:   rate.Limit(5),
		providerBurst: 5,
		limiters:      make(map[domain.ProviderKey]*rate.Limiter),
		health:        make(map[domain.ProviderKey]*providerHealth),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// providerOutcome is the settled result of one adapter call. Exactly one of
// page/err is meaningful; every queried adapter produces exactly one outcome.
type providerOutcome struct {
	key  domain.ProviderKey
	page domain.ProviderPage
	err  error
}

// Search fans the request out to every active provider and folds the settled
// outcomes into one aggregated result. Provider failures never fail the
// aggregation; only an empty adapter set is terminal, reported both in the
// result body and as ErrNoProviders.
func (s *Service) Search(ctx context.Context, params domain.SearchParams) (domain.AggregatedResult, error) {
	startedAt := time.Now()
	params = normalizeParams(params)

	searchSettings := s.loadSearchSettings(ctx)

	adapters := s.registry.BuildAdapters(ctx)
	if len(adapters) == 0 {
		result := domain.AggregatedResult{
			Success:          false,
			Properties:       []domain.Listing{},
			TotalByProvider:  map[domain.ProviderKey]int{},
			Errors:           map[string]string{domain.ErrorKeyGeneral: "no providers are configured and enabled"},
			ProvidersQueried: []domain.ProviderKey{},
			Settings:         searchSettings,
			ElapsedMS:        time.Since(startedAt).Milliseconds(),
		}
		return result, ErrNoProviders
	}

	queried := make([]domain.ProviderKey, len(adapters))
	for i, adapter := range adapters {
		queried[i] = adapter.Key()
	}

	cacheKey := buildCacheKey(params, queried, searchSettings)
	if s.cache != nil && !s.cacheDisabled && !params.NoCache {
		if cached, ok := s.cache.Get(ctx, cacheKey); ok {
			cached.ElapsedMS = time.Since(startedAt).Milliseconds()
			return cached, nil
		}
	}

	perProvider := LimitPerProvider(searchSettings, len(adapters))
	outcomes := s.queryProviders(ctx, adapters, params, perProvider)

	pages := make([][]domain.Listing, 0, len(outcomes))
	totals := make(map[domain.ProviderKey]int, len(outcomes))
	errorsByKey := make(map[string]string)
	for _, outcome := range outcomes {
		if outcome.err != nil {
			errorsByKey[string(outcome.key)] = outcome.err.Error()
			continue
		}
		pages = append(pages, outcome.page.Listings)
		total := outcome.page.Total
		if total == 0 {
			total = len(outcome.page.Listings)
		}
		totals[outcome.key] = total
	}

	merged := MergeResults(pages...)
	sortListings(merged, params.SortBy, params.SortOrder)
	if searchSettings.MaxPropertiesTotal > 0 && len(merged) > searchSettings.MaxPropertiesTotal {
		merged = merged[:searchSettings.MaxPropertiesTotal]
	}

	result := domain.AggregatedResult{
		Success:          len(merged) > 0 || len(errorsByKey) == 0,
		Properties:       merged,
		TotalByProvider:  totals,
		ProvidersQueried: queried,
		Settings:         searchSettings,
		ElapsedMS:        time.Since(startedAt).Milliseconds(),
	}
	if len(errorsByKey) > 0 {
		result.Errors = errorsByKey
	}

	s.logger.Info("search aggregated",
		slog.Int("providers", len(adapters)),
		slog.Int("failed", len(errorsByKey)),
		slog.Int("listings", len(merged)),
		slog.Int64("elapsedMs", result.ElapsedMS),
	)

	if s.cache != nil && !s.cacheDisabled && !params.NoCache {
		s.cache.Set(ctx, cacheKey, result)
	}
	return result, nil
}

// SearchLocations runs one aggregated search per city and folds the results
// into a single response, deduplicating listings that appear in more than
// one city's result set.
func (s *Service) SearchLocations(ctx context.Context, params domain.SearchParams, cities []string) (domain.AggregatedResult, error) {
	trimmed := make([]string, 0, len(cities))
	for _, city := range cities {
		if city = strings.TrimSpace(city); city != "" {
			trimmed = append(trimmed, city)
		}
	}
	if len(trimmed) == 0 {
		return s.Search(ctx, params)
	}

	startedAt := time.Now()
	pages := make([][]domain.Listing, 0, len(trimmed))
	totals := make(map[domain.ProviderKey]int)
	errorsByKey := make(map[string]string)
	seenQueried := make(map[domain.ProviderKey]struct{})
	queried := make([]domain.ProviderKey, 0, 4)
	var folded domain.SearchSettings

	for _, city := range trimmed {
		cityParams := params
		cityParams.City = city
		result, err := s.Search(ctx, cityParams)
		if err != nil {
			return result, err
		}
		pages = append(pages, result.Properties)
		for key, total := range result.TotalByProvider {
			totals[key] += total
		}
		for key, message := range result.Errors {
			errorsByKey[key] = message
		}
		for _, key := range result.ProvidersQueried {
			if _, ok := seenQueried[key]; !ok {
				seenQueried[key] = struct{}{}
				queried = append(queried, key)
			}
		}
		folded = result.Settings
	}

	merged := MergeResults(pages...)
	normalized := normalizeParams(params)
	sortListings(merged, normalized.SortBy, normalized.SortOrder)
	if folded.MaxPropertiesTotal > 0 && len(merged) > folded.MaxPropertiesTotal {
		merged = merged[:folded.MaxPropertiesTotal]
	}

	result := domain.AggregatedResult{
		Success:          len(merged) > 0 || len(errorsByKey) == 0,
		Properties:       merged,
		TotalByProvider:  totals,
		ProvidersQueried: queried,
		Settings:         folded,
		ElapsedMS:        time.Since(startedAt).Milliseconds(),
	}
	if len(errorsByKey) > 0 {
		result.Errors = errorsByKey
	}
	return result, nil
}

func (s *Service) queryProviders(ctx context.Context, adapters []Adapter, params domain.SearchParams, perProvider int) []providerOutcome {
	outcomes := make([]providerOutcome, len(adapters))

	sem := semaphore.NewWeighted(maxConcurrentProviders)
	var wg sync.WaitGroup
	for i, adapter := range adapters {
		wg.Add(1)
		go func(index int, current Adapter) {
			defer wg.Done()

			key := current.Key()
			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[index] = providerOutcome{key: key, err: fmt.Errorf("cancelled before query: %w", err)}
				return
			}
			defer sem.Release(1)

			now := time.Now()
			if blocked, until, lastErr := s.isProviderBlocked(key, now); blocked {
				outcomes[index] = providerOutcome{
					key: key,
					err: fmt.Errorf("provider temporarily unhealthy until %s: %s", until.UTC().Format(time.RFC3339), lastErr),
				}
				return
			}

			if err := s.waitProviderRateLimit(ctx, key); err != nil {
				outcomes[index] = providerOutcome{key: key, err: fmt.Errorf("rate limit wait cancelled: %w", err)}
				return
			}

			providerParams := params
			providerParams.Limit = perProvider
			providerParams.Offset = 0

			providerStartedAt := time.Now()
			page, err := s.callAdapter(ctx, current, providerParams)
			elapsed := time.Since(providerStartedAt)
			s.recordProviderResult(key, err, elapsed, time.Now())

			if err != nil {
				s.logger.Warn("provider query failed",
					slog.String("provider", string(key)),
					slog.Int64("elapsedMs", elapsed.Milliseconds()),
					slog.String("error", err.Error()),
				)
				outcomes[index] = providerOutcome{key: key, err: err}
				return
			}

			metrics.ProviderListingsReturned.WithLabelValues(string(key)).Observe(float64(len(page.Listings)))
			outcomes[index] = providerOutcome{key: key, page: page}
		}(i, adapter)
	}
	wg.Wait()

	return outcomes
}

// callAdapter runs one adapter under its own deadline and converts a panic
// inside the adapter into an ordinary error, so a misbehaving integration
// lands in its error bucket like any other failure.
func (s *Service) callAdapter(ctx context.Context, adapter Adapter, params domain.SearchParams) (page domain.ProviderPage, err error) {
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			page = domain.ProviderPage{}
			err = fmt.Errorf("provider panicked: %v", recovered)
		}
	}()

	page, err = adapter.Search(callCtx, params)
	if err != nil && callCtx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("provider timed out after %s", s.timeout)
	}
	return page, err
}

func (s *Service) waitProviderRateLimit(ctx context.Context, key domain.ProviderKey) error {
	if s.providerRPS <= 0 {
		return nil
	}
	s.limiterMu.Lock()
	limiter, ok := s.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(s.providerRPS, s.providerBurst)
		s.limiters[key] = limiter
	}
	s.limiterMu.Unlock()
	return limiter.Wait(ctx)
}

func (s *Service) loadSearchSettings(ctx context.Context) domain.SearchSettings {
	if s.searchStore == nil {
		return domain.DefaultSearchSettings()
	}
	loaded, err := s.searchStore.Load(ctx)
	if err != nil {
		s.logger.Warn("search settings unavailable, using defaults", slog.String("error", err.Error()))
		return domain.DefaultSearchSettings()
	}
	return domain.NormalizeSearchSettings(loaded)
}

// MergeResults concatenates provider pages and deduplicates by canonical
// listing id, first seen wins. Page order is the provider query order, so
// higher-priority providers keep their version of a colliding listing.
func MergeResults(pages ...[]domain.Listing) []domain.Listing {
	size := 0
	for _, page := range pages {
		size += len(page)
	}
	merged := make([]domain.Listing, 0, size)
	seen := make(map[string]struct{}, size)
	for _, page := range pages {
		for _, listing := range page {
			if _, exists := seen[listing.ID]; exists {
				continue
			}
			seen[listing.ID] = struct{}{}
			merged = append(merged, listing)
		}
	}
	return merged
}

func normalizeParams(params domain.SearchParams) domain.SearchParams {
	if city := strings.TrimSpace(params.City); city != "" {
		params.City = cases.Title(language.AmericanEnglish).String(strings.ToLower(city))
	}
	params.State = strings.ToUpper(strings.TrimSpace(params.State))
	params.ZipCode = strings.TrimSpace(params.ZipCode)
	params.SortBy = domain.NormalizeSortBy(string(params.SortBy))
	if params.SortOrder == "" && params.SortBy == domain.SortByPrice {
		params.SortOrder = domain.SortOrderAsc
	}
	params.SortOrder = domain.NormalizeSortOrder(string(params.SortOrder))
	if params.Status != "" {
		params.Status = domain.NormalizeStatus(string(params.Status))
	}
	if params.Limit < 0 {
		params.Limit = 0
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	return params
}

func sortListings(listings []domain.Listing, sortBy domain.SortBy, sortOrder domain.SortOrder) {
	switch sortBy {
	case domain.SortByPrice:
		sort.SliceStable(listings, func(i, j int) bool {
			if sortOrder == domain.SortOrderDesc {
				return listings[i].Price > listings[j].Price
			}
			return listings[i].Price < listings[j].Price
		})
	default:
		sort.SliceStable(listings, func(i, j int) bool {
			if sortOrder == domain.SortOrderAsc {
				return listings[i].ListDate.Before(listings[j].ListDate)
			}
			return listings[i].ListDate.After(listings[j].ListDate)
		})
	}
}

// Providers lists the effective provider set for the diagnostics surface,
// including disabled and unconfigured entries.
func (s *Service) Providers(ctx context.Context) []domain.ProviderInfo {
	rows := s.registry.Settings(ctx)

	items := make([]domain.ProviderInfo, 0, len(domain.KnownProviders()))
	for _, key := range domain.KnownProviders() {
		adapter, err := s.registry.Adapter(ctx, key)
		row := rows[key]
		info := domain.ProviderInfo{Key: key, Label: string(key)}
		if err == nil {
			info = adapter.Info()
		}
		info.Enabled = row.Enabled
		info.Priority = row.Priority
		items = append(items, info)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority < items[j].Priority
		}
		return items[i].Key < items[j].Key
	})
	return items
}

// TestProvider builds the adapter for one provider and probes the upstream.
func (s *Service) TestProvider(ctx context.Context, key domain.ProviderKey) (domain.ConnectionStatus, error) {
	adapter, err := s.registry.Adapter(ctx, key)
	if err != nil {
		return domain.ConnectionStatus{}, err
	}
	return adapter.TestConnection(ctx), nil
}
