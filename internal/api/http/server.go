package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"homematch/propertysearch/internal/domain"
	"homematch/propertysearch/internal/search"
	"homematch/propertysearch/internal/settings"
)

type SearchService interface {
	Search(ctx context.Context, params domain.SearchParams) (domain.AggregatedResult, error)
	SearchLocations(ctx context.Context, params domain.SearchParams, cities []string) (domain.AggregatedResult, error)
	Providers(ctx context.Context) []domain.ProviderInfo
	ProviderDiagnostics(ctx context.Context) []domain.ProviderDiagnostics
	TestProvider(ctx context.Context, key domain.ProviderKey) (domain.ConnectionStatus, error)
}

type Server struct {
	search        SearchService
	providerStore settings.ProviderSettingsStore
	searchStore   settings.SearchSettingsStore
	cache         *search.ResultCache
	logger        *slog.Logger
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSettingsStores(providerStore settings.ProviderSettingsStore, searchStore settings.SearchSettingsStore) ServerOption {
	return func(s *Server) {
		s.providerStore = providerStore
		s.searchStore = searchStore
	}
}

// WithResultCache hands the server the shared cache so settings mutations can
// invalidate previously aggregated answers.
func WithResultCache(cache *search.ResultCache) ServerOption {
	return func(s *Server) {
		s.cache = cache
	}
}

func NewServer(searchService SearchService, options ...ServerOption) *Server {
	server := &Server{
		search: searchService,
		logger: slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/search/providers", s.handleProviders)
	mux.HandleFunc("/search/providers/health", s.handleProvidersHealth)
	mux.HandleFunc("/search/providers/test", s.handleProviderTest)
	mux.HandleFunc("/search/settings/providers", s.handleProviderSettings)
	mux.HandleFunc("/search/settings/search", s.handleSearchSettings)
	mux.HandleFunc("/search", s.handleSearch)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "property-search",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, requestIDMiddleware(rateLimitMiddleware(50, 100, metricsMiddleware(traced))))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	params, err := parseSearchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var result domain.AggregatedResult
	if cities := parseCSV(r.URL.Query().Get("cities")); len(cities) > 0 {
		result, err = s.search.SearchLocations(r.Context(), params, cities)
	} else {
		result, err = s.search.Search(r.Context(), params)
	}
	if err != nil {
		if errors.Is(err, search.ErrNoProviders) {
			// The terminal result already carries success:false and the
			// general error entry; surface it with a 503.
			writeJSON(w, http.StatusServiceUnavailable, result)
			return
		}
		s.logger.Warn("search request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
		return
	}

	if len(result.Errors) > 0 {
		failed := make([]string, 0, len(result.Errors))
		for key := range result.Errors {
			failed = append(failed, key)
		}
		s.logger.Warn("search providers partially failed",
			slog.Any("failedProviders", failed),
			slog.Int("listings", len(result.Properties)),
		)
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/providers" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": s.search.Providers(r.Context()),
	})
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/providers/health" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"checkedAt": time.Now().UTC(),
		"items":     s.search.ProviderDiagnostics(r.Context()),
	})
}

func (s *Server) handleProviderTest(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/providers/test" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	provider := domain.ProviderKey(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("provider"))))
	if provider == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "provider is required")
		return
	}

	startedAt := time.Now()
	status, err := s.search.TestProvider(r.Context(), provider)
	elapsedMS := time.Since(startedAt).Milliseconds()
	if err != nil {
		if errors.Is(err, search.ErrUnknownProvider) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		message := err.Error()
		if errors.Is(err, search.ErrNotConfigured) {
			message = "provider is not configured"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"provider":  provider,
			"ok":        false,
			"message":   message,
			"elapsedMs": elapsedMS,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider":  provider,
		"ok":        status.OK,
		"message":   status.Message,
		"elapsedMs": elapsedMS,
	})
}

func (s *Server) handleProviderSettings(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/settings/providers" {
		http.NotFound(w, r)
		return
	}
	if s.providerStore == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "provider settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rows, err := s.providerStore.Load(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to load provider settings")
			return
		}
		items := make([]domain.ProviderSettings, 0, len(domain.KnownProviders()))
		for _, key := range domain.KnownProviders() {
			row, ok := rows[key]
			if !ok {
				row = domain.ProviderSettings{Provider: key}
			}
			items = append(items, redactProviderSettings(row))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPatch, http.MethodPut:
		var payload struct {
			Provider         string             `json:"provider"`
			Enabled          *bool              `json:"enabled"`
			APIKey           *string            `json:"apiKey"`
			APISecret        *string            `json:"apiSecret"`
			AdditionalConfig *map[string]string `json:"additionalConfig"`
			Priority         *int               `json:"priority"`
		}
		if err := decodeJSONBody(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		provider := domain.ProviderKey(strings.ToLower(strings.TrimSpace(payload.Provider)))
		if provider == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "provider is required")
			return
		}
		if !isKnownProvider(provider) {
			writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("unknown provider: %s", provider))
			return
		}

		rows, err := s.providerStore.Load(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to load provider settings")
			return
		}
		row, ok := rows[provider]
		if !ok {
			row = domain.ProviderSettings{Provider: provider}
		}
		if payload.Enabled != nil {
			row.Enabled = *payload.Enabled
		}
		if payload.APIKey != nil {
			row.APIKey = strings.TrimSpace(*payload.APIKey)
		}
		if payload.APISecret != nil {
			row.APISecret = strings.TrimSpace(*payload.APISecret)
		}
		if payload.AdditionalConfig != nil {
			row.AdditionalConfig = *payload.AdditionalConfig
		}
		if payload.Priority != nil {
			row.Priority = *payload.Priority
		}

		if err := s.providerStore.Save(r.Context(), row); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to save provider settings")
			return
		}
		s.cache.Invalidate(r.Context())
		s.logger.Info("provider settings updated",
			slog.String("provider", string(provider)),
			slog.Bool("enabled", row.Enabled),
		)
		writeJSON(w, http.StatusOK, redactProviderSettings(row))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSearchSettings(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/settings/search" {
		http.NotFound(w, r)
		return
	}
	if s.searchStore == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "search settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		loaded, err := s.searchStore.Load(r.Context())
		if err != nil {
			writeJSON(w, http.StatusOK, domain.DefaultSearchSettings())
			return
		}
		writeJSON(w, http.StatusOK, loaded)
	case http.MethodPut, http.MethodPost:
		var payload domain.SearchSettings
		if err := decodeJSONBody(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		normalized := domain.NormalizeSearchSettings(payload)
		if err := s.searchStore.Save(r.Context(), normalized); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to save search settings")
			return
		}
		s.cache.Invalidate(r.Context())
		s.logger.Info("search settings updated",
			slog.Int("maxPropertiesTotal", normalized.MaxPropertiesTotal),
			slog.Int("minPropertiesPerProvider", normalized.MinPropertiesPerProvider),
		)
		writeJSON(w, http.StatusOK, normalized)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// redactProviderSettings hides stored secrets from the read surface while
// still signalling whether they are present.
func redactProviderSettings(row domain.ProviderSettings) domain.ProviderSettings {
	if row.APIKey != "" {
		row.APIKey = "********"
	}
	if row.APISecret != "" {
		row.APISecret = "********"
	}
	return row
}

func isKnownProvider(key domain.ProviderKey) bool {
	for _, known := range domain.KnownProviders() {
		if known == key {
			return true
		}
	}
	return false
}

func parseSearchParams(r *http.Request) (domain.SearchParams, error) {
	q := r.URL.Query()
	var params domain.SearchParams

	params.City = strings.TrimSpace(q.Get("city"))
	params.State = strings.TrimSpace(q.Get("state"))
	params.ZipCode = strings.TrimSpace(q.Get("zipCode"))
	params.PropertyType = strings.TrimSpace(q.Get("propertyType"))

	var err error
	if params.MinPrice, err = parseOptionalFloat(r, "minPrice", 0); err != nil || params.MinPrice < 0 {
		return params, errors.New("invalid minPrice")
	}
	if params.MaxPrice, err = parseOptionalFloat(r, "maxPrice", 0); err != nil || params.MaxPrice < 0 {
		return params, errors.New("invalid maxPrice")
	}
	if params.Bedrooms, err = parseNonNegativeInt(r, "bedrooms", 0); err != nil {
		return params, errors.New("invalid bedrooms")
	}
	if params.Bathrooms, err = parseOptionalFloat(r, "bathrooms", 0); err != nil || params.Bathrooms < 0 {
		return params, errors.New("invalid bathrooms")
	}
	if params.MinSquareFeet, err = parseNonNegativeInt(r, "minSquareFeet", 0); err != nil {
		return params, errors.New("invalid minSquareFeet")
	}
	if params.MaxSquareFeet, err = parseNonNegativeInt(r, "maxSquareFeet", 0); err != nil {
		return params, errors.New("invalid maxSquareFeet")
	}
	if params.Limit, err = parseNonNegativeInt(r, "limit", 0); err != nil {
		return params, errors.New("invalid limit")
	}
	if params.Offset, err = parseNonNegativeInt(r, "offset", 0); err != nil {
		return params, errors.New("invalid offset")
	}

	if status := strings.TrimSpace(q.Get("status")); status != "" {
		params.Status = domain.NormalizeStatus(status)
	}
	params.SortBy = domain.SortBy(strings.TrimSpace(q.Get("sortBy")))
	params.SortOrder = domain.SortOrder(strings.TrimSpace(q.Get("sortOrder")))
	params.NoCache = parseOptionalBool(q.Get("nocache")) || parseOptionalBool(q.Get("noCache"))

	return params, nil
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func parseNonNegativeInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return 0, errors.New("invalid value")
	}
	return parsed, nil
}

func parseOptionalFloat(r *http.Request, key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseOptionalBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
