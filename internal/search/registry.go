package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"homematch/propertysearch/internal/domain"
	"homematch/propertysearch/internal/providers/bridge"
	"homematch/propertysearch/internal/providers/realtor"
	"homematch/propertysearch/internal/providers/showcase"
	"homematch/propertysearch/internal/providers/xposure"
	"homematch/propertysearch/internal/settings"
)

// AdapterDeps carries the shared infrastructure every adapter factory may
// need. The HTTP client is shared so transport-level settings apply to all
// remote providers at once.
type AdapterDeps struct {
	Client    *http.Client
	UserAgent string
}

// AdapterFactory turns one persisted settings row into a live adapter.
// Returning ErrNotConfigured means the row lacks required credentials and the
// provider is skipped rather than treated as a failure.
type AdapterFactory func(row domain.ProviderSettings, deps AdapterDeps) (Adapter, error)

func defaultFactories() map[domain.ProviderKey]AdapterFactory {
	return map[domain.ProviderKey]AdapterFactory{
		domain.ProviderShowcase: func(row domain.ProviderSettings, deps AdapterDeps) (Adapter, error) {
			if strings.TrimSpace(row.APIKey) == "" {
				return nil, ErrNotConfigured
			}
			return showcase.NewProvider(showcase.Config{
				APIKey:    row.APIKey,
				Endpoint:  row.AdditionalConfig["endpoint"],
				UserAgent: deps.UserAgent,
				Client:    deps.Client,
			}), nil
		},
		domain.ProviderBridge: func(row domain.ProviderSettings, deps AdapterDeps) (Adapter, error) {
			if strings.TrimSpace(row.APIKey) == "" {
				return nil, ErrNotConfigured
			}
			dataset := strings.TrimSpace(row.AdditionalConfig["dataset"])
			if dataset == "" {
				return nil, fmt.Errorf("%w: missing dataset", ErrNotConfigured)
			}
			return bridge.NewProvider(bridge.Config{
				AccessToken: row.APIKey,
				Dataset:     dataset,
				BaseURL:     row.AdditionalConfig["endpoint"],
				UserAgent:   deps.UserAgent,
				Client:      deps.Client,
			}), nil
		},
		domain.ProviderRealtor: func(row domain.ProviderSettings, deps AdapterDeps) (Adapter, error) {
			if strings.TrimSpace(row.APIKey) == "" {
				return nil, ErrNotConfigured
			}
			return realtor.NewProvider(realtor.Config{
				APIKey:    row.APIKey,
				Host:      row.AdditionalConfig["host"],
				UserAgent: deps.UserAgent,
				Client:    deps.Client,
			}), nil
		},
		domain.ProviderXposure: func(row domain.ProviderSettings, deps AdapterDeps) (Adapter, error) {
			return xposure.NewProvider(xposure.Config{}), nil
		},
	}
}

// Registry resolves the active adapter set from persisted provider settings.
// Defaults fill in rows the store has never seen, typically env-provided
// credentials, so the service works before any admin writes settings.
type Registry struct {
	factories map[domain.ProviderKey]AdapterFactory
	store     settings.ProviderSettingsStore
	defaults  map[domain.ProviderKey]domain.ProviderSettings
	deps      AdapterDeps
	logger    *slog.Logger
}

type RegistryOption func(*Registry)

func WithFactory(key domain.ProviderKey, factory AdapterFactory) RegistryOption {
	return func(r *Registry) {
		r.factories[key] = factory
	}
}

func WithDefaults(rows ...domain.ProviderSettings) RegistryOption {
	return func(r *Registry) {
		for _, row := range rows {
			if row.Provider != "" {
				r.defaults[row.Provider] = row
			}
		}
	}
}

func NewRegistry(store settings.ProviderSettingsStore, deps AdapterDeps, logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Client == nil {
		deps.Client = &http.Client{}
	}
	registry := &Registry{
		factories: defaultFactories(),
		store:     store,
		defaults:  make(map[domain.ProviderKey]domain.ProviderSettings),
		deps:      deps,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(registry)
	}
	return registry
}

// Settings returns the effective settings row per provider: the stored row
// when one exists, otherwise the default. Store failures degrade to defaults
// with a warning instead of failing the search.
func (r *Registry) Settings(ctx context.Context) map[domain.ProviderKey]domain.ProviderSettings {
	merged := make(map[domain.ProviderKey]domain.ProviderSettings, len(r.defaults))
	for key, row := range r.defaults {
		merged[key] = row
	}
	if r.store != nil {
		stored, err := r.store.Load(ctx)
		if err != nil {
			r.logger.Warn("provider settings unavailable, using defaults", slog.String("error", err.Error()))
		}
		for key, row := range stored {
			merged[key] = row
		}
	}
	return merged
}

// BuildAdapters constructs the adapters for every enabled, configured
// provider. Disabled and unconfigured rows are skipped without failing the
// search; the returned slice is ordered by priority, then key, so dedupe
// precedence stays deterministic.
func (r *Registry) BuildAdapters(ctx context.Context) []Adapter {
	rows := r.Settings(ctx)

	type candidate struct {
		adapter  Adapter
		priority int
	}
	candidates := make([]candidate, 0, len(rows))
	for key, row := range rows {
		if !row.Enabled {
			continue
		}
		factory, ok := r.factories[key]
		if !ok {
			r.logger.Warn("settings row for unknown provider", slog.String("provider", string(key)))
			continue
		}
		adapter, err := factory(row, r.deps)
		if err != nil {
			if !errors.Is(err, ErrNotConfigured) {
				r.logger.Warn("provider adapter construction failed",
					slog.String("provider", string(key)),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		candidates = append(candidates, candidate{adapter: adapter, priority: row.Priority})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority < candidates[j].priority
		}
		return candidates[i].adapter.Key() < candidates[j].adapter.Key()
	})

	adapters := make([]Adapter, 0, len(candidates))
	for _, c := range candidates {
		adapters = append(adapters, c.adapter)
	}
	return adapters
}

// HasActiveProviders reports whether at least one adapter can currently be
// built from the effective settings.
func (r *Registry) HasActiveProviders(ctx context.Context) bool {
	return len(r.BuildAdapters(ctx)) > 0
}

// Adapter builds a single adapter by key regardless of its enabled flag, for
// connection testing from the admin surface.
func (r *Registry) Adapter(ctx context.Context, key domain.ProviderKey) (Adapter, error) {
	factory, ok := r.factories[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, key)
	}
	row, ok := r.Settings(ctx)[key]
	if !ok {
		row = domain.ProviderSettings{Provider: key}
	}
	return factory(row, r.deps)
}
