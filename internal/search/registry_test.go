package search

import (
	"context"
	"errors"
	"testing"

	"homematch/propertysearch/internal/domain"
	"homematch/propertysearch/internal/settings"
)

func newTestRegistry(t *testing.T, store settings.ProviderSettingsStore, opts ...RegistryOption) *Registry {
	t.Helper()
	return NewRegistry(store, AdapterDeps{}, testLogger(), opts...)
}

func adapterKeys(adapters []Adapter) []domain.ProviderKey {
	keys := make([]domain.ProviderKey, 0, len(adapters))
	for _, adapter := range adapters {
		keys = append(keys, adapter.Key())
	}
	return keys
}

func TestBuildAdaptersSkipsDisabledRows(t *testing.T) {
	store := settings.NewMemoryProviderSettingsStore(
		domain.ProviderSettings{Provider: domain.ProviderXposure, Enabled: false},
		domain.ProviderSettings{Provider: domain.ProviderShowcase, Enabled: true, APIKey: "key"},
	)
	adapters := newTestRegistry(t, store).BuildAdapters(context.Background())

	keys := adapterKeys(adapters)
	if len(keys) != 1 || keys[0] != domain.ProviderShowcase {
		t.Errorf("adapters = %v, disabled xposure should be skipped", keys)
	}
}

func TestBuildAdaptersSkipsUnconfiguredRows(t *testing.T) {
	store := settings.NewMemoryProviderSettingsStore(
		// Enabled but missing credentials: skipped silently, not an error.
		domain.ProviderSettings{Provider: domain.ProviderShowcase, Enabled: true},
		domain.ProviderSettings{Provider: domain.ProviderRealtor, Enabled: true},
		// Bridge has a token but no dataset, which is still unconfigured.
		domain.ProviderSettings{Provider: domain.ProviderBridge, Enabled: true, APIKey: "token"},
		domain.ProviderSettings{Provider: domain.ProviderXposure, Enabled: true},
	)
	adapters := newTestRegistry(t, store).BuildAdapters(context.Background())

	keys := adapterKeys(adapters)
	if len(keys) != 1 || keys[0] != domain.ProviderXposure {
		t.Errorf("adapters = %v, only the credential-free provider should build", keys)
	}
}

func TestBuildAdaptersBridgeNeedsDataset(t *testing.T) {
	store := settings.NewMemoryProviderSettingsStore(
		domain.ProviderSettings{
			Provider:         domain.ProviderBridge,
			Enabled:          true,
			APIKey:           "token",
			AdditionalConfig: map[string]string{"dataset": "actris"},
		},
	)
	adapters := newTestRegistry(t, store).BuildAdapters(context.Background())

	keys := adapterKeys(adapters)
	if len(keys) != 1 || keys[0] != domain.ProviderBridge {
		t.Errorf("adapters = %v, bridge with token and dataset should build", keys)
	}
}

func TestBuildAdaptersOrderedByPriority(t *testing.T) {
	store := settings.NewMemoryProviderSettingsStore(
		domain.ProviderSettings{Provider: domain.ProviderXposure, Enabled: true, Priority: 9},
		domain.ProviderSettings{Provider: domain.ProviderShowcase, Enabled: true, APIKey: "key", Priority: 1},
		domain.ProviderSettings{Provider: domain.ProviderRealtor, Enabled: true, APIKey: "key", Priority: 5},
	)
	adapters := newTestRegistry(t, store).BuildAdapters(context.Background())

	keys := adapterKeys(adapters)
	want := []domain.ProviderKey{domain.ProviderShowcase, domain.ProviderRealtor, domain.ProviderXposure}
	if len(keys) != len(want) {
		t.Fatalf("adapters = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("adapters = %v, want priority order %v", keys, want)
		}
	}
}

func TestStoredRowOverridesDefault(t *testing.T) {
	store := settings.NewMemoryProviderSettingsStore(
		domain.ProviderSettings{Provider: domain.ProviderShowcase, Enabled: false, APIKey: "stored-key"},
	)
	registry := newTestRegistry(t, store, WithDefaults(
		domain.ProviderSettings{Provider: domain.ProviderShowcase, Enabled: true, APIKey: "env-key"},
		domain.ProviderSettings{Provider: domain.ProviderXposure, Enabled: true},
	))

	rows := registry.Settings(context.Background())
	if rows[domain.ProviderShowcase].APIKey != "stored-key" {
		t.Errorf("stored row should win over the default, got %+v", rows[domain.ProviderShowcase])
	}
	if !rows[domain.ProviderXposure].Enabled {
		t.Errorf("default without a stored row should survive, got %+v", rows[domain.ProviderXposure])
	}

	keys := adapterKeys(registry.BuildAdapters(context.Background()))
	if len(keys) != 1 || keys[0] != domain.ProviderXposure {
		t.Errorf("adapters = %v, showcase disabled by the stored row", keys)
	}
}

func TestHasActiveProviders(t *testing.T) {
	ctx := context.Background()
	empty := newTestRegistry(t, settings.NewMemoryProviderSettingsStore())
	if empty.HasActiveProviders(ctx) {
		t.Error("no enabled rows, expected false")
	}

	active := newTestRegistry(t, settings.NewMemoryProviderSettingsStore(
		domain.ProviderSettings{Provider: domain.ProviderXposure, Enabled: true},
	))
	if !active.HasActiveProviders(ctx) {
		t.Error("enabled credential-free row, expected true")
	}
}

func TestAdapterByKeyIgnoresEnabledFlag(t *testing.T) {
	store := settings.NewMemoryProviderSettingsStore(
		domain.ProviderSettings{Provider: domain.ProviderShowcase, Enabled: false, APIKey: "key"},
	)
	registry := newTestRegistry(t, store)

	adapter, err := registry.Adapter(context.Background(), domain.ProviderShowcase)
	if err != nil {
		t.Fatalf("Adapter returned error: %v", err)
	}
	if adapter.Key() != domain.ProviderShowcase {
		t.Errorf("adapter key = %q", adapter.Key())
	}
}

func TestAdapterUnknownKey(t *testing.T) {
	registry := newTestRegistry(t, settings.NewMemoryProviderSettingsStore())
	if _, err := registry.Adapter(context.Background(), "mls-of-narnia"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("err = %v, want ErrUnknownProvider", err)
	}
}

func TestAdapterUnconfigured(t *testing.T) {
	registry := newTestRegistry(t, settings.NewMemoryProviderSettingsStore())
	if _, err := registry.Adapter(context.Background(), domain.ProviderShowcase); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}
