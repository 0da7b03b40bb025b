package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"homematch/propertysearch/internal/domain"
)

const (
	defaultProviderSettingsKey = "propertysearch:settings:providers:v1"
	defaultSearchSettingsKey   = "propertysearch:settings:search:v1"
)

// ProviderSettingsStore persists the per-provider configuration rows. Load is
// tolerant: a missing or unreachable store yields an empty map, not an error,
// so the registry falls back to env-provided credentials.
type ProviderSettingsStore interface {
	Load(ctx context.Context) (map[domain.ProviderKey]domain.ProviderSettings, error)
	Save(ctx context.Context, row domain.ProviderSettings) error
}

// SearchSettingsStore persists the singleton quota policy. Load returns
// defaults when no row has ever been written.
type SearchSettingsStore interface {
	Load(ctx context.Context) (domain.SearchSettings, error)
	Save(ctx context.Context, s domain.SearchSettings) error
}

type RedisProviderSettingsStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisProviderSettingsStore(client redis.UniversalClient, key string) *RedisProviderSettingsStore {
	if client == nil {
		return nil
	}
	storeKey := strings.TrimSpace(key)
	if storeKey == "" {
		storeKey = defaultProviderSettingsKey
	}
	return &RedisProviderSettingsStore{client: client, key: storeKey}
}

func (s *RedisProviderSettingsStore) Load(ctx context.Context) (map[domain.ProviderKey]domain.ProviderSettings, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}
	items, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	out := make(map[domain.ProviderKey]domain.ProviderSettings, len(items))
	for provider, encoded := range items {
		key := domain.ProviderKey(strings.ToLower(strings.TrimSpace(provider)))
		if key == "" || strings.TrimSpace(encoded) == "" {
			continue
		}
		var row domain.ProviderSettings
		if err := json.Unmarshal([]byte(encoded), &row); err != nil {
			continue
		}
		row.Provider = key
		out[key] = row
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (s *RedisProviderSettingsStore) Save(ctx context.Context, row domain.ProviderSettings) error {
	if s == nil || s.client == nil {
		return nil
	}
	key := domain.ProviderKey(strings.ToLower(strings.TrimSpace(string(row.Provider))))
	if key == "" {
		return nil
	}
	row.Provider = key
	row.APIKey = strings.TrimSpace(row.APIKey)
	row.APISecret = strings.TrimSpace(row.APISecret)

	payload, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.key, string(key), payload).Err()
}

type RedisSearchSettingsStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisSearchSettingsStore(client redis.UniversalClient, key string) *RedisSearchSettingsStore {
	if client == nil {
		return nil
	}
	storeKey := strings.TrimSpace(key)
	if storeKey == "" {
		storeKey = defaultSearchSettingsKey
	}
	return &RedisSearchSettingsStore{client: client, key: storeKey}
}

func (s *RedisSearchSettingsStore) Load(ctx context.Context) (domain.SearchSettings, error) {
	if s == nil || s.client == nil {
		return domain.DefaultSearchSettings(), nil
	}
	encoded, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DefaultSearchSettings(), nil
		}
		return domain.DefaultSearchSettings(), err
	}
	var row domain.SearchSettings
	if err := json.Unmarshal([]byte(encoded), &row); err != nil {
		return domain.DefaultSearchSettings(), nil
	}
	return domain.NormalizeSearchSettings(row), nil
}

func (s *RedisSearchSettingsStore) Save(ctx context.Context, row domain.SearchSettings) error {
	if s == nil || s.client == nil {
		return nil
	}
	payload, err := json.Marshal(domain.NormalizeSearchSettings(row))
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, payload, 0).Err()
}

// MemoryProviderSettingsStore keeps rows in process memory. Used when no
// Redis URL is configured, and by tests.
type MemoryProviderSettingsStore struct {
	mu   sync.RWMutex
	rows map[domain.ProviderKey]domain.ProviderSettings
}

func NewMemoryProviderSettingsStore(rows ...domain.ProviderSettings) *MemoryProviderSettingsStore {
	store := &MemoryProviderSettingsStore{
		rows: make(map[domain.ProviderKey]domain.ProviderSettings, len(rows)),
	}
	for _, row := range rows {
		store.rows[row.Provider] = row
	}
	return store
}

func (s *MemoryProviderSettingsStore) Load(ctx context.Context) (map[domain.ProviderKey]domain.ProviderSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.ProviderKey]domain.ProviderSettings, len(s.rows))
	for key, row := range s.rows {
		out[key] = row
	}
	return out, nil
}

func (s *MemoryProviderSettingsStore) Save(ctx context.Context, row domain.ProviderSettings) error {
	key := domain.ProviderKey(strings.ToLower(strings.TrimSpace(string(row.Provider))))
	if key == "" {
		return nil
	}
	row.Provider = key
	s.mu.Lock()
	s.rows[key] = row
	s.mu.Unlock()
	return nil
}

type MemorySearchSettingsStore struct {
	mu  sync.RWMutex
	row *domain.SearchSettings
}

func NewMemorySearchSettingsStore() *MemorySearchSettingsStore {
	return &MemorySearchSettingsStore{}
}

func (s *MemorySearchSettingsStore) Load(ctx context.Context) (domain.SearchSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.row == nil {
		return domain.DefaultSearchSettings(), nil
	}
	return domain.NormalizeSearchSettings(*s.row), nil
}

func (s *MemorySearchSettingsStore) Save(ctx context.Context, row domain.SearchSettings) error {
	normalized := domain.NormalizeSearchSettings(row)
	s.mu.Lock()
	s.row = &normalized
	s.mu.Unlock()
	return nil
}
