package search

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"homematch/propertysearch/internal/domain"
)

const redisCachePrefix = "propertysearch:cache:"

// RedisCacheBackend stores aggregated results in Redis with JSON
// serialization, so cached searches survive restarts and are shared between
// replicas.
type RedisCacheBackend struct {
	client redis.UniversalClient
}

func NewRedisCacheBackend(client redis.UniversalClient) *RedisCacheBackend {
	if client == nil {
		return nil
	}
	return &RedisCacheBackend{client: client}
}

func (r *RedisCacheBackend) Get(ctx context.Context, key string) (domain.AggregatedResult, bool, error) {
	data, err := r.client.Get(ctx, redisCachePrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.AggregatedResult{}, false, nil
		}
		return domain.AggregatedResult{}, false, err
	}
	var result domain.AggregatedResult
	if err := json.Unmarshal(data, &result); err != nil {
		return domain.AggregatedResult{}, false, err
	}
	return result, true, nil
}

func (r *RedisCacheBackend) Set(ctx context.Context, key string, result domain.AggregatedResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisCachePrefix+key, data, ttl).Err()
}

// Flush deletes every cached result under the service prefix.
func (r *RedisCacheBackend) Flush(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, redisCachePrefix+"*", 100).Iterator()
	keys := make([]string, 0, 100)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (r *RedisCacheBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
