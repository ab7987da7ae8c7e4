package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshot keeps the last successfully computed value per key in Redis
// so the stale tier survives restarts and is shared between replicas.
type RedisSnapshot[V any] struct {
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ Backing[int] = (*RedisSnapshot[int])(nil)

// NewRedisSnapshot returns a Redis-backed snapshot store.
// If ttl is 0, it defaults to 24 hours. If namespace is empty, it uses "fx:series".
func NewRedisSnapshot[V any](rdb *redis.Client, ttl time.Duration, namespace string) *RedisSnapshot[V] {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if namespace == "" {
		namespace = "fx:series"
	}
	return &RedisSnapshot[V]{rdb: rdb, ttl: ttl, namespace: namespace}
}

// Load returns the snapshot for key. A corrupted payload is deleted and reported as a miss.
func (s *RedisSnapshot[V]) Load(ctx context.Context, key Key) (V, bool, error) {
	var out V
	if s.rdb == nil {
		return out, false, nil
	}
	k := s.cacheKey(key)
	b, err := s.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		_ = s.rdb.Del(ctx, k).Err()
		var zero V
		return zero, false, nil
	}
	return out, true, nil
}

// Save overwrites the snapshot for key.
func (s *RedisSnapshot[V]) Save(ctx context.Context, key Key, v V) error {
	if s.rdb == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.rdb.Set(ctx, s.cacheKey(key), b, s.ttl).Err()
}

// Purge removes every snapshot of a pair, e.g. after a symbol is delisted.
func (s *RedisSnapshot[V]) Purge(ctx context.Context, pair string) (int, error) {
	if s.rdb == nil {
		return 0, nil
	}
	var (
		cursor  uint64
		deleted int
	)
	pattern := fmt.Sprintf("%s:%s:*", s.namespace, safe(pair))
	for {
		keys, cur, err := s.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return deleted, err
			}
			deleted += len(keys)
		}
		cursor = cur
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (s *RedisSnapshot[V]) cacheKey(key Key) string {
	return s.namespace + ":" + key.String()
}
