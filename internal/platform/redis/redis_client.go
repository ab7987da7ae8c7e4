// Package redis connects the snapshot backing store.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"fx_backend/internal/platform/config"
)

const pingTimeout = 3 * time.Second

// NewRedisClient returns nil, nil when no address is configured so the cache runs memory-only.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*redis.Client, error) {
	if cfg.Addr == "" {
		log.Info().Msg("redis disabled; series snapshots stay in memory")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 接続確認
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		log.Error().Err(err).Str("address", cfg.Addr).Msg("redis connection failed")
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	log.Info().Str("address", cfg.Addr).Msg("redis connection successful")
	return rdb, nil
}
