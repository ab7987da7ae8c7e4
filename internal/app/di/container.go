package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	candleadapters "fx_backend/internal/feature/candles/adapters"
	"fx_backend/internal/feature/candles/domain/entity"
	"fx_backend/internal/feature/candles/transport/handler"
	"fx_backend/internal/feature/candles/usecase"
	"fx_backend/internal/platform/cache"
	"fx_backend/internal/platform/config"
	infradb "fx_backend/internal/platform/db"
	healthhandler "fx_backend/internal/platform/http/handler"
	"fx_backend/internal/platform/metrics"
	infraredis "fx_backend/internal/platform/redis"
)

// Container holds every long-lived component built from one Config.
type Container struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Location  *time.Location
	DB        *gorm.DB
	Redis     *redisv9.Client
	Metrics   *metrics.Recorder
	Snapshots *cache.RedisSnapshot[entity.Series]
	Cache     *cache.TieredCache[entity.Series]
	Resolve   *usecase.ResolveUsecase
	Ingest    *usecase.IngestUsecase
	Candles   handler.HistoryReader
	Handler   *handler.CandlesHandler
}

// Build opens the database and Redis, then assembles the candle pipeline.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Container, error) {
	loc, err := cfg.Cascade.Location()
	if err != nil {
		return nil, fmt.Errorf("load display zone: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(reg)

	db, err := infradb.Open(cfg.Database, logger.With().Str("component", "db").Logger())
	if err != nil {
		return nil, err
	}

	rdb, err := infraredis.NewRedisClient(ctx, cfg.Redis, logger)
	if err != nil {
		// スナップショットなしでも起動できる
		logger.Warn().Err(err).Msg("redis unavailable, running without snapshots")
		rdb = nil
	}

	c := &Container{
		Config:    cfg,
		Logger:    logger,
		Location:  loc,
		DB:        db,
		Redis:     rdb,
		Metrics:   recorder,
		Snapshots: cache.NewRedisSnapshot[entity.Series](rdb, cfg.Redis.SnapshotTTL, cfg.Redis.Namespace),
	}

	market, err := NewMarket(cfg, recorder, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	var backing cache.Backing[entity.Series]
	if rdb != nil {
		backing = c.Snapshots
	}
	c.Cache, err = cache.NewTieredCache[entity.Series](cfg.Cache, backing, cache.Options{
		Recorder: recorder,
		Logger:   logger.With().Str("component", "cache").Logger(),
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	alt, _ := entity.ParseTimeframe(cfg.Cascade.AlternateTimeframe)
	store := candleadapters.NewCandleRepository(db)
	c.Resolve = usecase.NewResolveUsecase(market, store, c.Cache, recorder, usecase.ResolveConfig{
		Location:            loc,
		Provider:            usecase.DefaultProvider,
		UpstreamTimeout:     cfg.Cascade.UpstreamTimeout,
		AlternateTimeframe:  alt,
		InterpolateIntraday: cfg.Cascade.InterpolateIntraday,
		DefaultLimit:        cfg.Cascade.DefaultLimit,
		MaxLimit:            cfg.Cascade.MaxLimit,
	}, logger.With().Str("component", "cascade").Logger())
	c.Ingest = usecase.NewIngestUsecase(market, store, loc, logger.With().Str("component", "ingest").Logger()).
		WithOutputSize(cfg.Ingest.OutputSize)
	c.Candles = usecase.NewCandlesUsecase(store, loc)
	c.Handler = handler.NewCandlesHandler(c.Resolve, c.Candles, c.Ingest, loc, logger)

	return c, nil
}

// Probes returns readiness checks for the external dependencies.
func (c *Container) Probes() map[string]healthhandler.Probe {
	probes := map[string]healthhandler.Probe{
		"database": func(ctx context.Context) error {
			sqlDB, err := c.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if c.Redis != nil {
		probes["redis"] = func(ctx context.Context) error { return c.Redis.Ping(ctx).Err() }
	}
	return probes
}

// Close releases the database and Redis connections.
func (c *Container) Close() error {
	var errs []error
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
