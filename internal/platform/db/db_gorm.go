// Package db opens the gorm connection backing the candle store.
package db

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	candleadapters "fx_backend/internal/feature/candles/adapters"
	"fx_backend/internal/platform/config"
)

// Opener opens a gorm connection for a DSN.
type Opener func(dsn string) (*gorm.DB, error)

var retryInterval = 3 * time.Second

// OpenerFor returns the opener for a configured driver.
func OpenerFor(driver string) (Opener, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	switch driver {
	case "postgres":
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(postgres.Open(dsn), gcfg) }, nil
	case "sqlite":
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(sqlite.Open(dsn), gcfg) }, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// ConnectWithRetry keeps calling open until it succeeds or timeout elapses.
func ConnectWithRetry(dsn string, timeout time.Duration, open Opener, log zerolog.Logger) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := open(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("db connect failed after %s: %w", timeout, err)
		}
		log.Warn().Err(err).Msg("db connect failed, retrying")
		time.Sleep(retryInterval)
	}
}

// Open connects using cfg, applies pool limits and optionally migrates the candle table.
func Open(cfg config.DatabaseConfig, log zerolog.Logger) (*gorm.DB, error) {
	open, err := OpenerFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := ConnectWithRetry(cfg.DSN, cfg.ConnectTimeout, open, log)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// sqlite serialises writers; a single connection avoids SQLITE_BUSY on merges.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if cfg.RunMigrations {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		log.Info().Str("driver", cfg.Driver).Msg("candle schema migrated")
	}
	return db, nil
}

// Migrate creates or updates the candle table and its unique index.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&candleadapters.CandleModel{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
