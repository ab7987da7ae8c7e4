// Package config materialises fxserver configuration from a YAML file, .env and FX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"fx_backend/internal/feature/candles/domain/entity"
	"fx_backend/internal/platform/cache"
	"fx_backend/internal/platform/logger"
)

// EnvPrefix prefixes every environment override, e.g. FX_TWELVEDATA_API_KEY.
const EnvPrefix = "FX"

// Config is the root configuration.
type Config struct {
	App        AppConfig                        `mapstructure:"app"`
	HTTP       HTTPConfig                       `mapstructure:"http"`
	Logging    logger.Config                    `mapstructure:"logging"`
	Database   DatabaseConfig                   `mapstructure:"database"`
	Redis      RedisConfig                      `mapstructure:"redis"`
	TwelveData TwelveDataConfig                 `mapstructure:"twelvedata"`
	Cache      map[string]cache.PartitionConfig `mapstructure:"cache" validate:"dive"`
	Cascade    CascadeConfig                    `mapstructure:"cascade"`
	Ingest     IngestConfig                     `mapstructure:"ingest"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// HTTPConfig covers the API listener.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig selects the CandleStore backend.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN             string        `mapstructure:"dsn" validate:"required"`
	RunMigrations   bool          `mapstructure:"run_migrations"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig configures the snapshot backing. An empty Addr disables it.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db" validate:"gte=0"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl" validate:"gte=0"`
	Namespace   string        `mapstructure:"namespace"`
}

// TwelveDataConfig configures the upstream gateway.
type TwelveDataConfig struct {
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" validate:"gte=0"`
}

// CascadeConfig tunes the degradation cascade.
type CascadeConfig struct {
	Timezone            string        `mapstructure:"timezone" validate:"required"`
	DefaultLimit        int           `mapstructure:"default_limit" validate:"gte=1"`
	MaxLimit            int           `mapstructure:"max_limit" validate:"gte=1,lte=5000"`
	UpstreamTimeout     time.Duration `mapstructure:"upstream_timeout" validate:"gt=0"`
	AlternateTimeframe  string        `mapstructure:"alternate_timeframe"`
	InterpolateIntraday bool          `mapstructure:"interpolate_intraday"`
}

// IngestConfig lists what the ingest command pulls by default.
type IngestConfig struct {
	Pairs      []string `mapstructure:"pairs"`
	Timeframes []string `mapstructure:"timeframes"`
	OutputSize int      `mapstructure:"output_size" validate:"gte=1"`
}

// Location loads the display zone.
func (c CascadeConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Load builds configuration from .env, file, environment and defaults.
// A missing config file or .env is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fxserver")
	v.SetDefault("app.environment", "development")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.jwt_secret", "")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.caller", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:fx.db?cache=shared")
	v.SetDefault("database.run_migrations", true)
	v.SetDefault("database.connect_timeout", "60s")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.snapshot_ttl", "24h")
	v.SetDefault("redis.namespace", "fx:series")

	v.SetDefault("twelvedata.base_url", "https://api.twelvedata.com")
	v.SetDefault("twelvedata.api_key", "")
	v.SetDefault("twelvedata.timeout", "10s")
	v.SetDefault("twelvedata.requests_per_minute", 8)

	for tf, p := range cache.DefaultPartitions() {
		v.SetDefault("cache."+tf+".capacity", p.Capacity)
		v.SetDefault("cache."+tf+".ttl", p.TTL.String())
		v.SetDefault("cache."+tf+".retain", p.Retain.String())
	}

	v.SetDefault("cascade.timezone", "Asia/Seoul")
	v.SetDefault("cascade.default_limit", 200)
	v.SetDefault("cascade.max_limit", 5000)
	v.SetDefault("cascade.upstream_timeout", "8s")
	v.SetDefault("cascade.alternate_timeframe", "1d")
	v.SetDefault("cascade.interpolate_intraday", true)

	v.SetDefault("ingest.pairs", []string{"USD-KRW", "JPY-KRW", "EUR-KRW"})
	v.SetDefault("ingest.timeframes", []string{"1d", "1w", "1mo"})
	v.SetDefault("ingest.output_size", 500)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate runs struct-tag validation followed by cross-field checks.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Cascade.DefaultLimit > c.Cascade.MaxLimit {
		return fmt.Errorf("cascade.default_limit %d exceeds cascade.max_limit %d", c.Cascade.DefaultLimit, c.Cascade.MaxLimit)
	}
	if _, err := c.Cascade.Location(); err != nil {
		return fmt.Errorf("cascade.timezone: %w", err)
	}
	if c.Cascade.AlternateTimeframe != "" {
		if _, ok := entity.ParseTimeframe(c.Cascade.AlternateTimeframe); !ok {
			return fmt.Errorf("cascade.alternate_timeframe %q is not a supported timeframe", c.Cascade.AlternateTimeframe)
		}
	}
	if _, ok := c.Cache[cache.FallbackPartition]; !ok {
		return fmt.Errorf("cache.%s partition must be configured", cache.FallbackPartition)
	}
	for tf := range c.Cache {
		if _, ok := entity.ParseTimeframe(tf); !ok {
			return fmt.Errorf("cache partition %q is not a supported timeframe", tf)
		}
	}
	for _, p := range c.Ingest.Pairs {
		if _, ok := entity.ParsePair(p); !ok {
			return fmt.Errorf("ingest.pairs: %q is not a currency pair", p)
		}
	}
	for _, tf := range c.Ingest.Timeframes {
		if _, ok := entity.ParseTimeframe(tf); !ok {
			return fmt.Errorf("ingest.timeframes: %q is not a supported timeframe", tf)
		}
	}
	return nil
}

// IngestTimeframes parses Ingest.Timeframes; Validate has already rejected unknown codes.
func (c *Config) IngestTimeframes() []entity.Timeframe {
	out := make([]entity.Timeframe, 0, len(c.Ingest.Timeframes))
	for _, s := range c.Ingest.Timeframes {
		if tf, ok := entity.ParseTimeframe(s); ok {
			out = append(out, tf)
		}
	}
	return out
}
