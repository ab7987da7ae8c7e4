package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx_backend/internal/feature/candles/domain/entity"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: fxserver\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 200, cfg.Cascade.DefaultLimit)
	assert.Equal(t, 5000, cfg.Cascade.MaxLimit)
	assert.Equal(t, 8*time.Second, cfg.Cascade.UpstreamTimeout)
	assert.Equal(t, "Asia/Seoul", cfg.Cascade.Timezone)
	assert.Equal(t, 12*time.Second, cfg.Cache["1m"].TTL)
	assert.Equal(t, 5*time.Minute, cfg.Cache["1d"].TTL)
	assert.Equal(t, 2000, cfg.Cache["1y"].Capacity)
	assert.Equal(t, []entity.Timeframe{entity.Timeframe1d, entity.Timeframe1w, entity.Timeframe1mo}, cfg.IngestTimeframes())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
twelvedata:
  api_key: from-file
  timeout: 3s
cache:
  5m:
    capacity: 10
    ttl: 7s
    retain: 1h
cascade:
  timezone: UTC
`)
	t.Setenv("FX_TWELVEDATA_API_KEY", "from-env")
	t.Setenv("FX_CASCADE_DEFAULT_LIMIT", "50")
	t.Setenv("FX_INGEST_PAIRS", "USD-JPY,EUR/USD")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.TwelveData.APIKey)
	assert.Equal(t, 3*time.Second, cfg.TwelveData.Timeout)
	assert.Equal(t, 50, cfg.Cascade.DefaultLimit)
	assert.Equal(t, "UTC", cfg.Cascade.Timezone)
	assert.Equal(t, 10, cfg.Cache["5m"].Capacity)
	assert.Equal(t, 7*time.Second, cfg.Cache["5m"].TTL)
	assert.Equal(t, []string{"USD-JPY", "EUR/USD"}, cfg.Ingest.Pairs)

	loc, err := cfg.Cascade.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "database:\n  driver: oracle\n"},
		{"bad zone", "cascade:\n  timezone: Mars/Olympus\n"},
		{"default above max", "cascade:\n  default_limit: 9000\n"},
		{"bad alternate", "cascade:\n  alternate_timeframe: 2d\n"},
		{"bad partition", "cache:\n  2h:\n    capacity: 1\n    ttl: 1s\n"},
		{"zero ttl", "cache:\n  1h:\n    capacity: 1\n    ttl: 0s\n"},
		{"bad pair", "ingest:\n  pairs: [USDUSD]\n"},
		{"bad base url", "twelvedata:\n  base_url: not a url\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fxserver", cfg.App.Name)
}
