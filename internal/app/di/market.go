// Package di provides dependency injection factories for creating application components.
package di

import (
	"time"

	"github.com/rs/zerolog"

	"fx_backend/internal/platform/config"
	"fx_backend/internal/platform/externalapi/twelvedata"
	infrahttp "fx_backend/internal/platform/http"
	"fx_backend/internal/platform/metrics"
	"fx_backend/internal/shared/ratelimiter"
)

// NewMarket creates a fully configured TwelveDataMarket with HTTP client and request budget.
func NewMarket(cfg *config.Config, recorder *metrics.Recorder, logger zerolog.Logger) (*twelvedata.TwelveDataMarket, error) {
	tdCfg := twelvedata.Config{
		APIKey:   cfg.TwelveData.APIKey,
		BaseURL:  cfg.TwelveData.BaseURL,
		Timeout:  cfg.TwelveData.Timeout,
		Timezone: cfg.Cascade.Timezone,
	}
	httpClient := infrahttp.NewHTTPClient(tdCfg.Timeout)
	limiter := ratelimiter.NewRateLimiter(cfg.TwelveData.RequestsPerMinute, time.Minute)
	return twelvedata.NewTwelveDataMarket(tdCfg, httpClient, limiter, recorder, logger.With().Str("component", "twelvedata").Logger())
}
