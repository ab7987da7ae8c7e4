package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fx_backend/internal/feature/candles/domain"
	"fx_backend/internal/feature/candles/domain/entity"
	"fx_backend/internal/feature/candles/usecase"
	"fx_backend/internal/platform/externalapi/twelvedata/dto"
	"fx_backend/internal/shared/ratelimiter"
)

// UpstreamRecorder observes every upstream call.
type UpstreamRecorder interface {
	RecordUpstream(interval, result string, elapsed time.Duration)
}

// TwelveDataMarket はTwelve Data外部APIから為替レートを取得するMarketRepository実装です。
type TwelveDataMarket struct {
	cfg      Config
	client   *http.Client
	loc      *time.Location
	limiter  ratelimiter.RateLimiterInterface
	recorder UpstreamRecorder
	logger   zerolog.Logger
}

// TwelveDataMarketがMarketRepositoryを実装していることをコンパイル時に検証します。
var _ usecase.MarketRepository = (*TwelveDataMarket)(nil)

// NewTwelveDataMarket は指定された設定とHTTPクライアントでTwelveDataMarketの新しいインスタンスを生成します。
// limiter と recorder は nil でも構いません。
func NewTwelveDataMarket(cfg Config, client *http.Client, limiter ratelimiter.RateLimiterInterface, recorder UpstreamRecorder, logger zerolog.Logger) (*TwelveDataMarket, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("twelvedata: timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}
	return &TwelveDataMarket{cfg: cfg, client: client, loc: loc, limiter: limiter, recorder: recorder, logger: logger}, nil
}

// GetTimeSeries はTwelve Data APIから時系列データを取得し、昇順のローソク足として返します。
// 失敗は domain のエラー（ErrRateLimited / ErrUpstreamUnavailable / ErrMalformedPayload）で包んで返します。
func (t *TwelveDataMarket) GetTimeSeries(ctx context.Context, symbol, interval string, outputsize int) ([]entity.Candle, error) {
	start := time.Now()
	candles, err := t.getTimeSeries(ctx, symbol, interval, outputsize)
	if t.recorder != nil {
		t.recorder.RecordUpstream(interval, resultOf(err), time.Since(start))
	}
	return candles, err
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrMalformedPayload):
		return "malformed"
	default:
		return "unavailable"
	}
}

func (t *TwelveDataMarket) getTimeSeries(ctx context.Context, symbol, interval string, outputsize int) ([]entity.Candle, error) {
	if t.limiter != nil {
		if err := t.limiter.WaitIfNeeded(ctx); err != nil {
			return nil, fmt.Errorf("%w: local request budget: %v", domain.ErrRateLimited, err)
		}
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("outputsize", strconv.Itoa(outputsize))
	q.Set("order", "ASC")
	q.Set("timezone", t.loc.String())
	q.Set("apikey", t.cfg.APIKey)

	u := fmt.Sprintf("%s/time_series?%s", t.cfg.BaseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	res, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			t.logger.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: twelvedata http %d", domain.ErrRateLimited, res.StatusCode)
	case res.StatusCode >= 400:
		return nil, fmt.Errorf("%w: twelvedata http %d", domain.ErrUpstreamUnavailable, res.StatusCode)
	}

	var body dto.TimeSeriesResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrMalformedPayload, err)
	}
	if body.Status == "error" {
		if body.Code == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: twelvedata code %d: %s", domain.ErrRateLimited, body.Code, body.Message)
		}
		return nil, fmt.Errorf("%w: twelvedata code %d: %s", domain.ErrUpstreamUnavailable, body.Code, body.Message)
	}
	if body.Values == nil {
		return nil, fmt.Errorf("%w: values missing", domain.ErrMalformedPayload)
	}

	candles := make([]entity.Candle, 0, len(body.Values))
	for _, v := range body.Values {
		c, err := t.toCandle(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
		}
		if !c.Consistent() {
			t.logger.Warn().Str("symbol", symbol).Str("datetime", v.Datetime).Msg("dropping inconsistent row")
			continue
		}
		candles = append(candles, c)
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].BucketStart.Before(candles[j].BucketStart) })
	return candles, nil
}

func (t *TwelveDataMarket) toCandle(v dto.TimeSeriesValue) (entity.Candle, error) {
	// タイムスタンプをパース
	tm, err := time.ParseInLocation("2006-01-02 15:04:05", v.Datetime, t.loc)
	if err != nil {
		tm, err = time.ParseInLocation("2006-01-02", v.Datetime, t.loc)
		if err != nil {
			return entity.Candle{}, fmt.Errorf("parse time %q: %w", v.Datetime, err)
		}
	}
	o, err := decimal.NewFromString(v.Open)
	if err != nil {
		return entity.Candle{}, fmt.Errorf("parse open %q: %w", v.Open, err)
	}
	h, err := decimal.NewFromString(v.High)
	if err != nil {
		return entity.Candle{}, fmt.Errorf("parse high %q: %w", v.High, err)
	}
	l, err := decimal.NewFromString(v.Low)
	if err != nil {
		return entity.Candle{}, fmt.Errorf("parse low %q: %w", v.Low, err)
	}
	c, err := decimal.NewFromString(v.Close)
	if err != nil {
		return entity.Candle{}, fmt.Errorf("parse close %q: %w", v.Close, err)
	}
	return entity.Candle{BucketStart: tm, Open: o, High: h, Low: l, Close: c, Source: "TwelveData"}, nil
}
