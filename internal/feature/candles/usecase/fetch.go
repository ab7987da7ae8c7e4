package usecase

import (
	"context"
	"fmt"
	"time"

	"fx_backend/internal/feature/candles/domain"
	"fx_backend/internal/feature/candles/domain/calendar"
	"fx_backend/internal/feature/candles/domain/entity"
	"fx_backend/internal/feature/candles/domain/resample"
)

// 上流に要求する最小件数
const minUpstreamSize = 120

// DefaultProvider は上流データソースの表示名です。
const DefaultProvider = "TwelveData"

// MarketRepository は為替レートを取得するリポジトリのインターフェイスです。
// 外部 API の実装を抽象化します。
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type MarketRepository interface {
	// GetTimeSeries は昇順のローソク足を返します。Pair と Timeframe は呼び出し側が設定します。
	GetTimeSeries(ctx context.Context, symbol, interval string, outputsize int) ([]entity.Candle, error)
}

// upstreamIntervals は時間足から上流の interval への対応表です。
// 年足は上流に存在しないため月足を取得して集約します。
var upstreamIntervals = map[entity.Timeframe]string{
	entity.Timeframe1m:  "1min",
	entity.Timeframe5m:  "5min",
	entity.Timeframe15m: "15min",
	entity.Timeframe30m: "30min",
	entity.Timeframe1h:  "1h",
	entity.Timeframe1d:  "1day",
	entity.Timeframe1w:  "1week",
	entity.Timeframe1mo: "1month",
	entity.Timeframe1y:  "1month",
}

func upstreamInterval(tf entity.Timeframe) string { return upstreamIntervals[tf] }

// nativeTimeframe は上流から実際に取得する時間足です。
func nativeTimeframe(tf entity.Timeframe) entity.Timeframe {
	if tf == entity.Timeframe1y {
		return entity.Timeframe1mo
	}
	return tf
}

func upstreamOutputSize(tf entity.Timeframe, limit int) int {
	n := limit
	if tf == entity.Timeframe1y {
		n = limit * 12
	}
	return min(max(n, minUpstreamSize), MaxLimit)
}

// fetcher は上流からの取得と正規化を担います。解決処理と取り込み処理で共有します。
type fetcher struct {
	market    MarketRepository
	resampler *resample.Resampler
	provider  string
	now       func() time.Time
}

func newFetcher(market MarketRepository, loc *time.Location, provider string) fetcher {
	if provider == "" {
		provider = DefaultProvider
	}
	return fetcher{market: market, resampler: resample.New(loc), provider: provider, now: time.Now}
}

func (f fetcher) sourceOf(tf entity.Timeframe) string {
	return f.provider + " " + upstreamInterval(tf)
}

// fetch は最新 limit 件をバケット境界に揃えて返します。
func (f fetcher) fetch(ctx context.Context, p entity.Pair, tf entity.Timeframe, limit int) ([]entity.Candle, error) {
	interval := upstreamInterval(tf)
	rows, err := f.market.GetTimeSeries(ctx, p.Symbol(), interval, upstreamOutputSize(tf, limit))
	if err != nil {
		return nil, err
	}

	native := nativeTimeframe(tf)
	now := f.now()
	loc := f.resampler.Location()
	for i := range rows {
		rows[i].Pair = p.String()
		rows[i].Timeframe = native
		rows[i].BucketStart = calendar.BucketStart(rows[i].BucketStart, native, loc)
		if rows[i].Source == "" {
			rows[i].Source = f.provider
		}
		rows[i].UpdatedAt = now
	}
	// 揃えた結果同じバケットに入る行や年足への変換はここで畳み込む
	rows = f.resampler.Downsample(rows, tf)
	rows = entity.TailCandles(rows, limit)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %s returned no rows", domain.ErrMalformedPayload, p.Symbol(), interval)
	}
	return rows, nil
}
