package usecase

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"fx_backend/internal/feature/candles/domain/calendar"
	"fx_backend/internal/feature/candles/domain/entity"
)

// SourceSynthetic は合成ローソク足に付けるソースです。
const SourceSynthetic = "synthetic"

// referenceRates は 1 USD あたりのおおよその通貨単位です。合成データの水準にのみ使います。
var referenceRates = map[string]float64{
	"USD": 1,
	"KRW": 1350,
	"JPY": 150,
	"CNY": 7.2,
	"EUR": 0.92,
	"GBP": 0.79,
	"CHF": 0.88,
	"CAD": 1.36,
	"AUD": 1.52,
	"NZD": 1.65,
	"HKD": 7.8,
	"SGD": 1.34,
}

func seedOf(p entity.Pair, tf entity.Timeframe) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(p.String() + "|" + string(tf)))
	return int64(h.Sum64())
}

// referencePrice は既知通貨ならクロスレート、それ以外はペアから決まる値を返します。
func referencePrice(p entity.Pair) decimal.Decimal {
	b, okb := referenceRates[p.Base]
	q, okq := referenceRates[p.Quote]
	if okb && okq {
		return decimal.NewFromFloat(q / b)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(p.String()))
	return decimal.NewFromFloat(0.5 + float64(h.Sum32()%1500)/100)
}

// syntheticCandles は現在のバケットで終わる n 本のもっともらしい系列を生成します。
// 同じペア・時間足・バケットに対しては常に同じ結果になります。
func syntheticCandles(p entity.Pair, tf entity.Timeframe, n int, now time.Time, loc *time.Location) []entity.Candle {
	if n <= 0 {
		return []entity.Candle{}
	}
	starts := make([]time.Time, n)
	at := calendar.BucketStart(now, tf, loc)
	for i := n - 1; i >= 0; i-- {
		starts[i] = at
		at = calendar.Prev(at, tf, loc)
	}

	rng := rand.New(rand.NewSource(seedOf(p, tf)))
	base := referencePrice(p)
	prev := base.Round(6)
	out := make([]entity.Candle, 0, n)
	for i, start := range starts {
		drift := 0.004*math.Sin(float64(i)/9) + 0.0015*(rng.Float64()-0.5)
		closePx := base.Mul(decimal.NewFromFloat(1 + drift)).Round(6)
		high := decimal.Max(prev, closePx).Mul(decimal.NewFromFloat(1 + 0.0008*rng.Float64())).RoundCeil(6)
		low := decimal.Min(prev, closePx).Mul(decimal.NewFromFloat(1 - 0.0008*rng.Float64())).RoundFloor(6)
		out = append(out, entity.Candle{
			Pair:        p.String(),
			Timeframe:   tf,
			BucketStart: start,
			Open:        prev,
			High:        high,
			Low:         low,
			Close:       closePx,
			Source:      SourceSynthetic,
			UpdatedAt:   now,
		})
		prev = closePx
	}
	return out
}
