// Package resample converts candle series between timeframes.
package resample

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fx_backend/internal/feature/candles/domain/calendar"
	"fx_backend/internal/feature/candles/domain/entity"
)

// SourceInterpolated tags candles produced by Upsample.
const SourceInterpolated = "interpolated"

const (
	pricePlaces = 6
	// share of the parent range used as oscillation amplitude
	oscillation = 0.05
)

// Resampler buckets candles on the calendar of a single display zone.
type Resampler struct {
	loc *time.Location
}

func New(loc *time.Location) *Resampler {
	if loc == nil {
		loc = time.UTC
	}
	return &Resampler{loc: loc}
}

func (r *Resampler) Location() *time.Location { return r.loc }

// Resample picks the direction from the ranks of from and to.
func (r *Resampler) Resample(candles []entity.Candle, from, to entity.Timeframe) []entity.Candle {
	switch {
	case from == to:
		return sorted(candles)
	case from.FinerThan(to):
		return r.Downsample(candles, to)
	default:
		return r.Upsample(candles, to)
	}
}

// Downsample folds finer candles into target buckets: first open, last close,
// extreme high and low. Input order does not matter; output is ascending.
func (r *Resampler) Downsample(candles []entity.Candle, target entity.Timeframe) []entity.Candle {
	in := sorted(candles)
	out := make([]entity.Candle, 0, len(in))
	for _, c := range in {
		start := calendar.BucketStart(c.BucketStart, target, r.loc)
		if n := len(out); n > 0 && out[n-1].BucketStart.Equal(start) {
			agg := &out[n-1]
			agg.High = decimal.Max(agg.High, c.High)
			agg.Low = decimal.Min(agg.Low, c.Low)
			agg.Close = c.Close
			agg.Source = c.Source
			if c.UpdatedAt.After(agg.UpdatedAt) {
				agg.UpdatedAt = c.UpdatedAt
			}
			continue
		}
		c.Timeframe = target
		c.BucketStart = start
		out = append(out, c)
	}
	return out
}

// Upsample splits each coarse candle into the finer target buckets inside
// [start, next start). Each sub-candle opens at the previous close; closes
// follow the open-to-close line plus a bounded sine so the path is not flat,
// clamped to the parent range. The chain carries across parents unless the
// previous close lies outside the next parent's range. The last input candle spans one nominal
// target bucket width past its start, so it yields a single sub-candle.
func (r *Resampler) Upsample(candles []entity.Candle, target entity.Timeframe) []entity.Candle {
	in := sorted(candles)
	out := make([]entity.Candle, 0, len(in))
	var prev decimal.Decimal
	for i, c := range in {
		var end time.Time
		if i+1 < len(in) {
			end = in[i+1].BucketStart
		} else {
			end = c.BucketStart.Add(calendar.Width(target))
		}
		steps := calendar.Starts(c.BucketStart, end, target, r.loc)
		if len(steps) == 0 {
			continue
		}
		if len(out) == 0 {
			prev = c.Open
		}
		// a price gap between parents would otherwise leak outside this parent's range
		prev = clamp(prev, c.Low, c.High)
		n := float64(len(steps))
		span := c.Close.Sub(c.Open)
		amp := c.High.Sub(c.Low).Mul(decimal.NewFromFloat(oscillation))
		for j, at := range steps {
			frac := float64(j+1) / n
			level := c.Open.Add(span.Mul(decimal.NewFromFloat(frac)))
			wave := amp.Mul(decimal.NewFromFloat(math.Sin(3 * math.Pi * frac)))
			closePx := clamp(level.Add(wave).Round(pricePlaces), c.Low, c.High)
			out = append(out, entity.Candle{
				Pair:        c.Pair,
				Timeframe:   target,
				BucketStart: at,
				Open:        prev,
				High:        decimal.Max(prev, closePx),
				Low:         decimal.Min(prev, closePx),
				Close:       closePx,
				Source:      SourceInterpolated,
				UpdatedAt:   c.UpdatedAt,
			})
			prev = closePx
		}
	}
	return out
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

func sorted(candles []entity.Candle) []entity.Candle {
	out := make([]entity.Candle, len(candles))
	copy(out, candles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].BucketStart.Before(out[j].BucketStart) })
	return out
}
