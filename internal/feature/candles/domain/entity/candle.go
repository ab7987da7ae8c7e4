// Package entity defines the domain models for the candles feature.
package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLC bucket for a currency pair at a given timeframe.
// Prices are fixed-point decimals; FX quotes carry no volume.
type Candle struct {
	Pair        string          `json:"pair"`         // e.g. "USD-KRW"
	Timeframe   Timeframe       `json:"timeframe"`    // e.g. "5m", "1d"
	BucketStart time.Time       `json:"bucket_start"` // inclusive start of the bucket
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	Source      string          `json:"source"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Consistent reports whether low <= min(open, close) and max(open, close) <= high.
func (c Candle) Consistent() bool {
	if c.Low.GreaterThan(c.High) {
		return false
	}
	for _, v := range []decimal.Decimal{c.Open, c.Close} {
		if v.LessThan(c.Low) || v.GreaterThan(c.High) {
			return false
		}
	}
	return true
}
