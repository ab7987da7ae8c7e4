package entity

import "strings"

// Timeframe is a candle granularity.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe1d  Timeframe = "1d"
	Timeframe1w  Timeframe = "1w"
	Timeframe1mo Timeframe = "1mo"
	Timeframe1y  Timeframe = "1y"
)

// ordered from finest to coarsest.
var timeframes = []Timeframe{
	Timeframe1m, Timeframe5m, Timeframe15m, Timeframe30m, Timeframe1h,
	Timeframe1d, Timeframe1w, Timeframe1mo, Timeframe1y,
}

var timeframeAliases = map[string]Timeframe{
	"1min":    Timeframe1m,
	"5min":    Timeframe5m,
	"15min":   Timeframe15m,
	"30min":   Timeframe30m,
	"60m":     Timeframe1h,
	"1hour":   Timeframe1h,
	"1day":    Timeframe1d,
	"day":     Timeframe1d,
	"1week":   Timeframe1w,
	"week":    Timeframe1w,
	"1month":  Timeframe1mo,
	"month":   Timeframe1mo,
	"1year":   Timeframe1y,
	"year":    Timeframe1y,
	"monthly": Timeframe1mo,
	"weekly":  Timeframe1w,
	"daily":   Timeframe1d,
}

// ParseTimeframe accepts canonical codes and common aliases, case-insensitively.
func ParseTimeframe(s string) (Timeframe, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, tf := range timeframes {
		if string(tf) == s {
			return tf, true
		}
	}
	tf, ok := timeframeAliases[s]
	return tf, ok
}

// Timeframes returns every supported timeframe, finest first.
func Timeframes() []Timeframe {
	out := make([]Timeframe, len(timeframes))
	copy(out, timeframes)
	return out
}

// Rank orders timeframes by granularity; -1 for unsupported values.
func (tf Timeframe) Rank() int {
	for i, v := range timeframes {
		if v == tf {
			return i
		}
	}
	return -1
}

func (tf Timeframe) Valid() bool { return tf.Rank() >= 0 }

// FinerThan reports whether tf has shorter buckets than o.
func (tf Timeframe) FinerThan(o Timeframe) bool { return tf.Rank() < o.Rank() }

func (tf Timeframe) String() string { return string(tf) }
