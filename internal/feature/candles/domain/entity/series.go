package entity

// Outcome tells a caller which tier of the degradation cascade produced a series.
type Outcome string

const (
	OutcomeFresh     Outcome = "fresh"
	OutcomeStale     Outcome = "stale"
	OutcomeDegraded  Outcome = "degraded"
	OutcomeSynthetic Outcome = "synthetic"
	OutcomeEmpty     Outcome = "empty"
)

// Series is an ordered run of candles plus provenance.
// Points are ascending by BucketStart and must be treated as read-only
// since cached series share their backing arrays between readers.
type Series struct {
	Pair      string    `json:"pair"`
	Timeframe Timeframe `json:"timeframe"`
	Points    []Candle  `json:"points"`
	Source    string    `json:"source"`
	Stale     bool      `json:"stale"`
	Outcome   Outcome   `json:"outcome,omitempty"`
	// DegradedFrom names the substitute granularity the points were derived
	// from when Outcome is OutcomeDegraded.
	DegradedFrom Timeframe `json:"degraded_from,omitempty"`
}

func (s Series) Len() int { return len(s.Points) }

// TailCandles returns the last n candles without copying.
func TailCandles(cs []Candle, n int) []Candle {
	if n <= 0 || len(cs) <= n {
		return cs
	}
	return cs[len(cs)-n:]
}
