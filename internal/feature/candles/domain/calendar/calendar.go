// Package calendar maps instants onto candle buckets in a display zone.
//
// Sub-day buckets are aligned on the wall clock, days start at local
// midnight, weeks on Monday, months on the 1st and years on January 1st.
package calendar

import (
	"time"

	"fx_backend/internal/feature/candles/domain/entity"
)

var widths = map[entity.Timeframe]time.Duration{
	entity.Timeframe1m:  time.Minute,
	entity.Timeframe5m:  5 * time.Minute,
	entity.Timeframe15m: 15 * time.Minute,
	entity.Timeframe30m: 30 * time.Minute,
	entity.Timeframe1h:  time.Hour,
	entity.Timeframe1d:  24 * time.Hour,
	entity.Timeframe1w:  7 * 24 * time.Hour,
	entity.Timeframe1mo: 30 * 24 * time.Hour,
	entity.Timeframe1y:  365 * 24 * time.Hour,
}

// Width is the nominal bucket length. Calendar timeframes vary in practice; use Next for exact bounds.
func Width(tf entity.Timeframe) time.Duration { return widths[tf] }

// BucketStart returns the start of the bucket containing t.
func BucketStart(t time.Time, tf entity.Timeframe, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	y, m, day := t.Date()
	switch tf {
	case entity.Timeframe1m, entity.Timeframe5m, entity.Timeframe15m, entity.Timeframe30m, entity.Timeframe1h:
		// Subtract the remainder from the instant so a repeated fall-back hour keeps its offset.
		n := int(Width(tf) / time.Minute)
		return t.Add(-(time.Duration(t.Minute()%n)*time.Minute +
			time.Duration(t.Second())*time.Second +
			time.Duration(t.Nanosecond())))
	case entity.Timeframe1d:
		return time.Date(y, m, day, 0, 0, 0, 0, loc)
	case entity.Timeframe1w:
		back := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, day-back, 0, 0, 0, 0, loc)
	case entity.Timeframe1mo:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case entity.Timeframe1y:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return t
	}
}

// Next returns the start of the bucket following the one that begins at start.
func Next(start time.Time, tf entity.Timeframe, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	s := start.In(loc)
	y, m, day := s.Date()
	switch tf {
	case entity.Timeframe1d:
		return time.Date(y, m, day+1, 0, 0, 0, 0, loc)
	case entity.Timeframe1w:
		return time.Date(y, m, day+7, 0, 0, 0, 0, loc)
	case entity.Timeframe1mo:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	case entity.Timeframe1y:
		return time.Date(y+1, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return s.Add(Width(tf))
	}
}

// Prev returns the start of the bucket preceding the one that begins at start.
func Prev(start time.Time, tf entity.Timeframe, loc *time.Location) time.Time {
	return BucketStart(start.Add(-time.Nanosecond), tf, loc)
}

// Starts lists bucket starts in the half-open range [from, to).
func Starts(from, to time.Time, tf entity.Timeframe, loc *time.Location) []time.Time {
	var out []time.Time
	for t := BucketStart(from, tf, loc); t.Before(to); t = Next(t, tf, loc) {
		if !t.Before(from) {
			out = append(out, t)
		}
	}
	return out
}

// Ratio estimates how many source buckets fill one target bucket.
func Ratio(source, target entity.Timeframe) int {
	ws, wt := Width(source), Width(target)
	if ws <= 0 || wt <= ws {
		return 1
	}
	return int((wt + ws - 1) / ws)
}
