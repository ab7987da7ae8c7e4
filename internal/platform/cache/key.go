// Package cache provides the per-timeframe tiered cache used by the candle cascade.
package cache

import (
	"fmt"
	"strings"
	"time"
)

// Key identifies one cached response.
type Key struct {
	Pair      string
	Timeframe string
	Limit     int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%d", safe(k.Pair), safe(k.Timeframe), k.Limit)
}

// PartitionConfig bounds one timeframe partition.
// Retain limits how long an expired entry stays readable as stale; zero keeps it until evicted.
type PartitionConfig struct {
	Capacity int           `mapstructure:"capacity" validate:"gte=1"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gt=0"`
	Retain   time.Duration `mapstructure:"retain" validate:"gte=0"`
}

// FallbackPartition serves timeframes without their own partition.
const FallbackPartition = "1d"

// DefaultPartitions: finer timeframes expire sooner.
func DefaultPartitions() map[string]PartitionConfig {
	const capacity = 2000
	const retain = 24 * time.Hour
	return map[string]PartitionConfig{
		"1m":  {Capacity: capacity, TTL: 12 * time.Second, Retain: retain},
		"5m":  {Capacity: capacity, TTL: 20 * time.Second, Retain: retain},
		"15m": {Capacity: capacity, TTL: 30 * time.Second, Retain: retain},
		"30m": {Capacity: capacity, TTL: 45 * time.Second, Retain: retain},
		"1h":  {Capacity: capacity, TTL: time.Minute, Retain: retain},
		"1d":  {Capacity: capacity, TTL: 5 * time.Minute, Retain: retain},
		"1w":  {Capacity: capacity, TTL: 10 * time.Minute, Retain: retain},
		"1mo": {Capacity: capacity, TTL: 15 * time.Minute, Retain: retain},
		"1y":  {Capacity: capacity, TTL: 20 * time.Minute, Retain: retain},
	}
}

// PartitionFor maps a timeframe to the partition that holds it.
func PartitionFor(partitions map[string]PartitionConfig, timeframe string) string {
	if _, ok := partitions[timeframe]; ok {
		return timeframe
	}
	return FallbackPartition
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
