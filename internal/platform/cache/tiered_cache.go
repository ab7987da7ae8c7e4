package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const backingTimeout = 500 * time.Millisecond

// Backing persists last-known values outside the process.
type Backing[V any] interface {
	Load(ctx context.Context, key Key) (V, bool, error)
	Save(ctx context.Context, key Key, v V) error
}

// LookupRecorder counts fresh hits, misses and stale reads per partition.
type LookupRecorder interface {
	RecordCacheLookup(partition, result string)
}

// Options for NewTieredCache. Zero values are usable.
type Options struct {
	Clock    func() time.Time
	Recorder LookupRecorder
	Logger   zerolog.Logger
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

type partition[V any] struct {
	name    string
	ttl     time.Duration
	retain  time.Duration
	entries *lru.Cache[Key, entry[V]]
}

// TieredCache keeps one LRU partition per timeframe. Values are shared
// between readers and must not be mutated after they are stored.
type TieredCache[V any] struct {
	partitions map[string]*partition[V]
	cfg        map[string]PartitionConfig
	flights    singleflight.Group
	backing    Backing[V]
	now        func() time.Time
	recorder   LookupRecorder
	logger     zerolog.Logger
}

// NewTieredCache builds the partitions; backing may be nil.
func NewTieredCache[V any](partitions map[string]PartitionConfig, backing Backing[V], opts Options) (*TieredCache[V], error) {
	if len(partitions) == 0 {
		partitions = DefaultPartitions()
	}
	if _, ok := partitions[FallbackPartition]; !ok {
		return nil, fmt.Errorf("cache: partition %q is required", FallbackPartition)
	}
	c := &TieredCache[V]{
		partitions: make(map[string]*partition[V], len(partitions)),
		cfg:        partitions,
		backing:    backing,
		now:        opts.Clock,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
	}
	if c.now == nil {
		c.now = time.Now
	}
	for name, pc := range partitions {
		if pc.TTL <= 0 {
			return nil, fmt.Errorf("cache: partition %q needs a positive ttl", name)
		}
		entries, err := lru.New[Key, entry[V]](pc.Capacity)
		if err != nil {
			return nil, fmt.Errorf("cache: partition %q: %w", name, err)
		}
		c.partitions[name] = &partition[V]{name: name, ttl: pc.TTL, retain: pc.Retain, entries: entries}
	}
	return c, nil
}

func (c *TieredCache[V]) partition(timeframe string) *partition[V] {
	return c.partitions[PartitionFor(c.cfg, timeframe)]
}

func (p *partition[V]) fresh(key Key, now time.Time) (V, bool) {
	e, ok := p.entries.Get(key)
	if !ok || now.Sub(e.storedAt) >= p.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetOrCompute returns a fresh entry or runs compute once per key across
// concurrent callers. compute runs detached from the caller's cancellation;
// a cancelled caller stops waiting and gets ctx.Err(). Failures leave any
// previous entry untouched.
func (c *TieredCache[V]) GetOrCompute(ctx context.Context, key Key, compute func(context.Context) (V, error)) (V, error) {
	p := c.partition(key.Timeframe)
	if v, ok := p.fresh(key, c.now()); ok {
		c.record(p.name, "hit")
		return v, nil
	}
	c.record(p.name, "miss")

	detached := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(p.name+"|"+key.String(), func() (any, error) {
		// a flight that finished just before this one started may have filled the entry
		if v, ok := p.fresh(key, c.now()); ok {
			return v, nil
		}
		v, err := compute(detached)
		if err != nil {
			return nil, err
		}
		p.entries.Add(key, entry[V]{value: v, storedAt: c.now()})
		c.save(detached, key, v)
		return v, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// GetEvenIfExpired returns the last stored value regardless of freshness,
// falling back to the backing store. It never refreshes an entry.
func (c *TieredCache[V]) GetEvenIfExpired(ctx context.Context, key Key) (V, bool) {
	var zero V
	p := c.partition(key.Timeframe)
	if e, ok := p.entries.Peek(key); ok {
		if p.retain <= 0 || c.now().Sub(e.storedAt) < p.retain {
			c.record(p.name, "stale")
			return e.value, true
		}
		p.entries.Remove(key)
	}
	if c.backing == nil {
		return zero, false
	}

	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backingTimeout)
	defer cancel()
	v, ok, err := c.backing.Load(bctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("snapshot load failed")
		return zero, false
	}
	if ok {
		c.record(p.name, "snapshot")
	}
	return v, ok
}

// Len reports the number of entries held in a partition.
func (c *TieredCache[V]) Len(partition string) int {
	if p, ok := c.partitions[partition]; ok {
		return p.entries.Len()
	}
	return 0
}

func (c *TieredCache[V]) save(ctx context.Context, key Key, v V) {
	if c.backing == nil {
		return
	}
	bctx, cancel := context.WithTimeout(ctx, backingTimeout)
	defer cancel()
	if err := c.backing.Save(bctx, key, v); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("snapshot save failed")
	}
}

func (c *TieredCache[V]) record(partition, result string) {
	if c.recorder != nil {
		c.recorder.RecordCacheLookup(partition, result)
	}
}
