package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"fx_backend/internal/feature/candles/domain/entity"
	"fx_backend/internal/platform/cache"
)

var errMarketAPI = errors.New("market API error")

// fakeMarket is a mock implementation of the MarketRepository interface.
type fakeMarket struct {
	mu    sync.Mutex
	fn    func(ctx context.Context, symbol, interval string, outputsize int) ([]entity.Candle, error)
	calls []string
}

func (m *fakeMarket) GetTimeSeries(ctx context.Context, symbol, interval string, outputsize int) ([]entity.Candle, error) {
	m.mu.Lock()
	m.calls = append(m.calls, symbol+" "+interval)
	fn := m.fn
	m.mu.Unlock()
	if fn == nil {
		return nil, errors.New("GetTimeSeries is not implemented")
	}
	return fn(ctx, symbol, interval, outputsize)
}

func (m *fakeMarket) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// fakeStore keeps candles in memory and applies the same merge rule as the real store.
type fakeStore struct {
	mu        sync.Mutex
	rows      map[string]entity.Candle
	upsertErr error
	latestErr error
}

func newFakeStore(seed ...entity.Candle) *fakeStore {
	s := &fakeStore{rows: map[string]entity.Candle{}}
	for _, c := range seed {
		s.rows[storeKey(c)] = c
	}
	return s
}

func storeKey(c entity.Candle) string {
	return c.Pair + "|" + string(c.Timeframe) + "|" + c.BucketStart.UTC().Format(time.RFC3339)
}

func (s *fakeStore) UpsertBatch(_ context.Context, candles []entity.Candle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	for _, c := range candles {
		k := storeKey(c)
		if existing, ok := s.rows[k]; ok {
			c = entity.MergeCandle(existing, c)
		}
		s.rows[k] = c
	}
	return len(candles), nil
}

func (s *fakeStore) all(pair string, tf entity.Timeframe) []entity.Candle {
	var out []entity.Candle
	for _, c := range s.rows {
		if c.Pair == pair && c.Timeframe == tf {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BucketStart.Before(out[j].BucketStart) })
	return out
}

func (s *fakeStore) Latest(_ context.Context, pair string, tf entity.Timeframe, n int) ([]entity.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	return entity.TailCandles(s.all(pair, tf), n), nil
}

func (s *fakeStore) Range(_ context.Context, pair string, tf entity.Timeframe, from, to time.Time) ([]entity.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Candle
	for _, c := range s.all(pair, tf) {
		if !c.BucketStart.Before(from) && !c.BucketStart.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomeCounter) RecordOutcome(timeframe, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[timeframe+"/"+outcome]++
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testNow = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

// series builds n consistent candles starting at start, one bucket apart.
func series(start time.Time, step func(time.Time) time.Time, n int, base float64) []entity.Candle {
	out := make([]entity.Candle, 0, n)
	at := start
	for i := 0; i < n; i++ {
		o := decimal.NewFromFloat(base + float64(i))
		c := o.Add(decimal.NewFromFloat(0.5))
		out = append(out, entity.Candle{
			BucketStart: at,
			Open:        o,
			High:        c.Add(decimal.NewFromInt(1)),
			Low:         o.Sub(decimal.NewFromInt(1)),
			Close:       c,
		})
		at = step(at)
	}
	return out
}

func days(t time.Time) time.Time  { return t.AddDate(0, 0, 1) }
func months(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
func fiveMinutes(t time.Time) time.Time {
	return t.Add(5 * time.Minute)
}

type harness struct {
	market   *fakeMarket
	store    *fakeStore
	cache    *cache.TieredCache[entity.Series]
	clock    *testClock
	recorder *outcomeCounter
	uc       *ResolveUsecase
}

func newHarness(t *testing.T, cfg ResolveConfig, store *fakeStore) *harness {
	t.Helper()
	clock := &testClock{now: testNow}
	c, err := cache.NewTieredCache[entity.Series](nil, nil, cache.Options{Clock: clock.Now, Logger: zerolog.Nop()})
	require.NoError(t, err)

	h := &harness{market: &fakeMarket{}, store: store, cache: c, clock: clock, recorder: &outcomeCounter{}}
	var repo CandleRepository
	if store != nil {
		repo = store
	}
	h.uc = NewResolveUsecase(h.market, repo, c, h.recorder, cfg, zerolog.Nop())
	h.uc.now = clock.Now
	h.uc.fetcher.now = clock.Now
	return h
}
