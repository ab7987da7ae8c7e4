package twelvedata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx_backend/internal/feature/candles/domain"
)

type upstreamCounter struct {
	mu      sync.Mutex
	results []string
}

func (u *upstreamCounter) RecordUpstream(interval, result string, _ time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.results = append(u.results, interval+"/"+result)
}

type refusingLimiter struct{}

func (refusingLimiter) WaitIfNeeded(context.Context) error {
	return errors.New("rate: Wait(n=1) would exceed context deadline")
}

func newMarket(t *testing.T, handler http.HandlerFunc, tz string) (*TwelveDataMarket, *upstreamCounter) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	rec := &upstreamCounter{}
	m, err := NewTwelveDataMarket(Config{APIKey: "test-key", BaseURL: server.URL, Timezone: tz}, server.Client(), nil, rec, zerolog.Nop())
	require.NoError(t, err)
	return m, rec
}

func TestNewTwelveDataMarket(t *testing.T) {
	t.Parallel()

	m, err := NewTwelveDataMarket(Config{APIKey: "k"}, &http.Client{}, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, m.cfg.BaseURL)
	assert.Equal(t, time.UTC, m.loc)

	_, err = NewTwelveDataMarket(Config{Timezone: "Mars/Olympus"}, &http.Client{}, nil, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestTwelveDataMarket_GetTimeSeries_Success(t *testing.T) {
	t.Parallel()

	m, rec := newMarket(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/time_series", r.URL.Path)
		assert.Equal(t, "USD/KRW", q.Get("symbol"))
		assert.Equal(t, "1h", q.Get("interval"))
		assert.Equal(t, "120", q.Get("outputsize"))
		assert.Equal(t, "ASC", q.Get("order"))
		assert.Equal(t, "Asia/Seoul", q.Get("timezone"))
		assert.Equal(t, "test-key", q.Get("apikey"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"meta": {"symbol": "USD/KRW", "interval": "1h"},
			"status": "ok",
			"values": [
				{"datetime": "2025-01-15 10:00:00", "open": "1455.10", "high": "1457.00", "low": "1454.20", "close": "1456.35"},
				{"datetime": "2025-01-15 09:00:00", "open": "1453.00", "high": "1455.50", "low": "1452.75", "close": "1455.10"},
				{"datetime": "2025-01-15 11:00:00", "open": "1456.35", "high": "1450.00", "low": "1449.00", "close": "1456.00"}
			]
		}`))
	}, "Asia/Seoul")

	got, err := m.GetTimeSeries(context.Background(), "USD/KRW", "1h", 120)
	require.NoError(t, err)
	require.Len(t, got, 2, "inconsistent row is dropped")

	seoul, _ := time.LoadLocation("Asia/Seoul")
	assert.True(t, time.Date(2025, 1, 15, 9, 0, 0, 0, seoul).Equal(got[0].BucketStart), "rows are sorted ascending")
	assert.True(t, got[1].Close.Equal(decimal.RequireFromString("1456.35")))
	assert.Equal(t, "TwelveData", got[0].Source)
	assert.Equal(t, []string{"1h/ok"}, rec.results)
}

func TestTwelveDataMarket_GetTimeSeries_DateOnly(t *testing.T) {
	t.Parallel()

	m, _ := newMarket(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","values":[{"datetime":"2025-01-15","open":"1","high":"2","low":"0.5","close":"1.5"}]}`))
	}, "")

	got, err := m.GetTimeSeries(context.Background(), "EUR/USD", "1day", 120)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC).Equal(got[0].BucketStart))
}

func TestTwelveDataMarket_GetTimeSeries_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    error
		wantMsg    string
		wantResult string
	}{
		{"http 429", http.StatusTooManyRequests, `{}`, domain.ErrRateLimited, "twelvedata http 429", "1day/rate_limited"},
		{"http 500", http.StatusInternalServerError, `{}`, domain.ErrUpstreamUnavailable, "twelvedata http 500", "1day/unavailable"},
		{"http 401", http.StatusUnauthorized, `{}`, domain.ErrUpstreamUnavailable, "twelvedata http 401", "1day/unavailable"},
		{"body code 429", http.StatusOK, `{"status":"error","code":429,"message":"You have run out of API credits"}`, domain.ErrRateLimited, "run out of API credits", "1day/rate_limited"},
		{"body error", http.StatusOK, `{"status":"error","code":400,"message":"symbol not found"}`, domain.ErrUpstreamUnavailable, "symbol not found", "1day/unavailable"},
		{"bad json", http.StatusOK, `{"status":`, domain.ErrMalformedPayload, "decode", "1day/malformed"},
		{"values missing", http.StatusOK, `{"status":"ok"}`, domain.ErrMalformedPayload, "values missing", "1day/malformed"},
		{"bad datetime", http.StatusOK, `{"status":"ok","values":[{"datetime":"yesterday","open":"1","high":"1","low":"1","close":"1"}]}`, domain.ErrMalformedPayload, `parse time "yesterday"`, "1day/malformed"},
		{"bad price", http.StatusOK, `{"status":"ok","values":[{"datetime":"2025-01-15","open":"x","high":"1","low":"1","close":"1"}]}`, domain.ErrMalformedPayload, `parse open "x"`, "1day/malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, rec := newMarket(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, "")

			_, err := m.GetTimeSeries(context.Background(), "USD/KRW", "1day", 120)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.True(t, domain.IsUpstreamFailure(err))
			assert.Equal(t, []string{tt.wantResult}, rec.results)
		})
	}
}

func TestTwelveDataMarket_GetTimeSeries_EmptyValues(t *testing.T) {
	t.Parallel()
	m, _ := newMarket(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","values":[]}`))
	}, "")

	got, err := m.GetTimeSeries(context.Background(), "USD/KRW", "1day", 120)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTwelveDataMarket_GetTimeSeries_Timeout(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	m, _ := newMarket(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, "")
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := m.GetTimeSeries(ctx, "USD/KRW", "1min", 120)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTwelveDataMarket_GetTimeSeries_LocalBudget(t *testing.T) {
	t.Parallel()
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits++ }))
	defer server.Close()

	m, err := NewTwelveDataMarket(Config{BaseURL: server.URL}, server.Client(), refusingLimiter{}, nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = m.GetTimeSeries(context.Background(), "USD/KRW", "1day", 120)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Zero(t, hits, "no request is sent once the budget is spent")
}
