package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx_backend/internal/feature/candles/domain/entity"
	candleshandler "fx_backend/internal/feature/candles/transport/handler"
	jwtmw "fx_backend/internal/platform/jwt"
	"fx_backend/internal/platform/metrics"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubUsecase struct{ ingested int }

func (s *stubUsecase) Resolve(context.Context, string, string, int) (entity.Series, error) {
	return entity.Series{Pair: "USD-KRW", Timeframe: "1d", Points: []entity.Candle{}, Source: "synthetic", Outcome: entity.OutcomeSynthetic}, nil
}

func (s *stubUsecase) History(context.Context, string, string, *time.Time, *time.Time, int) (entity.Series, error) {
	return entity.Series{Points: []entity.Candle{}}, nil
}

func (s *stubUsecase) ResampleFrom(context.Context, string, string, string, int) (entity.Series, error) {
	return entity.Series{Points: []entity.Candle{}}, nil
}

func (s *stubUsecase) IngestOne(context.Context, string, string, int) (int, error) {
	s.ingested++
	return 1, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *stubUsecase) {
	t.Helper()
	uc := &stubUsecase{}
	rec := metrics.New(prometheus.NewRegistry())
	rec.RecordOutcome("1d", "fresh")
	r := NewRouter(Deps{
		Candles:   candleshandler.NewCandlesHandler(uc, uc, uc, time.UTC, zerolog.Nop()),
		Metrics:   rec.Handler(),
		JWTSecret: "router-secret",
		Logger:    zerolog.Nop(),
	})
	return r, uc
}

func TestRouter_PublicRoutes(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/candles/USD-KRW", "/candles/USD-KRW/history", "/candles/USD-KRW/resampled?from_tf=1h&to_tf=1d"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)
	}
}

func TestRouter_MetricsExposed(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "fx_resolve_outcomes_total")
}

func TestRouter_IngestRequiresToken(t *testing.T) {
	r, uc := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/candles/USD-KRW/ingest", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, uc.ingested)

	token, err := jwtmw.NewGenerator("router-secret", time.Minute).GenerateToken("ops")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/candles/USD-KRW/ingest", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, uc.ingested)
}
