// Package handler はcandlesフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"fx_backend/internal/feature/candles/domain"
	"fx_backend/internal/feature/candles/domain/entity"
	"fx_backend/internal/feature/candles/transport/http/dto"
	"fx_backend/internal/feature/candles/usecase"
)

// Resolver は劣化カスケードでローソク足系列を解決します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type Resolver interface {
	Resolve(ctx context.Context, pair, timeframe string, limit int) (entity.Series, error)
}

// HistoryReader は保存済みのローソク足を読み出します。
type HistoryReader interface {
	History(ctx context.Context, pair, timeframe string, from, to *time.Time, limit int) (entity.Series, error)
	ResampleFrom(ctx context.Context, pair, sourceTF, targetTF string, take int) (entity.Series, error)
}

// Ingester は上流からローソク足を取り込み保存します。
type Ingester interface {
	IngestOne(ctx context.Context, pair, timeframe string, outputsize int) (int, error)
}

// CandlesHandler はローソク足データのHTTPリクエストを処理します。
type CandlesHandler struct {
	resolver Resolver
	history  HistoryReader
	ingester Ingester
	loc      *time.Location
	logger   zerolog.Logger
}

// NewCandlesHandler は新しい CandlesHandler を生成します。loc はレスポンスの時刻表記に使います。
func NewCandlesHandler(resolver Resolver, history HistoryReader, ingester Ingester, loc *time.Location, logger zerolog.Logger) *CandlesHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CandlesHandler{resolver: resolver, history: history, ingester: ingester, loc: loc, logger: logger}
}

// GetCandles は劣化カスケード経由で系列を返します。
// 上流障害時もエラーにはせず、source / stale / outcome で由来を示します。
//
// エンドポイント例:
// GET /candles/:pair?tf=1d&limit=200
func (h *CandlesHandler) GetCandles(c *gin.Context) {
	var q dto.ResolveQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}

	s, err := h.resolver.Resolve(c.Request.Context(), c.Param("pair"), q.Timeframe, q.Limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSeriesResponse(s, h.loc))
}

// GetHistory は保存済みのローソク足を返します。from/to 指定時は範囲、未指定時は最新 limit 件です。
//
// エンドポイント例:
// GET /candles/:pair/history?tf=1d&from=2024-01-01&to=2024-03-31
func (h *CandlesHandler) GetHistory(c *gin.Context) {
	var q dto.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}

	var from, to *time.Time
	if q.From != "" {
		f, err := h.parseTime(q.From)
		if err != nil {
			h.badRequest(c, err)
			return
		}
		t, err := h.parseTime(q.To)
		if err != nil {
			h.badRequest(c, err)
			return
		}
		from, to = &f, &t
	}

	s, err := h.history.History(c.Request.Context(), c.Param("pair"), q.Timeframe, from, to, q.Limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSeriesResponse(s, h.loc))
}

// GetResampled は保存済みの from_tf の系列を to_tf に変換して返します。
//
// エンドポイント例:
// GET /candles/:pair/resampled?from_tf=1h&to_tf=1d&take=500
func (h *CandlesHandler) GetResampled(c *gin.Context) {
	var q dto.ResampleQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}

	s, err := h.history.ResampleFrom(c.Request.Context(), c.Param("pair"), q.FromTimeframe, q.ToTimeframe, q.Take)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSeriesResponse(s, h.loc))
}

// PostIngest は指定ペアを上流から取り込みます（要認証）。
// 時間足ごとに結果を返し、1つの失敗では中断しません。
//
// エンドポイント例:
// POST /candles/:pair/ingest {"timeframes":["1d","1w"],"outputsize":500}
func (h *CandlesHandler) PostIngest(c *gin.Context) {
	var req dto.IngestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}

	timeframes := req.Timeframes
	if len(timeframes) == 0 {
		for _, tf := range usecase.DefaultIngestTimeframes {
			timeframes = append(timeframes, string(tf))
		}
	}
	pair := c.Param("pair")
	if p, ok := entity.ParsePair(pair); ok {
		pair = p.String()
	} else {
		h.badRequest(c, fmt.Errorf("%w: pair %q", domain.ErrInvalidRequest, pair))
		return
	}

	resp := dto.IngestResponse{Pair: pair, Results: make([]dto.IngestResult, 0, len(timeframes))}
	var lastErr error
	for _, tf := range timeframes {
		n, err := h.ingester.IngestOne(c.Request.Context(), pair, tf, req.OutputSize)
		if err != nil {
			if usecase.IsInvalidRequest(err) {
				h.badRequest(c, err)
				return
			}
			h.logger.Warn().Err(err).Str("pair", pair).Str("timeframe", tf).Msg("ingest failed")
			resp.Failed++
			resp.Results = append(resp.Results, dto.IngestResult{Timeframe: tf, Error: err.Error()})
			lastErr = err
			continue
		}
		resp.Upserted += n
		resp.Results = append(resp.Results, dto.IngestResult{Timeframe: tf, Upserted: n})
	}

	status := http.StatusOK
	if resp.Failed == len(timeframes) {
		status = upstreamStatus(lastErr)
	}
	c.JSON(status, resp)
}

// parseTime は RFC3339 と YYYY-MM-DD（表示タイムゾーンの0時）を受け付けます。
func (h *CandlesHandler) parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, h.loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: time %q", domain.ErrInvalidRequest, s)
}

func (h *CandlesHandler) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
}

func (h *CandlesHandler) writeError(c *gin.Context, err error) {
	if usecase.IsInvalidRequest(err) {
		h.badRequest(c, err)
		return
	}
	_ = c.Error(err)
	h.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("candles request failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
}

func upstreamStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case domain.IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
