package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	candleshandler "fx_backend/internal/feature/candles/transport/handler"
	"fx_backend/internal/platform/http/handler"
	"fx_backend/internal/platform/http/middleware"
	jwtmw "fx_backend/internal/platform/jwt"
)

// Deps are the handlers and settings the router mounts.
type Deps struct {
	Candles   *candleshandler.CandlesHandler
	Probes    map[string]handler.Probe
	Metrics   http.Handler
	JWTSecret string
	Logger    zerolog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(d.Logger), middleware.Recovery(d.Logger))

	// 認証不要
	// 導通確認用
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)
	r.OPTIONS("/healthz", handler.Health)
	r.GET("/readyz", handler.Ready(d.Probes))
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	candles := r.Group("/candles/:pair")
	{
		candles.GET("", d.Candles.GetCandles)
		candles.GET("/history", d.Candles.GetHistory)
		candles.GET("/resampled", d.Candles.GetResampled)
		// 書き込みは JWT 必須
		candles.POST("/ingest", jwtmw.AuthRequired(d.JWTSecret), d.Candles.PostIngest)
	}

	return r
}
