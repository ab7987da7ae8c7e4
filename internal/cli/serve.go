package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"fx_backend/internal/app/router"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.App.Environment == "production" {
			gin.SetMode(gin.ReleaseMode)
		}

		c, err := buildContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			if err := c.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close resources")
			}
		}()

		if cfg.HTTP.JWTSecret == "" {
			log.Warn().Msg("http.jwt_secret is not set; POST /candles/:pair/ingest is disabled")
		}

		engine := router.NewRouter(router.Deps{
			Candles:   c.Handler,
			Probes:    c.Probes(),
			Metrics:   c.Metrics.Handler(),
			JWTSecret: cfg.HTTP.JWTSecret,
			Logger:    log,
		})
		return listen(cmd.Context(), &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		}, cfg.HTTP.ShutdownTimeout)
	},
}

// listen serves until ctx is cancelled, then drains in-flight requests within grace.
func listen(ctx context.Context, srv *http.Server, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
