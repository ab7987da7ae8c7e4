// Package middleware holds gin middleware shared by every route.
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderRequestID  = "X-Request-ID"
	ContextRequestID = "requestID"
)

// RequestID reuses an inbound X-Request-ID or mints a UUID, and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger writes one structured line per request; 5xx at error level, 4xx at warn.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Warn()
		default:
			ev = log.Info()
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ev.Str("request_id", c.GetString(ContextRequestID)).
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP())
		if len(c.Errors) > 0 {
			ev.Str("errors", c.Errors.String())
		}
		ev.Msg("http request")
	}
}

// Recovery converts panics into a 500 JSON body and logs the panic value.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Str("request_id", c.GetString(ContextRequestID)).
					Interface("panic", rec).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}
