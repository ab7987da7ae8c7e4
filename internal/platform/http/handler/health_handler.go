// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Probe は依存先（DB、Redis など）の疎通を確認します。
type Probe func(ctx context.Context) error

const probeTimeout = 2 * time.Second

// Health はサービスヘルスチェック用の /healthz エンドポイントを処理します。
// HTTPメソッドに応じて適切にレスポンスし、キャッシュを防止します。
func Health(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	switch c.Request.Method {
	case http.MethodHead:
		c.Status(http.StatusOK)
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// Ready は /readyz を処理します。いずれかの probe が失敗すると 503 を返します。
func Ready(probes map[string]Probe) gin.HandlerFunc {
	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")

		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(names))
		for _, name := range names {
			if err := probes[name](ctx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		body := gin.H{"status": "ok", "checks": checks}
		if status != http.StatusOK {
			body["status"] = "unavailable"
		}
		c.JSON(status, body)
	}
}
