package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterInterface は、API呼び出しなどの操作の頻度を制限するインターフェースです。
type RateLimiterInterface interface {
	// WaitIfNeeded はトークンが得られるまで待機します。
	// コンテキストの期限内に得られない場合は待たずにエラーを返します。
	WaitIfNeeded(ctx context.Context) error
}

// RateLimiter はトークンバケットで API 呼び出しの頻度を制限します。
// 複数のゴルーチンから同時に利用できます。
type RateLimiter struct {
	lim *rate.Limiter
}

var _ RateLimiterInterface = (*RateLimiter)(nil)

// NewRateLimiter は interval あたり limit 回までの呼び出しを許可する RateLimiter を生成します。
// limit が 0 以下の場合は無制限です。
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	if limit <= 0 || interval <= 0 {
		return &RateLimiter{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RateLimiter{lim: rate.NewLimiter(rate.Every(interval/time.Duration(limit)), limit)}
}

// WaitIfNeeded はレートリミットの上限に達しているかを確認し、必要であれば待機します。
func (rl *RateLimiter) WaitIfNeeded(ctx context.Context) error {
	if err := rl.lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}
