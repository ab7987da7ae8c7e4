// Package domain holds the error vocabulary shared by the candles feature.
package domain

import (
	"context"
	"errors"
)

var (
	// ErrInvalidRequest marks caller mistakes: unknown pair or timeframe, bad limits.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRateLimited is returned when the upstream or the local request budget refuses a call.
	ErrRateLimited = errors.New("upstream rate limited")
	// ErrUpstreamUnavailable covers transport failures, timeouts and upstream 5xx/error bodies.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrMalformedPayload is returned when an upstream response cannot be decoded into candles.
	ErrMalformedPayload = errors.New("malformed upstream payload")
)

// IsUpstreamFailure reports whether err came from the live data source or its deadline.
func IsUpstreamFailure(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrMalformedPayload)
}
