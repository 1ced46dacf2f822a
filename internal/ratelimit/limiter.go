package ratelimit

import (
	"context"
	"time"
)

// Limiter guards a keyed window of requests. The broker uses it per source IP
// in front of the per-client quota, not for quota accounting itself.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)

	Remaining(ctx context.Context, key string) (int, error)

	Limit() int

	Reset(ctx context.Context, key string) (time.Time, error)
}

// Creates a limiter for the configured algorithm
func NewLimiter(redis RedisCounter, algorithm string, limit int, window time.Duration) Limiter {
	switch algorithm {
	case "sliding_window":
		return NewSlidingWindow(redis, limit, window)
	default:
		return NewFixedWindow(redis, limit, window)
	}
}
