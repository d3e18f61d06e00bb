// Package server throttles inbound frames per connection so that one client
// cannot flood the relay.
package server

import (
	"time"

	"golang.org/x/time/rate"
)

type rateLimiter struct {
	limiter *rate.Limiter
}

// newRateLimiter allows burst frames at once, refilled evenly over interval.
func newRateLimiter(burst int, interval time.Duration) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	limit := rate.Limit(float64(burst) / interval.Seconds())
	return &rateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

func (rl *rateLimiter) allow() bool {
	return rl.limiter.Allow()
}
