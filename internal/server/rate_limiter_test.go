package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Burst(t *testing.T) {
	req := require.New(t)
	rl := newRateLimiter(3, time.Minute)

	req.True(rl.allow())
	req.True(rl.allow())
	req.True(rl.allow())
	req.False(rl.allow())
}

func TestRateLimiter_Refill(t *testing.T) {
	req := require.New(t)
	rl := newRateLimiter(2, 100*time.Millisecond)

	req.True(rl.allow())
	req.True(rl.allow())
	req.False(rl.allow())

	req.Eventually(rl.allow, time.Second, 10*time.Millisecond)
}

func TestRateLimiter_Invalid_Parameters(t *testing.T) {
	req := require.New(t)
	rl := newRateLimiter(0, 0)

	req.True(rl.allow())
	req.False(rl.allow())
}
