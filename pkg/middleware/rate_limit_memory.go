package middleware

import (
	"context"
	"sync"
	"time"
)

// SlidingWindowLimiter keeps request timestamps per key in process memory.
type SlidingWindowLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	window   time.Duration
	now      func() time.Time
}

func NewSlidingWindowLimiter(window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		requests: make(map[string][]time.Time),
		window:   window,
		now:      time.Now,
	}
}

func (rl *SlidingWindowLimiter) Allow(_ context.Context, key string, limit int) (Decision, error) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamps := rl.requests[key]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= limit {
		rl.requests[key] = valid
		return Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			RetryAfter: rl.window - now.Sub(valid[0]),
		}, nil
	}

	valid = append(valid, now)
	rl.requests[key] = valid

	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(valid),
	}, nil
}

// Cleanup drops keys whose newest request fell out of the window. It is
// run periodically by the scheduler.
func (rl *SlidingWindowLimiter) Cleanup() int {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, timestamps := range rl.requests {
		if len(timestamps) == 0 || now.Sub(timestamps[len(timestamps)-1]) >= rl.window {
			delete(rl.requests, key)
			removed++
		}
	}
	return removed
}

func (rl *SlidingWindowLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.requests)
}
