package bridge

import (
	"sync"
	"time"
)

// Throttle is a per-channel sliding window limiter for chat input.
type Throttle struct {
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time // channelID -> recent command times
	mu          sync.Mutex
	now         func() time.Time
}

func NewThrottle(maxRequests int, window time.Duration) *Throttle {
	return &Throttle{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
		now:         time.Now,
	}
}

// Allow records one command from the channel and reports whether it fits
// the window.
func (t *Throttle) Allow(channelID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	cutoff := now.Add(-t.window)

	timestamps := t.requests[channelID]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= t.maxRequests {
		t.requests[channelID] = valid
		return false
	}
	t.requests[channelID] = append(valid, now)
	return true
}

// Forget drops a channel's history once the channel is gone.
func (t *Throttle) Forget(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.requests, channelID)
}
