package paging

import (
	"sync"
	"time"
)

// RateLimiter enforces a per-connection cooldown between operator pages.
// One timestamp per connection: much simpler than a counting window, and
// exactly what a "once a minute" rule needs.
type RateLimiter struct {
	mu       sync.Mutex
	lastPage map[string]time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		lastPage: make(map[string]time.Time),
	}
}

// TryConsume records a page attempt for connID. It returns false with
// the remaining cooldown when the previous page is still inside the
// window. Connections with no recorded page are always allowed.
func (rl *RateLimiter) TryConsume(connID string, window time.Duration) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if last, exists := rl.lastPage[connID]; exists {
		elapsed := now.Sub(last)
		if elapsed < window {
			return false, window - elapsed
		}
	}

	rl.lastPage[connID] = now
	return true, 0
}

// Forget drops the cooldown entry for a departed connection.
func (rl *RateLimiter) Forget(connID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.lastPage, connID)
}
