package voice

import (
	"sync"
	"time"
)

// Cooldown gates channel creation per user. State is process-local; losing it
// on restart only means a user can create again immediately, which is fine.
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

// NewCooldown creates a tracker with the given admission window.
func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow reports whether the user may create a channel now. When admitted the
// attempt is recorded, so at most one attempt per user passes within a
// window. A denied attempt does not move the timestamp.
func (c *Cooldown) Allow(userID string) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if at, ok := c.last[userID]; ok {
		if elapsed := now.Sub(at); elapsed < c.window {
			return false, c.window - elapsed
		}
	}
	c.last[userID] = now
	return true, 0
}
