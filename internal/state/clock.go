package state

import "sync"

// Clock is a logical clock. Tick values are strictly increasing, which makes
// them usable both as revision numbers and as freshness tokens.
type Clock struct {
	counter uint64
	mu      sync.Mutex
}

// Tick increments the clock and returns the new value
func (c *Clock) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	return c.counter
}
