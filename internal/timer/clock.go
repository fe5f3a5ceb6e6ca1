package timer

import (
	"sync"
	"time"
)

// Clock supplies instants to timers. Instants from the system clock carry
// a monotonic reading, so differences are immune to wall-clock changes.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now returns the current instant.
func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock that only moves when told to.
// It is used by tests and by trace replay.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// Compile-time checks that both clocks implement Clock.
var (
	_ Clock = SystemClock{}
	_ Clock = (*ManualClock)(nil)
)

// NewManualClock returns a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual instant.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
