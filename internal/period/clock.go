package period

import (
	"sync"
	"time"
)

// Clock provides the current time for window calculations.
// This interface allows time to be fixed in tests.
type Clock interface {
	Now() time.Time
}

// RealClock reports wall-clock time in a configured location.
type RealClock struct {
	Location *time.Location
}

// Now returns the current system time in the clock's location.
func (c RealClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock returns a settable instant. It is safe for concurrent use.
type FixedClock struct {
	mu          sync.Mutex
	CurrentTime time.Time
}

// Now returns the fixed time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CurrentTime
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CurrentTime = t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CurrentTime = c.CurrentTime.Add(d)
}
