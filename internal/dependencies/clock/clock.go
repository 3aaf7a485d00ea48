package clock

import "time"

// Clock provides time operations that can be mocked for testing
type Clock interface {
	Now() time.Time
	// AfterFunc runs fn after the given duration has elapsed
	AfterFunc(d time.Duration, fn func())
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// AfterFunc runs fn on its own goroutine after d has elapsed
func (c *RealClock) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}
