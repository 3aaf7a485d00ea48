package mocks

import (
	"sort"
	"time"

	"github.com/klubhuset/backend/internal/dependencies/clock"
)

// MockClock is a mock implementation of Clock for testing
type MockClock struct {
	CurrentTime time.Time

	pending []pendingTimer
}

type pendingTimer struct {
	at time.Time
	fn func()
}

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{CurrentTime: t}
}

// Now returns the mocked current time
func (c *MockClock) Now() time.Time {
	return c.CurrentTime
}

// AfterFunc queues fn to run when the clock has been advanced past d
func (c *MockClock) AfterFunc(d time.Duration, fn func()) {
	c.pending = append(c.pending, pendingTimer{at: c.CurrentTime.Add(d), fn: fn})
}

// Advance moves the clock forward by the given duration and fires any
// queued timers that have come due, in deadline order, on the calling
// goroutine.
func (c *MockClock) Advance(d time.Duration) {
	c.CurrentTime = c.CurrentTime.Add(d)

	sort.SliceStable(c.pending, func(i, j int) bool {
		return c.pending[i].at.Before(c.pending[j].at)
	})
	var remaining []pendingTimer
	for _, timer := range c.pending {
		if timer.at.After(c.CurrentTime) {
			remaining = append(remaining, timer)
			continue
		}
		timer.fn()
	}
	c.pending = remaining
}
