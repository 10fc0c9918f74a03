// Package clock provides a time source that can be swapped out in tests.
package clock

import "time"

// Clock provides time operations that can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// Real implements Clock using the system clock.
type Real struct{}

// New creates a new Real clock.
func New() *Real {
	return &Real{}
}

// Now returns the current time.
func (c *Real) Now() time.Time {
	return time.Now()
}

// Mock is a Clock for tests whose current time only moves when told to.
type Mock struct {
	CurrentTime time.Time
}

var _ Clock = (*Mock)(nil)

// NewMock creates a Mock set to the given time.
func NewMock(t time.Time) *Mock {
	return &Mock{CurrentTime: t}
}

// Now returns the mocked current time.
func (c *Mock) Now() time.Time {
	return c.CurrentTime
}

// Advance moves the clock forward by the given duration.
func (c *Mock) Advance(d time.Duration) {
	c.CurrentTime = c.CurrentTime.Add(d)
}
