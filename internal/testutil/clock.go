package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant returned by a StepClock.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// StepClock is a deterministic wall clock for tests. Each call to Now
// advances it by a fixed step, so recorded refresh times are reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	step time.Duration
	n    int64
}

// NewStepClock creates a clock whose first Now() returns Epoch.
func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{step: step}
}

// Now returns the current instant and advances the clock by one step.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := Epoch.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Calls returns how many times Now has been called.
func (c *StepClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock to Epoch.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
