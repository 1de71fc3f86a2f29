package testfixtures

import (
	"sync"
	"time"

	"github.com/example/canteen-reservation/internal/civildate"
	"github.com/example/canteen-reservation/internal/mealwindow"
)

// Clock is a manually driven time source for tests. The zero start falls
// back to the shared ReferenceTime, which sits inside the lunch window.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the instant the clock currently tracks.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc adapts the clock to the now injection point of the services.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set pins the clock to the provided time.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward and returns the updated time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.current = c.current.Add(d)
	updated := c.current
	c.mu.Unlock()
	return updated
}

// Current is Now under a name that signals no time progression.
func (c *Clock) Current() time.Time {
	return c.Now()
}

// SetMealWindow pins the clock inside the given meal window on the day it
// currently tracks, or outside every window for CategoryNone.
func (c *Clock) SetMealWindow(category mealwindow.Category) time.Time {
	hour := 15
	switch category {
	case mealwindow.CategoryBreakfast:
		hour = 7
	case mealwindow.CategoryLunch:
		hour = 12
	case mealwindow.CategoryDinner:
		hour = 18
	}

	c.mu.Lock()
	day := c.current.In(civildate.ReferenceLocation())
	c.current = time.Date(day.Year(), day.Month(), day.Day(), hour, 30, 0, 0, civildate.ReferenceLocation())
	updated := c.current
	c.mu.Unlock()
	return updated
}
