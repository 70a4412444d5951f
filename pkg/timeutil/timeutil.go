// Package timeutil provides UTC calendar-day helpers.
// Quota windows, streaks and reset times are all computed on UTC calendar dates,
// so every helper here normalizes to UTC before looking at the date.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// Clock abstracts the current time so handlers can be tested at fixed instants.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the wall-clock time in UTC.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock is a settable clock for tests and replays.
type FixedClock struct {
	mu sync.RWMutex
	t  time.Time
}

// NewFixedClock creates a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t.UTC()}
}

// Now returns the frozen time.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// StartOfDayUTC returns midnight UTC of t's UTC calendar date.
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NextUTCMidnight returns the first instant of the UTC day after t.
func NextUTCMidnight(t time.Time) time.Time {
	return StartOfDayUTC(t).AddDate(0, 0, 1)
}

// SameUTCDay reports whether a and b fall on the same UTC calendar date.
func SameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetweenUTC returns the number of UTC calendar days from a to b.
// Negative when b is before a.
func DaysBetweenUTC(a, b time.Time) int {
	return int(StartOfDayUTC(b).Sub(StartOfDayUTC(a)).Hours() / 24)
}

// DateKey formats the UTC date of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// FormatRelative formats a future instant relative to now, e.g. "in 3h 20m".
func FormatRelative(now, t time.Time) string {
	d := t.Sub(now)
	if d <= 0 {
		return "now"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("in %dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("in %dm", m)
	default:
		return "in less than a minute"
	}
}
