// Package clock supplies the current time to services so that "today" can be
// pinned in tests.
package clock

import "time"

// Clock reports the current instant and calendar date.
type Clock interface {
	Now() time.Time
	// Today returns the current calendar date as UTC midnight.
	Today() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

func (s System) Today() time.Time { return truncate(s.Now()) }

// Fixed always reports the same instant.
type Fixed struct {
	At time.Time
}

// NewFixed returns a Fixed clock set to midday UTC on the given date.
func NewFixed(year int, month time.Month, day int) Fixed {
	return Fixed{At: time.Date(year, month, day, 12, 0, 0, 0, time.UTC)}
}

func (f Fixed) Now() time.Time { return f.At.UTC() }

func (f Fixed) Today() time.Time { return truncate(f.At.UTC()) }

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
