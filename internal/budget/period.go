// Package budget computes budget period windows, aggregates spending against
// them and decides when a change in spending should raise an alert.
//
// Everything in this package is a pure function of its arguments. Callers
// supply "today" and the expense rows; nothing here reads the clock or a
// database, so the functions are safe for concurrent use.
package budget

import (
	"fmt"
	"strings"
	"time"

	apperrors "expensetracker/internal/errors"
)

// PeriodType is the recurrence granularity of a budget.
type PeriodType string

const (
	Weekly  PeriodType = "WEEKLY"
	Monthly PeriodType = "MONTHLY"
)

// Valid reports whether p is a known period type.
func (p PeriodType) Valid() bool {
	return p == Weekly || p == Monthly
}

// ParsePeriodType accepts either case ("weekly", "MONTHLY").
func ParsePeriodType(s string) (PeriodType, error) {
	p := PeriodType(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", apperrors.WithMessage(apperrors.ErrInvalidArgument,
			fmt.Sprintf("unknown period type %q", s))
	}
	return p, nil
}

const day = 24 * time.Hour

// Date returns the calendar date y-m-d as UTC midnight.
func Date(year int, month time.Month, dayOfMonth int) time.Time {
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

// DateOf drops the time-of-day part of t, keeping the calendar date in t's
// own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// Window is one concrete instance of a recurring budget period. Both ends are
// inclusive calendar dates.
type Window struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// Contains reports whether the calendar date of t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	d := DateOf(t)
	return !d.Before(DateOf(w.Start)) && !d.After(DateOf(w.End))
}

// Days is the inclusive length of the window.
func (w Window) Days() int {
	return int(DateOf(w.End).Sub(DateOf(w.Start))/day) + 1
}

func (w Window) String() string {
	return w.Start.Format(time.DateOnly) + ".." + w.End.Format(time.DateOnly)
}

// GenerateWindows returns count contiguous windows of the given type, earliest
// first. Monthly windows cover whole calendar months starting with the month
// containing anchor. Weekly windows are seven-day spans starting on anchor.
//
// A count of zero yields an empty slice. A negative count or unknown period
// type yields ErrInvalidArgument.
func GenerateWindows(periodType PeriodType, anchor time.Time, count int) ([]Window, error) {
	if count < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidArgument,
			fmt.Sprintf("window count must not be negative, got %d", count))
	}
	if !periodType.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidArgument,
			fmt.Sprintf("unknown period type %q", periodType))
	}

	anchor = DateOf(anchor)
	windows := make([]Window, 0, count)
	for i := 0; i < count; i++ {
		windows = append(windows, nth(periodType, anchor, i))
	}
	return windows, nil
}

// WindowContaining returns the window of the recurrence anchored at anchor
// that contains date. Dates before the anchor resolve to earlier windows of
// the same recurrence.
func WindowContaining(periodType PeriodType, anchor, date time.Time) (Window, error) {
	if !periodType.Valid() {
		return Window{}, apperrors.WithMessage(apperrors.ErrInvalidArgument,
			fmt.Sprintf("unknown period type %q", periodType))
	}

	anchor, date = DateOf(anchor), DateOf(date)
	switch periodType {
	case Monthly:
		return nth(Monthly, date, 0), nil
	default:
		days := int(date.Sub(anchor) / day)
		weeks := days / 7
		if days < 0 && days%7 != 0 {
			weeks--
		}
		return nth(Weekly, anchor, weeks), nil
	}
}

func nth(periodType PeriodType, anchor time.Time, i int) Window {
	if periodType == Monthly {
		// Day 1 of month+i, then day 0 of the following month is its last day.
		start := Date(anchor.Year(), anchor.Month()+time.Month(i), 1)
		end := Date(start.Year(), start.Month()+1, 0)
		return Window{Start: start, End: end}
	}
	start := anchor.AddDate(0, 0, 7*i)
	return Window{Start: start, End: start.AddDate(0, 0, 6)}
}
