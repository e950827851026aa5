package budget

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "expensetracker/internal/errors"
)

// Warning thresholds a user may choose, in percent.
const (
	MinWarningThreshold     = 50
	MaxWarningThreshold     = 95
	DefaultWarningThreshold = 80
)

// Preferences are a user's alert settings.
type Preferences struct {
	WarningEnabled   bool
	ExceededEnabled  bool
	WarningThreshold int
}

// DefaultPreferences enables both alerts with an 80% warning.
func DefaultPreferences() Preferences {
	return Preferences{WarningEnabled: true, ExceededEnabled: true, WarningThreshold: DefaultWarningThreshold}
}

// Validate checks the warning threshold range.
func (p Preferences) Validate() error {
	if p.WarningThreshold < MinWarningThreshold || p.WarningThreshold > MaxWarningThreshold {
		return apperrors.WithMessage(apperrors.ErrInvalidArgument,
			fmt.Sprintf("warning threshold must be between %d and %d, got %d",
				MinWarningThreshold, MaxWarningThreshold, p.WarningThreshold))
	}
	return nil
}

// EventKind is the kind of alert raised by a threshold crossing.
type EventKind string

const (
	EventWarning  EventKind = "WARNING"
	EventExceeded EventKind = "EXCEEDED"
)

// Event is the payload handed to a notification dispatcher.
type Event struct {
	Kind            EventKind       `json:"kind"`
	CategoryID      string          `json:"category_id"`
	CurrentSpending decimal.Decimal `json:"current_spending"`
	BudgetAmount    decimal.Decimal `json:"budget_amount"`
	PercentageUsed  decimal.Decimal `json:"percentage_used"`
	ThresholdUsed   int             `json:"threshold_used"`
}

// Evaluate returns the alerts raised by moving from previous to current.
// previous is nil on the first evaluation of a window. An alert fires only
// when its threshold is crossed upward, never while spending stays above it.
// WARNING is listed before EXCEEDED when both fire.
func Evaluate(previous *Status, current Status, prefs Preferences) []EventKind {
	var kinds []EventKind

	warning := decimal.NewFromInt(int64(prefs.WarningThreshold))
	if prefs.WarningEnabled && crossed(previous, current, warning) {
		kinds = append(kinds, EventWarning)
	}
	if prefs.ExceededEnabled && crossed(previous, current, overBudgetPercent) {
		kinds = append(kinds, EventExceeded)
	}
	return kinds
}

// Crossings is Evaluate with the events filled in for limit.
func Crossings(limit Limit, previous *Status, current Status, prefs Preferences) []Event {
	kinds := Evaluate(previous, current, prefs)
	if len(kinds) == 0 {
		return nil
	}

	events := make([]Event, 0, len(kinds))
	for _, k := range kinds {
		threshold := 100
		if k == EventWarning {
			threshold = prefs.WarningThreshold
		}
		events = append(events, Event{
			Kind:            k,
			CategoryID:      limit.CategoryID,
			CurrentSpending: current.CurrentSpending,
			BudgetAmount:    limit.Amount,
			PercentageUsed:  current.PercentageUsed,
			ThresholdUsed:   threshold,
		})
	}
	return events
}

func crossed(previous *Status, current Status, threshold decimal.Decimal) bool {
	if current.PercentageUsed.LessThan(threshold) {
		return false
	}
	return previous == nil || previous.PercentageUsed.LessThan(threshold)
}
