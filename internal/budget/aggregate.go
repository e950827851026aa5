package budget

import (
	"time"

	"github.com/shopspring/decimal"

	apperrors "expensetracker/internal/errors"
)

// Tier classifies how much of a budget has been used.
type Tier string

const (
	OnTrack    Tier = "ON_TRACK"
	NearLimit  Tier = "NEAR_LIMIT"
	OverBudget Tier = "OVER_BUDGET"
)

// percentPrecision is the number of fractional digits kept in PercentageUsed.
// The quotient is truncated, never rounded up, so comparing it against a whole
// percentage gives the same answer as comparing the exact ratio.
const percentPrecision = 16

var (
	hundred           = decimal.NewFromInt(100)
	nearLimitPercent  = decimal.NewFromInt(80)
	overBudgetPercent = hundred
)

// Spend is the part of an expense row the aggregator looks at.
type Spend struct {
	CategoryID string
	Amount     decimal.Decimal
	Date       time.Time
}

// Limit is the part of a budget row the aggregator looks at.
type Limit struct {
	CategoryID string
	Amount     decimal.Decimal
}

// Status is a budget's spending snapshot for one window.
type Status struct {
	CurrentSpending decimal.Decimal `json:"current_spending"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	PercentageUsed  decimal.Decimal `json:"percentage_used"`
	Tier            Tier            `json:"status"`
}

// Aggregate sums the spends that match limit's category and fall inside
// window, and derives the remaining amount, percentage and tier.
//
// A zero limit amount returns ErrDivisionByZero; a negative one returns
// ErrInvalidArgument.
func Aggregate(limit Limit, window Window, spends []Spend) (Status, error) {
	if limit.Amount.IsZero() {
		return Status{}, apperrors.ErrDivisionByZero
	}
	if limit.Amount.IsNegative() {
		return Status{}, apperrors.WithMessage(apperrors.ErrInvalidArgument, "budget amount must be positive")
	}

	spent := decimal.Zero
	for _, s := range spends {
		if s.CategoryID != limit.CategoryID || !window.Contains(s.Date) {
			continue
		}
		spent = spent.Add(s.Amount)
	}

	pct := Percentage(spent, limit.Amount)
	return Status{
		CurrentSpending: spent,
		RemainingAmount: limit.Amount.Sub(spent),
		PercentageUsed:  pct,
		Tier:            TierFor(pct),
	}, nil
}

// Percentage returns spent / amount * 100 truncated to percentPrecision
// fractional digits. amount must be non-zero.
func Percentage(spent, amount decimal.Decimal) decimal.Decimal {
	q, _ := spent.Mul(hundred).QuoRem(amount, percentPrecision)
	return q
}

// TierFor maps a percentage to its tier. 80 is NEAR_LIMIT and 100 is
// OVER_BUDGET.
func TierFor(percentage decimal.Decimal) Tier {
	switch {
	case percentage.GreaterThanOrEqual(overBudgetPercent):
		return OverBudget
	case percentage.GreaterThanOrEqual(nearLimitPercent):
		return NearLimit
	default:
		return OnTrack
	}
}
