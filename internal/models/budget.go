package models

import (
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/budget"
)

// Budget caps spending in one category between StartDate and EndDate.
type Budget struct {
	Base
	UserID     string            `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID string            `gorm:"type:uuid;not null;index" json:"category_id"`
	Amount     decimal.Decimal   `gorm:"type:decimal(10,2);not null" json:"amount" swaggertype:"string"`
	PeriodType budget.PeriodType `gorm:"size:10;not null" json:"period_type"`
	StartDate  time.Time         `gorm:"type:date;not null" json:"start_date"`
	EndDate    time.Time         `gorm:"type:date;not null" json:"end_date"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// Window is the date range the budget applies to.
func (b *Budget) Window() budget.Window {
	return budget.Window{Start: budget.DateOf(b.StartDate), End: budget.DateOf(b.EndDate)}
}

// Limit is the budget as seen by the spend aggregator.
func (b *Budget) Limit() budget.Limit {
	return budget.Limit{CategoryID: b.CategoryID, Amount: b.Amount}
}

// ActiveOn reports whether day falls inside the budget's dates.
func (b *Budget) ActiveOn(day time.Time) bool {
	return b.Window().Contains(day)
}
