package models

import (
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/budget"
)

// NotificationType identifies what a notification log entry was about.
type NotificationType string

const (
	NotificationTypeBudgetWarning  NotificationType = "budget_warning"
	NotificationTypeBudgetExceeded NotificationType = "budget_exceeded"
	NotificationTypeTest           NotificationType = "test"
)

// NotificationPreferences holds a user's budget alert settings. A row is
// created with defaults the first time preferences are read.
type NotificationPreferences struct {
	Base
	UserID                string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	BudgetWarningsEnabled bool   `gorm:"not null" json:"budget_warnings_enabled"`
	BudgetExceededEnabled bool   `gorm:"not null" json:"budget_exceeded_enabled"`
	WarningThreshold      int    `gorm:"not null" json:"warning_threshold"`
}

// Preferences converts the row for the threshold notifier.
func (p *NotificationPreferences) Preferences() budget.Preferences {
	return budget.Preferences{
		WarningEnabled:   p.BudgetWarningsEnabled,
		ExceededEnabled:  p.BudgetExceededEnabled,
		WarningThreshold: p.WarningThreshold,
	}
}

// NotificationLog records every notification attempt, successful or not.
type NotificationLog struct {
	Base
	UserID       string           `gorm:"type:uuid;not null;index" json:"user_id"`
	BudgetID     *string          `gorm:"type:uuid;index" json:"budget_id,omitempty"`
	Type         NotificationType `gorm:"size:50;not null" json:"notification_type"`
	Title        string           `gorm:"size:255;not null" json:"title"`
	Message      string           `gorm:"not null" json:"message"`
	Data         string           `json:"data,omitempty"`
	Success      bool             `gorm:"not null" json:"success"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// BudgetAlertState remembers the percentage seen at the last evaluation of a
// budget window so alerts fire only on upward crossings.
type BudgetAlertState struct {
	BudgetID       string          `gorm:"type:uuid;primaryKey"`
	WindowStart    time.Time       `gorm:"type:date;primaryKey"`
	LastPercentage decimal.Decimal `gorm:"type:numeric;not null"`
	// Version increases with every write; updates are conditional on it.
	Version   int `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// Status rebuilds the previous status the notifier compares against.
func (s *BudgetAlertState) Status() budget.Status {
	return budget.Status{PercentageUsed: s.LastPercentage, Tier: budget.TierFor(s.LastPercentage)}
}
