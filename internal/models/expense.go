package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a single purchase recorded by a user.
type Expense struct {
	Base
	UserID       string          `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID   string          `gorm:"type:uuid;not null;index" json:"category_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount" swaggertype:"string"`
	Description  string          `json:"description"`
	Date         time.Time       `gorm:"type:date;not null;index" json:"date"`
	ReceiptURL   *string         `json:"receipt_url,omitempty"`
	AIConfidence *float64        `json:"ai_confidence,omitempty"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
