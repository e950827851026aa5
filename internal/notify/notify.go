// Package notify delivers budget notifications to an outbound transport.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"expensetracker/internal/budget"
)

// Message is a rendered notification for one user.
type Message struct {
	UserID    string       `json:"user_id"`
	BudgetID  string       `json:"budget_id,omitempty"`
	Type      string       `json:"type"`
	Title     string       `json:"title"`
	Body      string       `json:"body"`
	Tag       string       `json:"tag,omitempty"`
	Event     budget.Event `json:"event"`
	CreatedAt time.Time    `json:"created_at"`
}

// ToJSON encodes the message for the wire.
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageFromJSON decodes a message produced by ToJSON.
func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Dispatcher hands messages to a delivery transport.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
	Close() error
}
