package notify

import (
	"context"

	"go.uber.org/zap"

	"expensetracker/internal/logger"
)

// LogDispatcher writes notifications to the application log. It is used when
// no broker is configured.
type LogDispatcher struct {
	log *zap.SugaredLogger
}

// NewLogDispatcher returns a LogDispatcher on the "notify" logger.
func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{log: logger.Named("notify")}
}

func (d *LogDispatcher) Dispatch(_ context.Context, msg Message) error {
	d.log.Infow("Budget notification",
		"user_id", msg.UserID,
		"budget_id", msg.BudgetID,
		"type", msg.Type,
		"title", msg.Title,
		"body", msg.Body,
	)
	return nil
}

func (d *LogDispatcher) Close() error { return nil }
