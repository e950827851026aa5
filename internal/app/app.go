// Package app builds the service graph shared by the binaries.
package app

import (
	"fmt"

	"gorm.io/gorm"

	"expensetracker/internal/clock"
	"expensetracker/internal/config"
	"expensetracker/internal/logger"
	"expensetracker/internal/notify"
	"expensetracker/internal/services"
)

// Services holds every service the binaries need.
type Services struct {
	Users         services.UserServicer
	Categories    services.CategoryServicer
	Expenses      services.ExpenseServicer
	Budgets       services.BudgetServicer
	Notifications services.NotificationServicer
	Monitor       services.BudgetMonitorServicer
	Analytics     services.AnalyticsServicer
	Audit         services.AuditServicer
}

// NewDispatcher publishes to RabbitMQ when AMQP_URL is set and logs
// notifications otherwise.
func NewDispatcher(cfg *config.Config) (notify.Dispatcher, error) {
	if cfg.AMQPURL == "" {
		logger.Get().Warn("AMQP_URL not set, notifications will only be logged")
		return notify.NewLogDispatcher(), nil
	}

	d, err := notify.NewAMQPDispatcher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to connect notification broker: %w", err)
	}
	return d, nil
}

// NewServices wires the services against db.
func NewServices(db *gorm.DB, cfg *config.Config, clk clock.Clock, dispatcher notify.Dispatcher) *Services {
	categories := services.NewCategoryService(db)
	budgets := services.NewBudgetService(db, clk, categories)
	notifications := services.NewNotificationService(db, clk, dispatcher, cfg.DefaultCurrency)
	monitor := services.NewBudgetMonitorService(db, clk, budgets, notifications, cfg.MonitorConcurrency)

	return &Services{
		Users:         services.NewUserService(db, clk),
		Categories:    categories,
		Expenses:      services.NewExpenseService(db, clk, categories, monitor),
		Budgets:       budgets,
		Notifications: notifications,
		Monitor:       monitor,
		Analytics:     services.NewAnalyticsService(db, clk),
		Audit:         services.NewAuditService(db),
	}
}
