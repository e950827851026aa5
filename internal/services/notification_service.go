package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"expensetracker/internal/budget"
	"expensetracker/internal/clock"
	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/logger"
	"expensetracker/internal/metrics"
	"expensetracker/internal/models"
	"expensetracker/internal/notify"
)

// Log listing limits.
const (
	DefaultLogLimit = 50
	MaxLogLimit     = 200
)

// notificationService handles notification preferences, delivery and history.
type notificationService struct {
	db         *gorm.DB
	clock      clock.Clock
	dispatcher notify.Dispatcher
	printer    *message.Printer
	symbol     string
}

// NewNotificationService creates a new NotificationServicer. Amounts in
// messages are shown in currencyCode, an ISO 4217 code; an unknown code falls
// back to USD.
func NewNotificationService(db *gorm.DB, clk clock.Clock, dispatcher notify.Dispatcher, currencyCode string) NotificationServicer {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		logger.Get().Warnw("unknown currency, falling back to USD", "currency", currencyCode, "error", err)
		unit = currency.USD
	}
	return &notificationService{
		db:         db,
		clock:      clk,
		dispatcher: dispatcher,
		printer:    message.NewPrinter(language.English),
		symbol:     fmt.Sprint(currency.NarrowSymbol(unit)),
	}
}

// GetPreferences returns the user's preferences, creating the defaults on
// first access.
func (s *notificationService) GetPreferences(userID string) (*models.NotificationPreferences, error) {
	var prefs models.NotificationPreferences
	err := s.db.Where("user_id = ?", userID).First(&prefs).Error
	if err == nil {
		return &prefs, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	defaults := budget.DefaultPreferences()
	prefs = models.NotificationPreferences{
		UserID:                userID,
		BudgetWarningsEnabled: defaults.WarningEnabled,
		BudgetExceededEnabled: defaults.ExceededEnabled,
		WarningThreshold:      defaults.WarningThreshold,
	}
	// A concurrent first access may have created the row already.
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&prefs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	var stored models.NotificationPreferences
	if err := s.db.Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &stored, nil
}

// UpdatePreferences changes the given preference fields.
func (s *notificationService) UpdatePreferences(userID string, update PreferencesUpdate) (*models.NotificationPreferences, error) {
	prefs, err := s.GetPreferences(userID)
	if err != nil {
		return nil, err
	}

	if update.BudgetWarningsEnabled != nil {
		prefs.BudgetWarningsEnabled = *update.BudgetWarningsEnabled
	}
	if update.BudgetExceededEnabled != nil {
		prefs.BudgetExceededEnabled = *update.BudgetExceededEnabled
	}
	if update.WarningThreshold != nil {
		prefs.WarningThreshold = *update.WarningThreshold
	}
	if err := prefs.Preferences().Validate(); err != nil {
		return nil, apperrors.ErrInvalidThreshold
	}

	if err := s.db.Model(prefs).Select("budget_warnings_enabled", "budget_exceeded_enabled", "warning_threshold").
		Updates(prefs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return prefs, nil
}

// GetLogs returns the user's most recent notification log entries.
func (s *notificationService) GetLogs(userID string, limit int) ([]models.NotificationLog, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}

	var logs []models.NotificationLog
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if logs == nil {
		logs = []models.NotificationLog{}
	}
	return logs, nil
}

// SendBudgetNotification tells the user about a threshold crossing. It
// returns a nil log when the user has that kind of alert switched off. A
// failed dispatch is still logged and returns ErrDispatchFailed.
func (s *notificationService) SendBudgetNotification(ctx context.Context, userID string, n BudgetNotification) (*models.NotificationLog, error) {
	prefs, err := s.GetPreferences(userID)
	if err != nil {
		return nil, err
	}

	var (
		kind        models.NotificationType
		title, body string
	)
	ev := n.Event
	switch ev.Kind {
	case budget.EventWarning:
		if !prefs.BudgetWarningsEnabled {
			return nil, nil
		}
		kind = models.NotificationTypeBudgetWarning
		title = fmt.Sprintf("Budget Warning: %s", n.CategoryName)
		body = s.printer.Sprintf("You've spent %s (%v%%) of your %s budget for %s.",
			s.money(ev.CurrentSpending), s.percent(ev.PercentageUsed), s.money(ev.BudgetAmount), n.CategoryName)
	case budget.EventExceeded:
		if !prefs.BudgetExceededEnabled {
			return nil, nil
		}
		kind = models.NotificationTypeBudgetExceeded
		title = fmt.Sprintf("Budget Exceeded: %s", n.CategoryName)
		body = s.printer.Sprintf("You've exceeded your %s budget for %s by %s.",
			s.money(ev.BudgetAmount), n.CategoryName, s.money(ev.CurrentSpending.Sub(ev.BudgetAmount)))
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidArgument, fmt.Sprintf("unknown event kind %q", ev.Kind))
	}

	data, err := json.Marshal(map[string]interface{}{
		"type":             kind,
		"budget_id":        n.BudgetID,
		"category_id":      ev.CategoryID,
		"category_name":    n.CategoryName,
		"current_spending": ev.CurrentSpending.StringFixed(2),
		"budget_amount":    ev.BudgetAmount.StringFixed(2),
		"percentage_used":  ev.PercentageUsed.Truncate(displayPlaces).String(),
		"threshold_used":   ev.ThresholdUsed,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	budgetID := n.BudgetID
	msg := notify.Message{
		UserID:    userID,
		BudgetID:  budgetID,
		Type:      string(kind),
		Title:     title,
		Body:      body,
		Tag:       "budget-" + budgetID,
		Event:     ev,
		CreatedAt: s.clock.Now(),
	}
	return s.deliver(ctx, msg, &models.NotificationLog{
		UserID:   userID,
		BudgetID: &budgetID,
		Type:     kind,
		Title:    title,
		Message:  body,
		Data:     string(data),
	})
}

// SendTestNotification sends a free-form message so users can check their
// delivery setup.
func (s *notificationService) SendTestNotification(ctx context.Context, userID, title, body string) (*models.NotificationLog, error) {
	if title == "" {
		title = "Test Notification"
	}
	if body == "" {
		body = "This is a test notification from Expense Tracker."
	}

	msg := notify.Message{
		UserID:    userID,
		Type:      string(models.NotificationTypeTest),
		Title:     title,
		Body:      body,
		Tag:       "test",
		CreatedAt: s.clock.Now(),
	}
	return s.deliver(ctx, msg, &models.NotificationLog{
		UserID:  userID,
		Type:    models.NotificationTypeTest,
		Title:   title,
		Message: body,
	})
}

// deliver dispatches msg and records the attempt in entry.
func (s *notificationService) deliver(ctx context.Context, msg notify.Message, entry *models.NotificationLog) (*models.NotificationLog, error) {
	dispatchErr := s.dispatcher.Dispatch(ctx, msg)
	entry.Success = dispatchErr == nil
	if dispatchErr != nil {
		entry.ErrorMessage = dispatchErr.Error()
		metrics.NotificationsDispatched.WithLabelValues("failure").Inc()
		logger.Get().Warnw("notification dispatch failed",
			"error", dispatchErr,
			"user_id", msg.UserID,
			"type", msg.Type,
		)
	} else {
		metrics.NotificationsDispatched.WithLabelValues("success").Inc()
	}

	if err := s.db.Create(entry).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if dispatchErr != nil {
		return entry, apperrors.Wrap(apperrors.ErrDispatchFailed, dispatchErr)
	}
	return entry, nil
}

// money renders d rounded to cents without passing through float64.
func (s *notificationService) money(d decimal.Decimal) string {
	return s.symbol + s.fixed(d.Round(2), 2)
}

// percent is the value shown in messages, truncated to one decimal.
func (s *notificationService) percent(d decimal.Decimal) string {
	return s.fixed(d.Truncate(1), 1)
}

// fixed prints d, which has at most places fractional digits, with the whole
// part grouped for the printer's locale.
func (s *notificationService) fixed(d decimal.Decimal, places int32) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	whole := d.Truncate(0)
	frac := d.Sub(whole).Shift(places).IntPart()
	return fmt.Sprintf("%s%s.%0*d", sign, s.printer.Sprint(number.Decimal(whole.IntPart())), int(places), frac)
}
