package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"expensetracker/internal/budget"
	"expensetracker/internal/clock"
	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/logger"
	"expensetracker/internal/metrics"
	"expensetracker/internal/models"
)

// statePlaces is the precision alert state percentages are stored with.
// Thresholds are whole percentages, so truncating keeps every comparison
// against them unchanged.
const statePlaces = 4

// budgetMonitorService evaluates active budgets and notifies users when
// spending crosses one of their thresholds.
type budgetMonitorService struct {
	db            *gorm.DB
	clock         clock.Clock
	budgets       BudgetServicer
	notifications NotificationServicer
	concurrency   int
}

// NewBudgetMonitorService creates a new BudgetMonitorServicer. concurrency
// bounds how many users CheckAllUsers evaluates at once.
func NewBudgetMonitorService(db *gorm.DB, clk clock.Clock, budgets BudgetServicer, notifications NotificationServicer, concurrency int) BudgetMonitorServicer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &budgetMonitorService{
		db:            db,
		clock:         clk,
		budgets:       budgets,
		notifications: notifications,
		concurrency:   concurrency,
	}
}

// EvaluateCategory checks the user's active budgets for one category.
func (s *budgetMonitorService) EvaluateCategory(ctx context.Context, userID, categoryID string) ([]AlertResult, error) {
	return s.evaluate(ctx, userID, BudgetFilter{CategoryID: &categoryID, ActiveOnly: true})
}

// CheckUserBudgetAlerts checks every active budget of the user.
func (s *budgetMonitorService) CheckUserBudgetAlerts(ctx context.Context, userID string) ([]AlertResult, error) {
	return s.evaluate(ctx, userID, BudgetFilter{ActiveOnly: true})
}

func (s *budgetMonitorService) evaluate(ctx context.Context, userID string, filter BudgetFilter) ([]AlertResult, error) {
	budgets, err := s.budgets.GetBudgetsWithStatus(userID, filter)
	if err != nil {
		return nil, err
	}
	if len(budgets) == 0 {
		return []AlertResult{}, nil
	}

	prefs, err := s.notifications.GetPreferences(userID)
	if err != nil {
		return nil, err
	}

	results := make([]AlertResult, 0)
	for i := range budgets {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		found, err := s.evaluateBudget(ctx, &budgets[i], prefs.Preferences())
		if err != nil {
			return results, err
		}
		results = append(results, found...)
	}
	return results, nil
}

// maxClaimAttempts bounds how often an evaluation retries after losing a
// race for the same budget window.
const maxClaimAttempts = 5

// evaluateBudget compares a budget's status with the one stored at its last
// evaluation, stores the new status and notifies on upward crossings. The
// status is stored before dispatching, so a crossing seen by two concurrent
// evaluations is notified once.
func (s *budgetMonitorService) evaluateBudget(ctx context.Context, b *BudgetWithStatus, prefs budget.Preferences) ([]AlertResult, error) {
	var events []budget.Event
	for attempt := 1; ; attempt++ {
		claimed, found, err := s.claimCrossings(b, prefs)
		if err != nil {
			return nil, err
		}
		if claimed {
			events = found
			break
		}
		if attempt == maxClaimAttempts {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer,
				fmt.Errorf("alert state for budget %s kept changing", b.ID))
		}
	}

	name := categoryName(&b.Budget)
	results := make([]AlertResult, 0, len(events))
	for _, ev := range events {
		metrics.BudgetAlerts.WithLabelValues(string(ev.Kind)).Inc()

		result := AlertResult{
			BudgetID:     b.ID,
			CategoryID:   b.CategoryID,
			CategoryName: name,
			Event:        ev,
		}
		entry, err := s.notifications.SendBudgetNotification(ctx, b.UserID, BudgetNotification{
			BudgetID:     b.ID,
			CategoryName: name,
			Event:        ev,
		})
		switch {
		case err != nil:
			result.Error = err.Error()
			if !errors.Is(err, apperrors.ErrDispatchFailed) {
				return results, err
			}
		case entry != nil:
			result.Delivered = true
		}
		results = append(results, result)
	}
	return results, nil
}

// claimCrossings stores the budget's current status for its window and
// returns the crossings since the stored one. The write is conditional on the
// row being unchanged since it was read; claimed is false when another
// evaluation got there first and the caller should read again.
func (s *budgetMonitorService) claimCrossings(b *BudgetWithStatus, prefs budget.Preferences) (bool, []budget.Event, error) {
	windowStart := budget.DateOf(b.StartDate)
	current := b.exact
	pct := current.PercentageUsed.Truncate(statePlaces)
	now := s.clock.Now()

	var state models.BudgetAlertState
	err := s.db.Where("budget_id = ? AND window_start = ?", b.ID, windowStart).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		events := budget.Crossings(b.Limit(), nil, current, prefs)
		res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.BudgetAlertState{
			BudgetID:       b.ID,
			WindowStart:    windowStart,
			LastPercentage: pct,
			Version:        1,
			UpdatedAt:      now,
		})
		if res.Error != nil {
			return false, nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		return res.RowsAffected == 1, events, nil
	}
	if err != nil {
		return false, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if state.LastPercentage.Equal(pct) {
		return true, nil, nil
	}

	previous := state.Status()
	events := budget.Crossings(b.Limit(), &previous, current, prefs)
	res := s.db.Model(&models.BudgetAlertState{}).
		Where("budget_id = ? AND window_start = ? AND version = ?", b.ID, windowStart, state.Version).
		Updates(map[string]interface{}{
			"last_percentage": pct,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	return res.RowsAffected == 1, events, nil
}

// CheckAllUsers evaluates every user with an active budget. A failure for one
// user is recorded in the report and does not stop the sweep.
func (s *budgetMonitorService) CheckAllUsers(ctx context.Context) (*SweepReport, error) {
	started := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(started).Seconds()) }()

	today := s.clock.Today()
	var userIDs []string
	if err := s.db.Model(&models.Budget{}).
		Where("start_date <= ? AND end_date >= ?", today, today).
		Distinct().
		Pluck("user_id", &userIDs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	sort.Strings(userIDs)

	log := logger.Named("budget-monitor")
	report := &SweepReport{
		Timestamp:   s.clock.Now(),
		UserResults: make([]UserSweepResult, len(userIDs)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, userID := range userIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result := UserSweepResult{UserID: userID}
			alerts, err := s.CheckUserBudgetAlerts(gctx, userID)
			result.AlertsFound = len(alerts)
			for _, a := range alerts {
				if a.Delivered {
					result.NotificationsSent++
				}
			}
			if err != nil {
				result.Error = err.Error()
				log.Errorw("budget check failed", "user_id", userID, "error", err)
			}

			mu.Lock()
			report.UserResults[i] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range report.UserResults {
		report.TotalUsersChecked++
		report.TotalNotificationsSent += r.NotificationsSent
		if r.Error != "" {
			report.FailedUsers++
		}
	}

	log.Infow("budget sweep finished",
		"users_checked", report.TotalUsersChecked,
		"notifications_sent", report.TotalNotificationsSent,
		"failed_users", report.FailedUsers,
	)
	return report, nil
}

// GetBudgetStatusForUser reports every active budget of the user without
// sending anything.
func (s *budgetMonitorService) GetBudgetStatusForUser(userID string) (*UserBudgetStatus, error) {
	budgets, err := s.budgets.GetBudgetsWithStatus(userID, BudgetFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	return &UserBudgetStatus{
		UserID:    userID,
		Summary:   summarize(budgets),
		Budgets:   budgets,
		Timestamp: s.clock.Now(),
	}, nil
}
