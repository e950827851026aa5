package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"expensetracker/internal/budget"
	"expensetracker/internal/clock"
	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/logger"
	"expensetracker/internal/models"
	"expensetracker/internal/pagination"
)

// maxAmount is the first value a decimal(10,2) column cannot hold.
var maxAmount = decimal.NewFromInt(100_000_000)

// validAmount reports whether d is a positive money amount with at most two
// decimal places that fits the amount columns.
func validAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Truncate(2)) && d.LessThan(maxAmount)
}

// expenseService handles expense-related business logic.
type expenseService struct {
	db         *gorm.DB
	clock      clock.Clock
	categories CategoryServicer
	monitor    BudgetMonitorServicer
}

// NewExpenseService creates a new ExpenseServicer. monitor may be nil, in
// which case mutations do not trigger budget alerts.
func NewExpenseService(db *gorm.DB, clk clock.Clock, categories CategoryServicer, monitor BudgetMonitorServicer) ExpenseServicer {
	return &expenseService{
		db:         db,
		clock:      clk,
		categories: categories,
		monitor:    monitor,
	}
}

// CreateExpense records a new expense for the user
func (s *expenseService) CreateExpense(ctx context.Context, userID string, input ExpenseInput) (*models.Expense, error) {
	if input.Date.IsZero() {
		input.Date = s.clock.Today()
	}
	if err := s.validate(input.Amount, input.Date); err != nil {
		return nil, err
	}
	if input.AIConfidence != nil && (*input.AIConfidence < 0 || *input.AIConfidence > 1) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "ai_confidence must be between 0 and 1")
	}
	if _, err := s.categories.GetCategoryByID(userID, input.CategoryID); err != nil {
		return nil, err
	}

	expense := &models.Expense{
		UserID:       userID,
		CategoryID:   input.CategoryID,
		Amount:       input.Amount,
		Description:  input.Description,
		Date:         budget.DateOf(input.Date),
		ReceiptURL:   input.ReceiptURL,
		AIConfidence: input.AIConfidence,
	}

	if err := s.db.Create(expense).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.evaluate(ctx, userID, expense.CategoryID)
	return expense, nil
}

// GetUserExpenses retrieves a paginated, filtered list of the user's expenses,
// newest first unless page.Order is "asc".
func (s *expenseService) GetUserExpenses(userID string, page pagination.PageRequest, filter ExpenseFilter) (*pagination.PageResponse[models.Expense], error) {
	page.Defaults()

	var totalItems int64
	base := applyExpenseFilters(s.db.Model(&models.Expense{}).Where("user_id = ?", userID), filter)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var expenses []models.Expense
	if err := base.Preload("Category").
		Order(page.OrderBy("date")).
		Scopes(pagination.Paginate(page)).
		Find(&expenses).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(expenses, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// applyExpenseFilters adds WHERE clauses for the optional filter fields.
func applyExpenseFilters(q *gorm.DB, f ExpenseFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", budget.DateOf(*f.FromDate))
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", budget.DateOf(*f.ToDate))
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	return q
}

// GetExpenseByID retrieves an expense by ID for a specific user
func (s *expenseService) GetExpenseByID(userID, expenseID string) (*models.Expense, error) {
	var expense models.Expense
	if err := s.db.Preload("Category").Where("id = ? AND user_id = ?", expenseID, userID).First(&expense).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrExpenseNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &expense, nil
}

// UpdateExpense changes the given fields of an expense
func (s *expenseService) UpdateExpense(ctx context.Context, userID, expenseID string, update ExpenseUpdate) (*models.Expense, error) {
	expense, err := s.GetExpenseByID(userID, expenseID)
	if err != nil {
		return nil, err
	}
	previousCategory := expense.CategoryID

	updates := make(map[string]interface{})
	if update.Amount != nil {
		if !validAmount(*update.Amount) {
			return nil, apperrors.ErrInvalidAmount
		}
		updates["amount"] = *update.Amount
	}
	if update.Date != nil {
		day := budget.DateOf(*update.Date)
		if day.After(s.clock.Today()) {
			return nil, apperrors.ErrFutureDate
		}
		updates["date"] = day
	}
	if update.CategoryID != nil && *update.CategoryID != expense.CategoryID {
		if _, err := s.categories.GetCategoryByID(userID, *update.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = *update.CategoryID
	}
	if update.Description != nil {
		updates["description"] = *update.Description
	}

	if len(updates) == 0 {
		return expense, nil
	}

	if err := s.db.Model(expense).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	updated, err := s.GetExpenseByID(userID, expenseID)
	if err != nil {
		return nil, err
	}

	s.evaluate(ctx, userID, updated.CategoryID)
	if previousCategory != updated.CategoryID {
		s.evaluate(ctx, userID, previousCategory)
	}
	return updated, nil
}

// DeleteExpense soft-deletes an expense
func (s *expenseService) DeleteExpense(ctx context.Context, userID, expenseID string) error {
	expense, err := s.GetExpenseByID(userID, expenseID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(expense).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.evaluate(ctx, userID, expense.CategoryID)
	return nil
}

func (s *expenseService) validate(amount decimal.Decimal, date time.Time) error {
	if !validAmount(amount) {
		return apperrors.ErrInvalidAmount
	}
	if budget.DateOf(date).After(s.clock.Today()) {
		return apperrors.ErrFutureDate
	}
	return nil
}

// evaluate re-checks budget alerts for a category. Failures are logged; the
// expense change itself has already been committed.
func (s *expenseService) evaluate(ctx context.Context, userID, categoryID string) {
	if s.monitor == nil {
		return
	}
	if _, err := s.monitor.EvaluateCategory(ctx, userID, categoryID); err != nil {
		logger.Get().Errorw("failed to evaluate budget alerts",
			"error", err,
			"user_id", userID,
			"category_id", categoryID,
		)
	}
}
