package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"expensetracker/internal/budget"
	"expensetracker/internal/clock"
	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/models"
	"expensetracker/internal/pagination"
)

// displayPlaces is the number of decimals percentages are reported with.
// Values are truncated so a budget shown below 80.00 is never NEAR_LIMIT.
const displayPlaces = 2

// budgetService handles budget-related business logic.
type budgetService struct {
	db         *gorm.DB
	clock      clock.Clock
	categories CategoryServicer
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB, clk clock.Clock, categories CategoryServicer) BudgetServicer {
	return &budgetService{db: db, clock: clk, categories: categories}
}

// CreateBudget creates a new budget for a category. A missing end date is
// filled with the end of the first period starting at the start date.
func (s *budgetService) CreateBudget(userID string, input BudgetInput) (*models.Budget, error) {
	if !validAmount(input.Amount) {
		return nil, apperrors.ErrInvalidAmount
	}
	if !input.PeriodType.Valid() {
		return nil, apperrors.ErrInvalidBudgetPeriod
	}
	if input.StartDate.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "start_date is required")
	}

	start := budget.DateOf(input.StartDate)
	var end time.Time
	if input.EndDate.IsZero() {
		windows, err := budget.GenerateWindows(input.PeriodType, start, 1)
		if err != nil {
			return nil, err
		}
		end = windows[0].End
	} else {
		end = budget.DateOf(input.EndDate)
	}
	if end.Before(start) {
		return nil, apperrors.ErrInvalidDateRange
	}

	if _, err := s.categories.GetCategoryByID(userID, input.CategoryID); err != nil {
		return nil, err
	}
	if err := s.checkOverlap(userID, input.CategoryID, input.PeriodType, start, end, ""); err != nil {
		return nil, err
	}

	b := &models.Budget{
		UserID:     userID,
		CategoryID: input.CategoryID,
		Amount:     input.Amount,
		PeriodType: input.PeriodType,
		StartDate:  start,
		EndDate:    end,
	}

	if err := s.db.Create(b).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return b, nil
}

// checkOverlap rejects a budget whose dates intersect another budget of the
// same user, category and period type.
func (s *budgetService) checkOverlap(userID, categoryID string, periodType budget.PeriodType, start, end time.Time, excludeID string) error {
	query := s.db.Model(&models.Budget{}).
		Where("user_id = ? AND category_id = ? AND period_type = ?", userID, categoryID, periodType).
		Where("start_date <= ? AND end_date >= ?", end, start)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrBudgetOverlap
	}
	return nil
}

// applyBudgetFilters adds WHERE clauses for the optional filter fields.
func (s *budgetService) applyBudgetFilters(q *gorm.DB, f BudgetFilter) *gorm.DB {
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.PeriodType != nil {
		q = q.Where("period_type = ?", *f.PeriodType)
	}
	if f.ActiveOnly {
		today := s.clock.Today()
		q = q.Where("start_date <= ? AND end_date >= ?", today, today)
	}
	return q
}

// GetUserBudgets returns a paginated list of budgets for the user with
// optional filters, newest first.
func (s *budgetService) GetUserBudgets(userID string, page pagination.PageRequest, filter BudgetFilter) (*pagination.PageResponse[models.Budget], error) {
	page.Defaults()

	var totalItems int64
	base := s.applyBudgetFilters(s.db.Model(&models.Budget{}).Where("user_id = ?", userID), filter)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var budgets []models.Budget
	if err := base.Preload("Category").
		Order(page.OrderBy("created_at")).
		Scopes(pagination.Paginate(page)).
		Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(budgets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetBudgetByID retrieves a single budget by ID, scoped to the user.
func (s *budgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	var b models.Budget
	if err := s.db.Preload("Category").Where("id = ? AND user_id = ?", budgetID, userID).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &b, nil
}

// UpdateBudget applies partial updates to an existing budget.
func (s *budgetService) UpdateBudget(userID, budgetID string, update BudgetUpdate) (*models.Budget, error) {
	b, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	categoryID := b.CategoryID
	periodType := b.PeriodType
	start := budget.DateOf(b.StartDate)
	end := budget.DateOf(b.EndDate)

	updates := make(map[string]interface{})
	if update.Amount != nil {
		if !validAmount(*update.Amount) {
			return nil, apperrors.ErrInvalidAmount
		}
		updates["amount"] = *update.Amount
	}
	if update.CategoryID != nil && *update.CategoryID != b.CategoryID {
		if _, err := s.categories.GetCategoryByID(userID, *update.CategoryID); err != nil {
			return nil, err
		}
		categoryID = *update.CategoryID
		updates["category_id"] = categoryID
	}
	if update.PeriodType != nil {
		if !update.PeriodType.Valid() {
			return nil, apperrors.ErrInvalidBudgetPeriod
		}
		periodType = *update.PeriodType
		updates["period_type"] = periodType
	}
	if update.StartDate != nil {
		start = budget.DateOf(*update.StartDate)
		updates["start_date"] = start
	}
	if update.EndDate != nil {
		end = budget.DateOf(*update.EndDate)
		updates["end_date"] = end
	}
	if end.Before(start) {
		return nil, apperrors.ErrInvalidDateRange
	}

	if len(updates) == 0 {
		return b, nil
	}

	if err := s.checkOverlap(userID, categoryID, periodType, start, end, b.ID); err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(b).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if !changesSpending(updates) {
			return nil
		}
		// The stored percentage was measured against the old limit or
		// spending stream; the next evaluation starts fresh.
		if err := tx.Where("budget_id = ?", b.ID).Delete(&models.BudgetAlertState{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetBudgetByID(userID, budgetID)
}

// changesSpending reports whether an update moves the budget's percentage
// independently of new expenses.
func changesSpending(updates map[string]interface{}) bool {
	for _, col := range []string{"amount", "category_id", "start_date", "end_date"} {
		if _, ok := updates[col]; ok {
			return true
		}
	}
	return false
}

// DeleteBudget soft-deletes a budget and forgets its alert history.
func (s *budgetService) DeleteBudget(userID, budgetID string) error {
	b, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(b).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("budget_id = ?", b.ID).Delete(&models.BudgetAlertState{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// loadSpends returns the user's expenses in one category between from and to.
func (s *budgetService) loadSpends(userID, categoryID string, from, to time.Time) ([]budget.Spend, error) {
	var expenses []models.Expense
	if err := s.db.Select("category_id", "amount", "date").
		Where("user_id = ? AND category_id = ?", userID, categoryID).
		Where("date >= ? AND date <= ?", from, to).
		Find(&expenses).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	spends := make([]budget.Spend, len(expenses))
	for i, e := range expenses {
		spends[i] = budget.Spend{CategoryID: e.CategoryID, Amount: e.Amount, Date: e.Date}
	}
	return spends, nil
}

// withStatus aggregates the budget's spending over its own dates.
func (s *budgetService) withStatus(b models.Budget) (BudgetWithStatus, error) {
	w := b.Window()
	spends, err := s.loadSpends(b.UserID, b.CategoryID, w.Start, w.End)
	if err != nil {
		return BudgetWithStatus{}, err
	}

	status, err := budget.Aggregate(b.Limit(), w, spends)
	if err != nil {
		return BudgetWithStatus{}, err
	}

	return BudgetWithStatus{
		Budget:          b,
		CurrentSpending: status.CurrentSpending,
		RemainingAmount: status.RemainingAmount,
		PercentageUsed:  status.PercentageUsed.Truncate(displayPlaces),
		Status:          status.Tier,
		exact:           status,
	}, nil
}

// GetBudgetStatus reports spending against a single budget.
func (s *budgetService) GetBudgetStatus(userID, budgetID string) (*BudgetWithStatus, error) {
	b, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	status, err := s.withStatus(*b)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// GetBudgetsWithStatus reports spending against every matching budget,
// newest first.
func (s *budgetService) GetBudgetsWithStatus(userID string, filter BudgetFilter) ([]BudgetWithStatus, error) {
	var budgets []models.Budget
	if err := s.applyBudgetFilters(s.db.Where("user_id = ?", userID), filter).
		Preload("Category").
		Order("created_at DESC, id DESC").
		Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := make([]BudgetWithStatus, 0, len(budgets))
	for _, b := range budgets {
		status, err := s.withStatus(b)
		if err != nil {
			return nil, err
		}
		result = append(result, status)
	}
	return result, nil
}

// GetBudgetSummary totals the user's active budgets.
func (s *budgetService) GetBudgetSummary(userID string) (*BudgetSummary, error) {
	budgets, err := s.GetBudgetsWithStatus(userID, BudgetFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	summary := summarize(budgets)
	return &summary, nil
}

func summarize(budgets []BudgetWithStatus) BudgetSummary {
	summary := BudgetSummary{
		TotalBudgets:      len(budgets),
		TotalBudgetAmount: decimal.Zero,
		TotalSpending:     decimal.Zero,
		TotalRemaining:    decimal.Zero,
	}
	for _, b := range budgets {
		summary.TotalBudgetAmount = summary.TotalBudgetAmount.Add(b.Amount)
		summary.TotalSpending = summary.TotalSpending.Add(b.CurrentSpending)
		switch b.Status {
		case budget.OverBudget:
			summary.BudgetsOverLimit++
		case budget.NearLimit:
			summary.BudgetsNearLimit++
		}
	}
	summary.TotalRemaining = summary.TotalBudgetAmount.Sub(summary.TotalSpending)
	return summary
}

// GetSpendingAggregation groups the user's spending by category between from
// and to, defaulting to the current calendar month. Each category is matched
// with the newest budget overlapping the range.
func (s *budgetService) GetSpendingAggregation(userID string, from, to *time.Time) (*SpendingAggregation, error) {
	month, err := budget.WindowContaining(budget.Monthly, s.clock.Today(), s.clock.Today())
	if err != nil {
		return nil, err
	}
	rangeWindow := month
	if from != nil {
		rangeWindow.Start = budget.DateOf(*from)
	}
	if to != nil {
		rangeWindow.End = budget.DateOf(*to)
	}
	if rangeWindow.End.Before(rangeWindow.Start) {
		return nil, apperrors.ErrInvalidDateRange
	}

	var expenses []models.Expense
	if err := s.db.Preload("Category").
		Where("user_id = ?", userID).
		Where("date >= ? AND date <= ?", rangeWindow.Start, rangeWindow.End).
		Find(&expenses).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var budgets []models.Budget
	if err := s.db.Where("user_id = ?", userID).
		Where("start_date <= ? AND end_date >= ?", rangeWindow.End, rangeWindow.Start).
		Order("created_at DESC, id DESC").
		Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	budgetByCategory := make(map[string]models.Budget, len(budgets))
	for _, b := range budgets {
		if _, seen := budgetByCategory[b.CategoryID]; !seen {
			budgetByCategory[b.CategoryID] = b
		}
	}

	byCategory := make(map[string]*CategorySpending)
	spends := make(map[string][]budget.Spend)
	total := decimal.Zero
	for _, e := range expenses {
		row, ok := byCategory[e.CategoryID]
		if !ok {
			row = &CategorySpending{CategoryID: e.CategoryID, TotalSpending: decimal.Zero}
			if e.Category != nil {
				row.CategoryName = e.Category.Name
				row.CategoryColor = e.Category.Color
			}
			byCategory[e.CategoryID] = row
		}
		row.TotalSpending = row.TotalSpending.Add(e.Amount)
		row.ExpenseCount++
		spends[e.CategoryID] = append(spends[e.CategoryID], budget.Spend{CategoryID: e.CategoryID, Amount: e.Amount, Date: e.Date})
		total = total.Add(e.Amount)
	}

	categories := make([]CategorySpending, 0, len(byCategory))
	for categoryID, row := range byCategory {
		if b, ok := budgetByCategory[categoryID]; ok {
			status, err := budget.Aggregate(b.Limit(), rangeWindow, spends[categoryID])
			if err != nil {
				return nil, err
			}
			budgetID := b.ID
			amount := b.Amount
			remaining := status.RemainingAmount
			pct := status.PercentageUsed.Truncate(displayPlaces)
			row.BudgetID = &budgetID
			row.BudgetAmount = &amount
			row.RemainingAmount = &remaining
			row.PercentageUsed = &pct
			row.IsOverBudget = status.CurrentSpending.GreaterThan(b.Amount)
			row.IsNearLimit = status.Tier != budget.OnTrack
		}
		categories = append(categories, *row)
	}
	sort.Slice(categories, func(i, j int) bool {
		if !categories[i].TotalSpending.Equal(categories[j].TotalSpending) {
			return categories[i].TotalSpending.GreaterThan(categories[j].TotalSpending)
		}
		return categories[i].CategoryName < categories[j].CategoryName
	})

	return &SpendingAggregation{
		StartDate:     rangeWindow.Start,
		EndDate:       rangeWindow.End,
		TotalSpending: total,
		Categories:    categories,
	}, nil
}

// GetBudgetAlerts lists the active budgets that are near or over their limit.
func (s *budgetService) GetBudgetAlerts(userID string) ([]BudgetAlert, error) {
	budgets, err := s.GetBudgetsWithStatus(userID, BudgetFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	alerts := make([]BudgetAlert, 0)
	for _, b := range budgets {
		name := categoryName(&b.Budget)
		alert := BudgetAlert{
			BudgetID:       b.ID,
			CategoryID:     b.CategoryID,
			CategoryName:   name,
			PercentageUsed: b.PercentageUsed,
		}
		switch b.Status {
		case budget.OverBudget:
			over := b.CurrentSpending.Sub(b.Amount)
			alert.Type = AlertOverBudget
			alert.AmountOver = &over
			alert.Message = fmt.Sprintf("Budget exceeded for category %s", name)
		case budget.NearLimit:
			remaining := b.RemainingAmount
			alert.Type = AlertNearLimit
			alert.RemainingAmount = &remaining
			alert.Message = fmt.Sprintf("Budget at %s%% for category %s", b.exact.PercentageUsed.Truncate(1).StringFixed(1), name)
		default:
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// GeneratePeriods returns count consecutive windows starting at start.
func (s *budgetService) GeneratePeriods(periodType budget.PeriodType, start time.Time, count int) ([]budget.Window, error) {
	if count > MaxGeneratedPeriods {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidArgument,
			fmt.Sprintf("at most %d periods can be generated", MaxGeneratedPeriods))
	}
	if start.IsZero() {
		start = s.clock.Today()
	}
	return budget.GenerateWindows(periodType, start, count)
}

func categoryName(b *models.Budget) string {
	if b.Category != nil {
		return b.Category.Name
	}
	return "Unknown"
}
