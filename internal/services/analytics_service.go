package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"expensetracker/internal/budget"
	"expensetracker/internal/clock"
	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/models"
)

const (
	defaultAnalyticsDays = 180
	defaultTrendMonths   = 12
	topCategoryCount     = 3
	periodLayout         = "2006-01"
)

// analyticsService computes read-only spending reports.
type analyticsService struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewAnalyticsService creates a new AnalyticsServicer.
func NewAnalyticsService(db *gorm.DB, clk clock.Clock) AnalyticsServicer {
	return &analyticsService{db: db, clock: clk}
}

// loadExpenses returns the user's expenses between the optional bounds, with
// their categories.
func (s *analyticsService) loadExpenses(userID string, from, to *time.Time) ([]models.Expense, error) {
	q := s.db.Preload("Category").Where("user_id = ?", userID)
	if from != nil {
		q = q.Where("date >= ?", *from)
	}
	if to != nil {
		q = q.Where("date <= ?", *to)
	}

	var expenses []models.Expense
	if err := q.Find(&expenses).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return expenses, nil
}

// GetSpendingAnalytics reports totals and the category breakdown between
// from and to, plus the last twelve months of trends. The range ends today
// and starts 180 days before its end unless given.
func (s *analyticsService) GetSpendingAnalytics(userID string, from, to *time.Time) (*SpendingAnalytics, error) {
	end := s.clock.Today()
	if to != nil {
		end = budget.DateOf(*to)
	}
	start := end.AddDate(0, 0, -defaultAnalyticsDays)
	if from != nil {
		start = budget.DateOf(*from)
	}
	if end.Before(start) {
		return nil, apperrors.ErrInvalidDateRange
	}

	expenses, err := s.loadExpenses(userID, &start, &end)
	if err != nil {
		return nil, err
	}
	trends, err := s.GetMonthlyTrends(userID, defaultTrendMonths)
	if err != nil {
		return nil, err
	}

	total := sumExpenses(expenses)
	return &SpendingAnalytics{
		StartDate:      start,
		EndDate:        end,
		TotalExpenses:  total,
		ExpenseCount:   len(expenses),
		AverageExpense: average(total, len(expenses)),
		Categories:     categoryTotals(expenses),
		MonthlyTrends:  trends,
	}, nil
}

// GetCategoryBreakdown totals spending per category, largest first. Missing
// bounds leave that side of the range open.
func (s *analyticsService) GetCategoryBreakdown(userID string, from, to *time.Time) ([]CategoryTotal, error) {
	if from != nil && to != nil && budget.DateOf(*to).Before(budget.DateOf(*from)) {
		return nil, apperrors.ErrInvalidDateRange
	}

	expenses, err := s.loadExpenses(userID, from, to)
	if err != nil {
		return nil, err
	}
	return categoryTotals(expenses), nil
}

// GetMonthlyTrends returns one entry per calendar month for the last months
// months, ending with the current month.
func (s *analyticsService) GetMonthlyTrends(userID string, months int) ([]MonthlyTrend, error) {
	if months < 1 || months > MaxTrendMonths {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("months must be between 1 and %d", MaxTrendMonths))
	}

	today := s.clock.Today()
	first := budget.Date(today.Year(), today.Month()-time.Month(months-1), 1)
	windows, err := budget.GenerateWindows(budget.Monthly, first, months)
	if err != nil {
		return nil, err
	}

	expenses, err := s.loadExpenses(userID, &windows[0].Start, &windows[len(windows)-1].End)
	if err != nil {
		return nil, err
	}

	trends := make([]MonthlyTrend, len(windows))
	for i, w := range windows {
		trends[i] = MonthlyTrend{
			Period:    w.Start.Format(periodLayout),
			StartDate: w.Start,
			EndDate:   w.End,
			Amount:    decimal.Zero,
		}
	}
	for _, e := range expenses {
		for i, w := range windows {
			if w.Contains(e.Date) {
				trends[i].Amount = trends[i].Amount.Add(e.Amount)
				trends[i].ExpenseCount++
				break
			}
		}
	}
	return trends, nil
}

// GetBudgetComparison compares the month's spending with every monthly
// budget covering the whole month. month defaults to the current month.
func (s *analyticsService) GetBudgetComparison(userID string, month *time.Time) (*BudgetComparison, error) {
	anchor := s.clock.Today()
	if month != nil {
		anchor = budget.DateOf(*month)
	}
	w, err := budget.WindowContaining(budget.Monthly, anchor, anchor)
	if err != nil {
		return nil, err
	}

	expenses, err := s.loadExpenses(userID, &w.Start, &w.End)
	if err != nil {
		return nil, err
	}

	var budgets []models.Budget
	if err := s.db.Preload("Category").
		Where("user_id = ? AND period_type = ?", userID, budget.Monthly).
		Where("start_date <= ? AND end_date >= ?", w.Start, w.End).
		Order("created_at DESC, id DESC").
		Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	spends := make([]budget.Spend, len(expenses))
	for i, e := range expenses {
		spends[i] = budget.Spend{CategoryID: e.CategoryID, Amount: e.Amount, Date: e.Date}
	}

	comparison := &BudgetComparison{
		Month:         w.Start.Format(periodLayout),
		StartDate:     w.Start,
		EndDate:       w.End,
		Categories:    make([]BudgetComparisonRow, 0, len(budgets)),
		TotalBudgeted: decimal.Zero,
		TotalSpent:    sumExpenses(expenses),
	}
	for i := range budgets {
		b := &budgets[i]
		status, err := budget.Aggregate(b.Limit(), w, spends)
		if err != nil {
			return nil, err
		}

		row := BudgetComparisonRow{
			BudgetID:        b.ID,
			CategoryID:      b.CategoryID,
			CategoryName:    categoryName(b),
			BudgetAmount:    b.Amount,
			SpentAmount:     status.CurrentSpending,
			RemainingAmount: status.RemainingAmount,
			PercentageUsed:  status.PercentageUsed.Truncate(displayPlaces),
			Status:          status.Tier,
			IsOverBudget:    status.CurrentSpending.GreaterThan(b.Amount),
		}
		if b.Category != nil {
			row.CategoryColor = b.Category.Color
		}
		comparison.Categories = append(comparison.Categories, row)
		comparison.TotalBudgeted = comparison.TotalBudgeted.Add(b.Amount)
	}
	return comparison, nil
}

// GetSummary reports spending from the start of period up to today. An
// empty period means the current month.
func (s *analyticsService) GetSummary(userID, period string) (*SpendingSummary, error) {
	today := s.clock.Today()
	var start time.Time
	switch period {
	case SummaryWeek:
		start = today.AddDate(0, 0, -7)
	case "", SummaryMonth:
		period = SummaryMonth
		start = budget.Date(today.Year(), today.Month(), 1)
	case SummaryQuarter:
		start = budget.Date(today.Year(), (today.Month()-1)/3*3+1, 1)
	case SummaryYear:
		start = budget.Date(today.Year(), time.January, 1)
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("unknown summary period %q", period))
	}

	expenses, err := s.loadExpenses(userID, &start, &today)
	if err != nil {
		return nil, err
	}

	total := sumExpenses(expenses)
	categories := categoryTotals(expenses)
	if len(categories) > topCategoryCount {
		categories = categories[:topCategoryCount]
	}
	top := make([]TopCategory, len(categories))
	for i, c := range categories {
		pct := decimal.Zero
		if total.IsPositive() {
			pct = budget.Percentage(c.TotalAmount, total).Truncate(displayPlaces)
		}
		top[i] = TopCategory{Name: c.CategoryName, Amount: c.TotalAmount, Percentage: pct}
	}

	return &SpendingSummary{
		Period:             period,
		StartDate:          start,
		EndDate:            today,
		TotalSpending:      total,
		TransactionCount:   len(expenses),
		AverageTransaction: average(total, len(expenses)),
		TopCategories:      top,
	}, nil
}

func sumExpenses(expenses []models.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// average is rounded to cents; no expenses averages to zero.
func average(total decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.DivRound(decimal.NewFromInt(int64(count)), 2)
}

// categoryTotals groups expenses by category, largest total first and then
// by name.
func categoryTotals(expenses []models.Expense) []CategoryTotal {
	byCategory := make(map[string]*CategoryTotal)
	for _, e := range expenses {
		row, ok := byCategory[e.CategoryID]
		if !ok {
			row = &CategoryTotal{CategoryID: e.CategoryID, TotalAmount: decimal.Zero}
			if e.Category != nil {
				row.CategoryName = e.Category.Name
				row.CategoryColor = e.Category.Color
			}
			byCategory[e.CategoryID] = row
		}
		row.TotalAmount = row.TotalAmount.Add(e.Amount)
		row.ExpenseCount++
	}

	totals := make([]CategoryTotal, 0, len(byCategory))
	for _, row := range byCategory {
		totals = append(totals, *row)
	}
	sort.Slice(totals, func(i, j int) bool {
		if !totals[i].TotalAmount.Equal(totals[j].TotalAmount) {
			return totals[i].TotalAmount.GreaterThan(totals[j].TotalAmount)
		}
		return totals[i].CategoryName < totals[j].CategoryName
	})
	return totals
}
