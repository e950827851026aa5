package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/budget"
	"expensetracker/internal/models"
	"expensetracker/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	RecordLogin(userID string) error
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID, name, color string) (*models.Category, error)
	GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	UpdateCategory(userID, categoryID string, name, color *string) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
	EnsureDefaultCategories() error
}

// ExpenseFilter holds optional filter parameters for listing expenses.
type ExpenseFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	CategoryID *string
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
}

// ExpenseInput is a new expense.
type ExpenseInput struct {
	CategoryID   string
	Amount       decimal.Decimal
	Description  string
	Date         time.Time
	ReceiptURL   *string
	AIConfidence *float64
}

// ExpenseUpdate holds the fields to change on an expense; nil means unchanged.
type ExpenseUpdate struct {
	CategoryID  *string
	Amount      *decimal.Decimal
	Description *string
	Date        *time.Time
}

// ExpenseServicer defines the contract for expense-related business logic.
// Mutations re-evaluate budget alerts for the affected categories.
type ExpenseServicer interface {
	CreateExpense(ctx context.Context, userID string, input ExpenseInput) (*models.Expense, error)
	GetUserExpenses(userID string, page pagination.PageRequest, filter ExpenseFilter) (*pagination.PageResponse[models.Expense], error)
	GetExpenseByID(userID, expenseID string) (*models.Expense, error)
	UpdateExpense(ctx context.Context, userID, expenseID string, update ExpenseUpdate) (*models.Expense, error)
	DeleteExpense(ctx context.Context, userID, expenseID string) error
}

// BudgetInput is a new budget.
type BudgetInput struct {
	CategoryID string
	Amount     decimal.Decimal
	PeriodType budget.PeriodType
	StartDate  time.Time
	EndDate    time.Time
}

// BudgetUpdate holds the fields to change on a budget; nil means unchanged.
type BudgetUpdate struct {
	CategoryID *string
	Amount     *decimal.Decimal
	PeriodType *budget.PeriodType
	StartDate  *time.Time
	EndDate    *time.Time
}

// BudgetFilter narrows budget listings. ActiveOnly keeps budgets whose dates
// include today.
type BudgetFilter struct {
	CategoryID *string
	PeriodType *budget.PeriodType
	ActiveOnly bool
}

// BudgetWithStatus is a budget with its spending over its own dates.
type BudgetWithStatus struct {
	models.Budget
	CurrentSpending decimal.Decimal `json:"current_spending" swaggertype:"string"`
	RemainingAmount decimal.Decimal `json:"remaining_amount" swaggertype:"string"`
	PercentageUsed  decimal.Decimal `json:"percentage_used" swaggertype:"string"`
	Status          budget.Tier     `json:"status"`

	exact budget.Status
}

// BudgetSummary aggregates the active budgets of a user.
type BudgetSummary struct {
	TotalBudgets      int             `json:"total_budgets"`
	TotalBudgetAmount decimal.Decimal `json:"total_budget_amount" swaggertype:"string"`
	TotalSpending     decimal.Decimal `json:"total_spending" swaggertype:"string"`
	TotalRemaining    decimal.Decimal `json:"total_remaining" swaggertype:"string"`
	BudgetsOverLimit  int             `json:"budgets_over_limit"`
	BudgetsNearLimit  int             `json:"budgets_near_limit"`
}

// CategorySpending is one category's spending in a date range, compared with
// a budget for that category when one overlaps the range.
type CategorySpending struct {
	CategoryID      string           `json:"category_id"`
	CategoryName    string           `json:"category_name"`
	CategoryColor   string           `json:"category_color"`
	TotalSpending   decimal.Decimal  `json:"total_spending" swaggertype:"string"`
	ExpenseCount    int              `json:"expense_count"`
	BudgetID        *string          `json:"budget_id,omitempty"`
	BudgetAmount    *decimal.Decimal `json:"budget_amount,omitempty" swaggertype:"string"`
	RemainingAmount *decimal.Decimal `json:"remaining_amount,omitempty" swaggertype:"string"`
	PercentageUsed  *decimal.Decimal `json:"percentage_used,omitempty" swaggertype:"string"`
	IsOverBudget    bool             `json:"is_over_budget"`
	IsNearLimit     bool             `json:"is_near_limit"`
}

// SpendingAggregation is spending per category in a date range.
type SpendingAggregation struct {
	StartDate     time.Time          `json:"start_date"`
	EndDate       time.Time          `json:"end_date"`
	TotalSpending decimal.Decimal    `json:"total_spending" swaggertype:"string"`
	Categories    []CategorySpending `json:"categories"`
}

// Alert types reported by GetBudgetAlerts.
const (
	AlertNearLimit  = "near_limit"
	AlertOverBudget = "over_budget"
)

// BudgetAlert describes an active budget at or above 80% of its amount.
type BudgetAlert struct {
	Type            string           `json:"type"`
	BudgetID        string           `json:"budget_id"`
	CategoryID      string           `json:"category_id"`
	CategoryName    string           `json:"category_name"`
	PercentageUsed  decimal.Decimal  `json:"percentage_used" swaggertype:"string"`
	AmountOver      *decimal.Decimal `json:"amount_over,omitempty" swaggertype:"string"`
	RemainingAmount *decimal.Decimal `json:"remaining_amount,omitempty" swaggertype:"string"`
	Message         string           `json:"message"`
}

// MaxGeneratedPeriods caps GeneratePeriods.
const MaxGeneratedPeriods = 24

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(userID string, input BudgetInput) (*models.Budget, error)
	GetUserBudgets(userID string, page pagination.PageRequest, filter BudgetFilter) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(userID, budgetID string) (*models.Budget, error)
	UpdateBudget(userID, budgetID string, update BudgetUpdate) (*models.Budget, error)
	DeleteBudget(userID, budgetID string) error
	GetBudgetStatus(userID, budgetID string) (*BudgetWithStatus, error)
	GetBudgetsWithStatus(userID string, filter BudgetFilter) ([]BudgetWithStatus, error)
	GetBudgetSummary(userID string) (*BudgetSummary, error)
	GetSpendingAggregation(userID string, from, to *time.Time) (*SpendingAggregation, error)
	GetBudgetAlerts(userID string) ([]BudgetAlert, error)
	GeneratePeriods(periodType budget.PeriodType, start time.Time, count int) ([]budget.Window, error)
}

// PreferencesUpdate holds the preference fields to change; nil means unchanged.
type PreferencesUpdate struct {
	BudgetWarningsEnabled *bool
	BudgetExceededEnabled *bool
	WarningThreshold      *int
}

// BudgetNotification is a threshold crossing to tell the user about.
type BudgetNotification struct {
	BudgetID     string
	CategoryName string
	Event        budget.Event
}

// NotificationServicer defines the contract for notification preferences,
// delivery and history.
type NotificationServicer interface {
	GetPreferences(userID string) (*models.NotificationPreferences, error)
	UpdatePreferences(userID string, update PreferencesUpdate) (*models.NotificationPreferences, error)
	GetLogs(userID string, limit int) ([]models.NotificationLog, error)
	SendBudgetNotification(ctx context.Context, userID string, n BudgetNotification) (*models.NotificationLog, error)
	SendTestNotification(ctx context.Context, userID, title, body string) (*models.NotificationLog, error)
}

// AlertResult is one threshold crossing found by the budget monitor.
type AlertResult struct {
	BudgetID     string       `json:"budget_id"`
	CategoryID   string       `json:"category_id"`
	CategoryName string       `json:"category_name"`
	Event        budget.Event `json:"event"`
	Delivered    bool         `json:"delivered"`
	Error        string       `json:"error,omitempty"`
}

// UserSweepResult is the outcome of checking one user during a sweep.
type UserSweepResult struct {
	UserID            string `json:"user_id"`
	AlertsFound       int    `json:"alerts_found"`
	NotificationsSent int    `json:"notifications_sent"`
	Error             string `json:"error,omitempty"`
}

// SweepReport summarises a sweep across all users with active budgets.
type SweepReport struct {
	TotalUsersChecked      int               `json:"total_users_checked"`
	TotalNotificationsSent int               `json:"total_notifications_sent"`
	FailedUsers            int               `json:"failed_users"`
	Timestamp              time.Time         `json:"timestamp"`
	UserResults            []UserSweepResult `json:"user_results"`
}

// UserBudgetStatus is the read-only dashboard view of a user's active budgets.
type UserBudgetStatus struct {
	UserID    string             `json:"user_id"`
	Summary   BudgetSummary      `json:"summary"`
	Budgets   []BudgetWithStatus `json:"budgets"`
	Timestamp time.Time          `json:"timestamp"`
}

// BudgetMonitorServicer watches active budgets and notifies users when
// spending crosses their thresholds.
type BudgetMonitorServicer interface {
	EvaluateCategory(ctx context.Context, userID, categoryID string) ([]AlertResult, error)
	CheckUserBudgetAlerts(ctx context.Context, userID string) ([]AlertResult, error)
	CheckAllUsers(ctx context.Context) (*SweepReport, error)
	GetBudgetStatusForUser(userID string) (*UserBudgetStatus, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}

// CategoryTotal is one category's share of spending in a date range.
type CategoryTotal struct {
	CategoryID    string          `json:"category_id"`
	CategoryName  string          `json:"category_name"`
	CategoryColor string          `json:"category_color"`
	TotalAmount   decimal.Decimal `json:"total_amount" swaggertype:"string"`
	ExpenseCount  int             `json:"expense_count"`
}

// MonthlyTrend is the spending of one calendar month. Months without
// expenses are reported with a zero amount.
type MonthlyTrend struct {
	Period       string          `json:"period"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	Amount       decimal.Decimal `json:"amount" swaggertype:"string"`
	ExpenseCount int             `json:"expense_count"`
}

// SpendingAnalytics describes a user's spending in a date range.
type SpendingAnalytics struct {
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	TotalExpenses  decimal.Decimal `json:"total_expenses" swaggertype:"string"`
	ExpenseCount   int             `json:"expense_count"`
	AverageExpense decimal.Decimal `json:"average_expense" swaggertype:"string"`
	Categories     []CategoryTotal `json:"categories"`
	MonthlyTrends  []MonthlyTrend  `json:"monthly_trends"`
}

// BudgetComparisonRow compares one monthly budget with the month's spending
// in its category.
type BudgetComparisonRow struct {
	BudgetID        string          `json:"budget_id"`
	CategoryID      string          `json:"category_id"`
	CategoryName    string          `json:"category_name"`
	CategoryColor   string          `json:"category_color"`
	BudgetAmount    decimal.Decimal `json:"budget_amount" swaggertype:"string"`
	SpentAmount     decimal.Decimal `json:"spent_amount" swaggertype:"string"`
	RemainingAmount decimal.Decimal `json:"remaining_amount" swaggertype:"string"`
	PercentageUsed  decimal.Decimal `json:"percentage_used" swaggertype:"string"`
	Status          budget.Tier     `json:"status"`
	IsOverBudget    bool            `json:"is_over_budget"`
}

// BudgetComparison is budget against spending for one calendar month.
// TotalSpent covers every category, budgeted or not.
type BudgetComparison struct {
	Month         string                `json:"month"`
	StartDate     time.Time             `json:"start_date"`
	EndDate       time.Time             `json:"end_date"`
	Categories    []BudgetComparisonRow `json:"categories"`
	TotalBudgeted decimal.Decimal       `json:"total_budgeted" swaggertype:"string"`
	TotalSpent    decimal.Decimal       `json:"total_spent" swaggertype:"string"`
}

// Summary periods accepted by GetSummary.
const (
	SummaryWeek    = "week"
	SummaryMonth   = "month"
	SummaryQuarter = "quarter"
	SummaryYear    = "year"
)

// TopCategory is a category's spending and its share of the period total.
type TopCategory struct {
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount" swaggertype:"string"`
	Percentage decimal.Decimal `json:"percentage" swaggertype:"string"`
}

// SpendingSummary is a quick view of spending from the start of a period
// up to today.
type SpendingSummary struct {
	Period             string          `json:"period"`
	StartDate          time.Time       `json:"start_date"`
	EndDate            time.Time       `json:"end_date"`
	TotalSpending      decimal.Decimal `json:"total_spending" swaggertype:"string"`
	TransactionCount   int             `json:"transaction_count"`
	AverageTransaction decimal.Decimal `json:"average_transaction" swaggertype:"string"`
	TopCategories      []TopCategory   `json:"top_categories"`
}

// MaxTrendMonths caps GetMonthlyTrends.
const MaxTrendMonths = 24

// AnalyticsServicer defines the contract for read-only spending analytics.
type AnalyticsServicer interface {
	GetSpendingAnalytics(userID string, from, to *time.Time) (*SpendingAnalytics, error)
	GetCategoryBreakdown(userID string, from, to *time.Time) ([]CategoryTotal, error)
	GetMonthlyTrends(userID string, months int) ([]MonthlyTrend, error)
	GetBudgetComparison(userID string, month *time.Time) (*BudgetComparison, error)
	GetSummary(userID, period string) (*SpendingSummary, error)
}
