package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"expensetracker/internal/budget"
	"expensetracker/internal/middleware"
	"expensetracker/internal/models"
	"expensetracker/internal/pagination"
	"expensetracker/internal/services"
	"expensetracker/internal/validator"
)

const testUserID = "0190a3c4-0000-7000-8000-000000000001"

// --- mock services ---

type mockUserService struct {
	createUserFn            func(email, password, firstName, lastName string) (*models.User, error)
	getUserByEmailFn        func(email string) (*models.User, error)
	getUserByIDFn           func(id string) (*models.User, error)
	verifyPasswordFn        func(user *models.User, password string) bool
	recordLoginFn           func(userID string) error
	storeRefreshTokenHashFn func(userID, tokenHash string) error
	getRefreshTokenHashFn   func(userID string) (string, error)
}

func (m *mockUserService) CreateUser(email, password, firstName, lastName string) (*models.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(email, password, firstName, lastName)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByEmail(email string) (*models.User, error) {
	if m.getUserByEmailFn != nil {
		return m.getUserByEmailFn(email)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByID(id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{}, nil
}

func (m *mockUserService) VerifyPassword(user *models.User, password string) bool {
	if m.verifyPasswordFn != nil {
		return m.verifyPasswordFn(user, password)
	}
	return true
}

func (m *mockUserService) RecordLogin(userID string) error {
	if m.recordLoginFn != nil {
		return m.recordLoginFn(userID)
	}
	return nil
}

func (m *mockUserService) StoreRefreshTokenHash(userID, tokenHash string) error {
	if m.storeRefreshTokenHashFn != nil {
		return m.storeRefreshTokenHashFn(userID, tokenHash)
	}
	return nil
}

func (m *mockUserService) GetRefreshTokenHash(userID string) (string, error) {
	if m.getRefreshTokenHashFn != nil {
		return m.getRefreshTokenHashFn(userID)
	}
	return "", nil
}

var _ services.UserServicer = (*mockUserService)(nil)

type auditEntry struct {
	action     string
	resourceID string
	changes    map[string]interface{}
}

type mockAuditService struct {
	entries []auditEntry
}

func (m *mockAuditService) Log(_, action, _, resourceID, _ string, changes map[string]interface{}) {
	m.entries = append(m.entries, auditEntry{action: action, resourceID: resourceID, changes: changes})
}

type mockCategoryService struct {
	createCategoryFn    func(userID, name, color string) (*models.Category, error)
	getUserCategoriesFn func(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	getCategoryByIDFn   func(userID, categoryID string) (*models.Category, error)
	updateCategoryFn    func(userID, categoryID string, name, color *string) (*models.Category, error)
	deleteCategoryFn    func(userID, categoryID string) error
}

func (m *mockCategoryService) CreateCategory(userID, name, color string) (*models.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(userID, name, color)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	if m.getUserCategoriesFn != nil {
		return m.getUserCategoriesFn(userID, page)
	}
	resp := pagination.NewPageResponse([]models.Category{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockCategoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	if m.getCategoryByIDFn != nil {
		return m.getCategoryByIDFn(userID, categoryID)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) UpdateCategory(userID, categoryID string, name, color *string) (*models.Category, error) {
	if m.updateCategoryFn != nil {
		return m.updateCategoryFn(userID, categoryID, name, color)
	}
	return &models.Category{}, nil
}

func (m *mockCategoryService) DeleteCategory(userID, categoryID string) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(userID, categoryID)
	}
	return nil
}

func (m *mockCategoryService) EnsureDefaultCategories() error { return nil }

var _ services.CategoryServicer = (*mockCategoryService)(nil)

type mockExpenseService struct {
	createExpenseFn   func(userID string, input services.ExpenseInput) (*models.Expense, error)
	getUserExpensesFn func(userID string, page pagination.PageRequest, filter services.ExpenseFilter) (*pagination.PageResponse[models.Expense], error)
	getExpenseByIDFn  func(userID, expenseID string) (*models.Expense, error)
	updateExpenseFn   func(userID, expenseID string, update services.ExpenseUpdate) (*models.Expense, error)
	deleteExpenseFn   func(userID, expenseID string) error
}

func (m *mockExpenseService) CreateExpense(_ context.Context, userID string, input services.ExpenseInput) (*models.Expense, error) {
	if m.createExpenseFn != nil {
		return m.createExpenseFn(userID, input)
	}
	return &models.Expense{}, nil
}

func (m *mockExpenseService) GetUserExpenses(userID string, page pagination.PageRequest, filter services.ExpenseFilter) (*pagination.PageResponse[models.Expense], error) {
	if m.getUserExpensesFn != nil {
		return m.getUserExpensesFn(userID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Expense{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockExpenseService) GetExpenseByID(userID, expenseID string) (*models.Expense, error) {
	if m.getExpenseByIDFn != nil {
		return m.getExpenseByIDFn(userID, expenseID)
	}
	return &models.Expense{}, nil
}

func (m *mockExpenseService) UpdateExpense(_ context.Context, userID, expenseID string, update services.ExpenseUpdate) (*models.Expense, error) {
	if m.updateExpenseFn != nil {
		return m.updateExpenseFn(userID, expenseID, update)
	}
	return &models.Expense{}, nil
}

func (m *mockExpenseService) DeleteExpense(_ context.Context, userID, expenseID string) error {
	if m.deleteExpenseFn != nil {
		return m.deleteExpenseFn(userID, expenseID)
	}
	return nil
}

var _ services.ExpenseServicer = (*mockExpenseService)(nil)

type mockBudgetService struct {
	createBudgetFn           func(userID string, input services.BudgetInput) (*models.Budget, error)
	getUserBudgetsFn         func(userID string, page pagination.PageRequest, filter services.BudgetFilter) (*pagination.PageResponse[models.Budget], error)
	getBudgetByIDFn          func(userID, budgetID string) (*models.Budget, error)
	updateBudgetFn           func(userID, budgetID string, update services.BudgetUpdate) (*models.Budget, error)
	deleteBudgetFn           func(userID, budgetID string) error
	getBudgetStatusFn        func(userID, budgetID string) (*services.BudgetWithStatus, error)
	getBudgetsWithStatusFn   func(userID string, filter services.BudgetFilter) ([]services.BudgetWithStatus, error)
	getBudgetSummaryFn       func(userID string) (*services.BudgetSummary, error)
	getSpendingAggregationFn func(userID string, from, to *time.Time) (*services.SpendingAggregation, error)
	getBudgetAlertsFn        func(userID string) ([]services.BudgetAlert, error)
	generatePeriodsFn        func(periodType budget.PeriodType, start time.Time, count int) ([]budget.Window, error)
}

func (m *mockBudgetService) CreateBudget(userID string, input services.BudgetInput) (*models.Budget, error) {
	if m.createBudgetFn != nil {
		return m.createBudgetFn(userID, input)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) GetUserBudgets(userID string, page pagination.PageRequest, filter services.BudgetFilter) (*pagination.PageResponse[models.Budget], error) {
	if m.getUserBudgetsFn != nil {
		return m.getUserBudgetsFn(userID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBudgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	if m.getBudgetByIDFn != nil {
		return m.getBudgetByIDFn(userID, budgetID)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) UpdateBudget(userID, budgetID string, update services.BudgetUpdate) (*models.Budget, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(userID, budgetID, update)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) DeleteBudget(userID, budgetID string) error {
	if m.deleteBudgetFn != nil {
		return m.deleteBudgetFn(userID, budgetID)
	}
	return nil
}

func (m *mockBudgetService) GetBudgetStatus(userID, budgetID string) (*services.BudgetWithStatus, error) {
	if m.getBudgetStatusFn != nil {
		return m.getBudgetStatusFn(userID, budgetID)
	}
	return &services.BudgetWithStatus{}, nil
}

func (m *mockBudgetService) GetBudgetsWithStatus(userID string, filter services.BudgetFilter) ([]services.BudgetWithStatus, error) {
	if m.getBudgetsWithStatusFn != nil {
		return m.getBudgetsWithStatusFn(userID, filter)
	}
	return nil, nil
}

func (m *mockBudgetService) GetBudgetSummary(userID string) (*services.BudgetSummary, error) {
	if m.getBudgetSummaryFn != nil {
		return m.getBudgetSummaryFn(userID)
	}
	return &services.BudgetSummary{}, nil
}

func (m *mockBudgetService) GetSpendingAggregation(userID string, from, to *time.Time) (*services.SpendingAggregation, error) {
	if m.getSpendingAggregationFn != nil {
		return m.getSpendingAggregationFn(userID, from, to)
	}
	return &services.SpendingAggregation{}, nil
}

func (m *mockBudgetService) GetBudgetAlerts(userID string) ([]services.BudgetAlert, error) {
	if m.getBudgetAlertsFn != nil {
		return m.getBudgetAlertsFn(userID)
	}
	return nil, nil
}

func (m *mockBudgetService) GeneratePeriods(periodType budget.PeriodType, start time.Time, count int) ([]budget.Window, error) {
	if m.generatePeriodsFn != nil {
		return m.generatePeriodsFn(periodType, start, count)
	}
	return nil, nil
}

var _ services.BudgetServicer = (*mockBudgetService)(nil)

type mockNotificationService struct {
	getPreferencesFn       func(userID string) (*models.NotificationPreferences, error)
	updatePreferencesFn    func(userID string, update services.PreferencesUpdate) (*models.NotificationPreferences, error)
	getLogsFn              func(userID string, limit int) ([]models.NotificationLog, error)
	sendTestNotificationFn func(userID, title, body string) (*models.NotificationLog, error)
}

func (m *mockNotificationService) GetPreferences(userID string) (*models.NotificationPreferences, error) {
	if m.getPreferencesFn != nil {
		return m.getPreferencesFn(userID)
	}
	return &models.NotificationPreferences{}, nil
}

func (m *mockNotificationService) UpdatePreferences(userID string, update services.PreferencesUpdate) (*models.NotificationPreferences, error) {
	if m.updatePreferencesFn != nil {
		return m.updatePreferencesFn(userID, update)
	}
	return &models.NotificationPreferences{}, nil
}

func (m *mockNotificationService) GetLogs(userID string, limit int) ([]models.NotificationLog, error) {
	if m.getLogsFn != nil {
		return m.getLogsFn(userID, limit)
	}
	return nil, nil
}

func (m *mockNotificationService) SendBudgetNotification(context.Context, string, services.BudgetNotification) (*models.NotificationLog, error) {
	return nil, nil
}

func (m *mockNotificationService) SendTestNotification(_ context.Context, userID, title, body string) (*models.NotificationLog, error) {
	if m.sendTestNotificationFn != nil {
		return m.sendTestNotificationFn(userID, title, body)
	}
	return &models.NotificationLog{}, nil
}

var _ services.NotificationServicer = (*mockNotificationService)(nil)

type mockMonitorService struct {
	checkUserBudgetAlertsFn  func(userID string) ([]services.AlertResult, error)
	checkAllUsersFn          func(ctx context.Context) (*services.SweepReport, error)
	getBudgetStatusForUserFn func(userID string) (*services.UserBudgetStatus, error)
}

func (m *mockMonitorService) EvaluateCategory(context.Context, string, string) ([]services.AlertResult, error) {
	return nil, nil
}

func (m *mockMonitorService) CheckUserBudgetAlerts(_ context.Context, userID string) ([]services.AlertResult, error) {
	if m.checkUserBudgetAlertsFn != nil {
		return m.checkUserBudgetAlertsFn(userID)
	}
	return nil, nil
}

func (m *mockMonitorService) CheckAllUsers(ctx context.Context) (*services.SweepReport, error) {
	if m.checkAllUsersFn != nil {
		return m.checkAllUsersFn(ctx)
	}
	return &services.SweepReport{}, nil
}

func (m *mockMonitorService) GetBudgetStatusForUser(userID string) (*services.UserBudgetStatus, error) {
	if m.getBudgetStatusForUserFn != nil {
		return m.getBudgetStatusForUserFn(userID)
	}
	return &services.UserBudgetStatus{UserID: userID}, nil
}

var _ services.BudgetMonitorServicer = (*mockMonitorService)(nil)

type mockAnalyticsService struct {
	getSpendingAnalyticsFn func(userID string, from, to *time.Time) (*services.SpendingAnalytics, error)
	getCategoryBreakdownFn func(userID string, from, to *time.Time) ([]services.CategoryTotal, error)
	getMonthlyTrendsFn     func(userID string, months int) ([]services.MonthlyTrend, error)
	getBudgetComparisonFn  func(userID string, month *time.Time) (*services.BudgetComparison, error)
	getSummaryFn           func(userID, period string) (*services.SpendingSummary, error)
}

func (m *mockAnalyticsService) GetSpendingAnalytics(userID string, from, to *time.Time) (*services.SpendingAnalytics, error) {
	if m.getSpendingAnalyticsFn != nil {
		return m.getSpendingAnalyticsFn(userID, from, to)
	}
	return &services.SpendingAnalytics{}, nil
}

func (m *mockAnalyticsService) GetCategoryBreakdown(userID string, from, to *time.Time) ([]services.CategoryTotal, error) {
	if m.getCategoryBreakdownFn != nil {
		return m.getCategoryBreakdownFn(userID, from, to)
	}
	return []services.CategoryTotal{}, nil
}

func (m *mockAnalyticsService) GetMonthlyTrends(userID string, months int) ([]services.MonthlyTrend, error) {
	if m.getMonthlyTrendsFn != nil {
		return m.getMonthlyTrendsFn(userID, months)
	}
	return []services.MonthlyTrend{}, nil
}

func (m *mockAnalyticsService) GetBudgetComparison(userID string, month *time.Time) (*services.BudgetComparison, error) {
	if m.getBudgetComparisonFn != nil {
		return m.getBudgetComparisonFn(userID, month)
	}
	return &services.BudgetComparison{}, nil
}

func (m *mockAnalyticsService) GetSummary(userID, period string) (*services.SpendingSummary, error) {
	if m.getSummaryFn != nil {
		return m.getSummaryFn(userID, period)
	}
	return &services.SpendingSummary{}, nil
}

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
