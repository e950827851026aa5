package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"expensetracker/internal/app"
	"expensetracker/internal/clock"
	"expensetracker/internal/config"
	"expensetracker/internal/handlers"
	"expensetracker/internal/logger"
	"expensetracker/internal/notify"
	"expensetracker/internal/router"
	"expensetracker/internal/testutil"
	"expensetracker/internal/validator"
)

const internalAPIKey = "test-internal-key"

// today is the fixed date every flow runs on.
var today = clock.NewFixed(2024, 1, 20)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB       *gorm.DB
	Router   *gin.Engine
	Outbox   *notify.Recorder
	Services *app.Services
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := &config.Config{
		InternalAPIKey:     internalAPIKey,
		DefaultCurrency:    "USD",
		MonitorConcurrency: 2,
	}
	outbox := &notify.Recorder{}

	svc := app.NewServices(db, cfg, today, outbox)
	if err := svc.Categories.EnsureDefaultCategories(); err != nil {
		t.Fatalf("failed to seed default categories: %v", err)
	}

	engine := router.New(cfg, router.Handlers{
		Auth:         handlers.NewAuthHandler(svc.Users, svc.Audit),
		Category:     handlers.NewCategoryHandler(svc.Categories, svc.Audit),
		Expense:      handlers.NewExpenseHandler(svc.Expenses, svc.Audit),
		Budget:       handlers.NewBudgetHandler(svc.Budgets, svc.Audit),
		Notification: handlers.NewNotificationHandler(svc.Notifications, svc.Monitor, svc.Audit),
		Analytics:    handlers.NewAnalyticsHandler(svc.Analytics),
		Internal:     handlers.NewInternalHandler(svc.Monitor),
	})

	return &testApp{DB: db, Router: engine, Outbox: outbox, Services: svc}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// mustStatus fails the test unless rec has the wanted status code.
func mustStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// registerUser registers a new user and returns the access token, refresh token, and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (accessToken, refreshToken, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["access_token"].(string), result["refresh_token"].(string), user["id"].(string)
}

// loginUser logs in and returns the access and refresh tokens.
func (app *testApp) loginUser(t *testing.T, email, password string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["access_token"].(string), result["refresh_token"].(string)
}

// createCategory creates a user category and returns its ID.
func (app *testApp) createCategory(t *testing.T, token, name string) string {
	t.Helper()
	rec := app.request("POST", "/api/v1/categories", fmt.Sprintf(`{"name":%q}`, name), token)
	mustStatus(t, rec, http.StatusCreated)
	return parseJSON(t, rec)["category"].(map[string]interface{})["id"].(string)
}

// createExpense records an expense and returns its ID.
func (app *testApp) createExpense(t *testing.T, token, categoryID, amount, date string) string {
	t.Helper()
	body := fmt.Sprintf(`{"category_id":%q,"amount":%q,"date":%q}`, categoryID, amount, date)
	rec := app.request("POST", "/api/v1/expenses", body, token)
	mustStatus(t, rec, http.StatusCreated)
	return parseJSON(t, rec)["expense"].(map[string]interface{})["id"].(string)
}

// createBudget creates a budget and returns its ID.
func (app *testApp) createBudget(t *testing.T, token, categoryID, amount, periodType, start string) string {
	t.Helper()
	body := fmt.Sprintf(`{"category_id":%q,"amount":%q,"period_type":%q,"start_date":%q}`,
		categoryID, amount, periodType, start)
	rec := app.request("POST", "/api/v1/budgets", body, token)
	mustStatus(t, rec, http.StatusCreated)
	return parseJSON(t, rec)["budget"].(map[string]interface{})["id"].(string)
}
