package integration

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"expensetracker/internal/models"
)

func decimalField(t *testing.T, m map[string]interface{}, key string) decimal.Decimal {
	t.Helper()
	s, ok := m[key].(string)
	if !ok {
		t.Fatalf("expected %s to be a decimal string, got %v", key, m[key])
	}
	return decimal.RequireFromString(s)
}

func TestBudgetFlow_EdgeTriggeredAlerts(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "budget@test.com", "password123")

	categoryID := app.createCategory(t, token, "Groceries")
	budgetID := app.createBudget(t, token, categoryID, "500.00", "monthly", "2024-01-01")

	// Monthly budgets end on the last day of the start month.
	rec := app.request("GET", "/api/v1/budgets/"+budgetID, "", token)
	mustStatus(t, rec, http.StatusOK)
	b := parseJSON(t, rec)["budget"].(map[string]interface{})
	if b["end_date"] != "2024-01-31T00:00:00Z" {
		t.Errorf("expected end date 2024-01-31, got %v", b["end_date"])
	}

	// 60%: below the default 80% threshold.
	app.createExpense(t, token, categoryID, "300.00", "2024-01-05")
	if n := len(app.Outbox.Messages()); n != 0 {
		t.Fatalf("expected no notifications at 60%%, got %d", n)
	}

	// 90%: crosses the warning threshold once.
	app.createExpense(t, token, categoryID, "150.00", "2024-01-12")
	msgs := app.Outbox.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 notification at 90%%, got %d", len(msgs))
	}
	if msgs[0].Title != "Budget Warning: Groceries" {
		t.Errorf("unexpected title %q", msgs[0].Title)
	}

	rec = app.request("GET", "/api/v1/budgets/"+budgetID+"/status", "", token)
	mustStatus(t, rec, http.StatusOK)
	status := parseJSON(t, rec)["budget"].(map[string]interface{})
	if status["status"] != "NEAR_LIMIT" {
		t.Errorf("expected NEAR_LIMIT, got %v", status["status"])
	}
	if pct := decimalField(t, status, "percentage_used"); !pct.Equal(decimal.NewFromInt(90)) {
		t.Errorf("expected 90%%, got %s", pct)
	}

	// Still within the warning band: no repeat.
	app.createExpense(t, token, categoryID, "20.00", "2024-01-13")
	if n := len(app.Outbox.Messages()); n != 1 {
		t.Fatalf("expected warning not to repeat, got %d notifications", n)
	}

	// 114%: exceeded.
	app.createExpense(t, token, categoryID, "100.00", "2024-01-15")
	msgs = app.Outbox.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(msgs))
	}
	if msgs[1].Title != "Budget Exceeded: Groceries" {
		t.Errorf("unexpected title %q", msgs[1].Title)
	}

	// Expenses outside the window do not count.
	app.createExpense(t, token, categoryID, "999.00", "2023-12-31")
	if n := len(app.Outbox.Messages()); n != 2 {
		t.Fatalf("expected out-of-window expense to be ignored, got %d notifications", n)
	}

	// Delivery log.
	rec = app.request("GET", "/api/v1/notifications/logs", "", token)
	mustStatus(t, rec, http.StatusOK)
	logs := parseJSON(t, rec)
	if logs["count"] != float64(2) {
		t.Errorf("expected 2 log entries, got %v", logs["count"])
	}

	// Summary and alerts.
	rec = app.request("GET", "/api/v1/budgets/summary", "", token)
	mustStatus(t, rec, http.StatusOK)
	summary := parseJSON(t, rec)["summary"].(map[string]interface{})
	if summary["budgets_over_limit"] != float64(1) {
		t.Errorf("expected 1 budget over limit, got %v", summary["budgets_over_limit"])
	}
	if total := decimalField(t, summary, "total_spending"); !total.Equal(decimal.RequireFromString("570")) {
		t.Errorf("expected total spending 570, got %s", total)
	}

	rec = app.request("GET", "/api/v1/budgets/alerts", "", token)
	mustStatus(t, rec, http.StatusOK)
	alerts := parseJSON(t, rec)
	if alerts["count"] != float64(1) {
		t.Fatalf("expected 1 alert, got %v", alerts["count"])
	}
	alert := alerts["alerts"].([]interface{})[0].(map[string]interface{})
	if alert["type"] != "over_budget" {
		t.Errorf("expected over_budget alert, got %v", alert["type"])
	}
	if over := decimalField(t, alert, "amount_over"); !over.Equal(decimal.NewFromInt(70)) {
		t.Errorf("expected 70 over, got %s", over)
	}
}

func TestBudgetFlow_DisabledWarningsStillReportExceeded(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "prefs@test.com", "password123")

	rec := app.request("PUT", "/api/v1/notifications/preferences", `{"budget_warnings_enabled":false}`, token)
	mustStatus(t, rec, http.StatusOK)

	rec = app.request("PUT", "/api/v1/notifications/preferences", `{"warning_threshold":40}`, token)
	mustStatus(t, rec, http.StatusBadRequest)

	categoryID := app.createCategory(t, token, "Fuel")
	app.createBudget(t, token, categoryID, "100.00", "monthly", "2024-01-01")

	app.createExpense(t, token, categoryID, "90.00", "2024-01-02")
	if n := len(app.Outbox.Messages()); n != 0 {
		t.Fatalf("expected no warning when disabled, got %d", n)
	}

	app.createExpense(t, token, categoryID, "10.00", "2024-01-03")
	msgs := app.Outbox.Messages()
	if len(msgs) != 1 || msgs[0].Type != string(models.NotificationTypeBudgetExceeded) {
		t.Fatalf("expected a single exceeded notification, got %+v", msgs)
	}
}

func TestBudgetFlow_OverlapAndAggregation(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "agg@test.com", "password123")

	food := app.createCategory(t, token, "Food")
	fun := app.createCategory(t, token, "Fun")
	app.createBudget(t, token, food, "200.00", "monthly", "2024-01-01")

	body := `{"category_id":"` + food + `","amount":"300.00","period_type":"monthly","start_date":"2024-01-15"}`
	rec := app.request("POST", "/api/v1/budgets", body, token)
	mustStatus(t, rec, http.StatusConflict)

	app.createExpense(t, token, food, "50.00", "2024-01-03")
	app.createExpense(t, token, food, "25.50", "2024-01-04")
	app.createExpense(t, token, fun, "10.00", "2024-01-04")

	rec = app.request("GET", "/api/v1/budgets/spending-aggregation?start_date=2024-01-01&end_date=2024-01-31", "", token)
	mustStatus(t, rec, http.StatusOK)
	agg := parseJSON(t, rec)["aggregation"].(map[string]interface{})
	if total := decimalField(t, agg, "total_spending"); !total.Equal(decimal.RequireFromString("85.5")) {
		t.Errorf("expected total 85.50, got %s", total)
	}
	categories := agg["categories"].([]interface{})
	if len(categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(categories))
	}
	for _, raw := range categories {
		c := raw.(map[string]interface{})
		switch c["category_name"] {
		case "Food":
			if c["expense_count"] != float64(2) || c["budget_id"] == nil {
				t.Errorf("unexpected food row: %v", c)
			}
		case "Fun":
			if c["budget_id"] != nil {
				t.Errorf("expected unbudgeted fun row: %v", c)
			}
		}
	}

	rec = app.request("GET", "/api/v1/budgets/spending-aggregation?start_date=2024-02-01&end_date=2024-01-01", "", token)
	mustStatus(t, rec, http.StatusBadRequest)
}

func TestBudgetFlow_Periods(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "periods@test.com", "password123")

	rec := app.request("GET", "/api/v1/budgets/periods?period_type=monthly&start_date=2024-01-31&num_periods=3", "", token)
	mustStatus(t, rec, http.StatusOK)
	periods := parseJSON(t, rec)["periods"].([]interface{})
	if len(periods) != 3 {
		t.Fatalf("expected 3 periods, got %d", len(periods))
	}
	feb := periods[1].(map[string]interface{})
	if feb["end_date"] != "2024-02-29T00:00:00Z" {
		t.Errorf("expected leap-year February end, got %v", feb["end_date"])
	}

	// Without a start date the windows begin today.
	rec = app.request("GET", "/api/v1/budgets/periods?period_type=WEEKLY&num_periods=1", "", token)
	mustStatus(t, rec, http.StatusOK)
	week := parseJSON(t, rec)["periods"].([]interface{})[0].(map[string]interface{})
	if week["start_date"] != "2024-01-20T00:00:00Z" || week["end_date"] != "2024-01-26T00:00:00Z" {
		t.Errorf("unexpected weekly window: %v", week)
	}

	rec = app.request("GET", "/api/v1/budgets/periods?period_type=daily", "", token)
	mustStatus(t, rec, http.StatusBadRequest)
	rec = app.request("GET", "/api/v1/budgets/periods?period_type=monthly&num_periods=25", "", token)
	mustStatus(t, rec, http.StatusBadRequest)
}
