package integration

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAnalyticsFlow(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "analytics@test.com", "password123")

	food := app.createCategory(t, token, "Food")
	fun := app.createCategory(t, token, "Fun")
	app.createBudget(t, token, food, "200.00", "monthly", "2024-01-01")
	app.createExpense(t, token, food, "50.00", "2024-01-03")
	app.createExpense(t, token, food, "25.50", "2024-01-04")
	app.createExpense(t, token, fun, "10.00", "2024-01-04")
	app.createExpense(t, token, food, "40.00", "2023-12-10")

	t.Run("spending", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/analytics/spending", "", token)
		mustStatus(t, rec, http.StatusOK)

		analytics := parseJSON(t, rec)["analytics"].(map[string]interface{})
		if total := decimalField(t, analytics, "total_expenses"); !total.Equal(decimal.RequireFromString("125.5")) {
			t.Errorf("expected total 125.50, got %s", total)
		}
		if analytics["expense_count"] != float64(4) {
			t.Errorf("expected 4 expenses, got %v", analytics["expense_count"])
		}
		first := analytics["categories"].([]interface{})[0].(map[string]interface{})
		if first["category_name"] != "Food" {
			t.Errorf("expected Food to lead, got %v", first)
		}
	})

	t.Run("trends", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/analytics/trends?months_back=2", "", token)
		mustStatus(t, rec, http.StatusOK)

		trends := parseJSON(t, rec)["trends"].([]interface{})
		if len(trends) != 2 {
			t.Fatalf("expected 2 months, got %d", len(trends))
		}
		dec := trends[0].(map[string]interface{})
		jan := trends[1].(map[string]interface{})
		if dec["period"] != "2023-12" || !decimalField(t, dec, "amount").Equal(decimal.NewFromInt(40)) {
			t.Errorf("unexpected December: %v", dec)
		}
		if jan["period"] != "2024-01" || !decimalField(t, jan, "amount").Equal(decimal.RequireFromString("85.5")) {
			t.Errorf("unexpected January: %v", jan)
		}

		rec = app.request("GET", "/api/v1/analytics/trends?months_back=30", "", token)
		mustStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("budget comparison", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/analytics/budget-comparison", "", token)
		mustStatus(t, rec, http.StatusOK)

		comparison := parseJSON(t, rec)["comparison"].(map[string]interface{})
		rows := comparison["categories"].([]interface{})
		if len(rows) != 1 {
			t.Fatalf("expected 1 budget row, got %d", len(rows))
		}
		row := rows[0].(map[string]interface{})
		if !decimalField(t, row, "spent_amount").Equal(decimal.RequireFromString("75.5")) ||
			!decimalField(t, row, "percentage_used").Equal(decimal.RequireFromString("37.75")) ||
			row["status"] != "ON_TRACK" {
			t.Errorf("unexpected row: %v", row)
		}
		if !decimalField(t, comparison, "total_spent").Equal(decimal.RequireFromString("85.5")) {
			t.Errorf("expected 85.50 spent in January, got %v", comparison["total_spent"])
		}
	})

	t.Run("summary", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/analytics/summary?period=month", "", token)
		mustStatus(t, rec, http.StatusOK)

		summary := parseJSON(t, rec)["summary"].(map[string]interface{})
		if summary["transaction_count"] != float64(3) {
			t.Errorf("expected 3 transactions, got %v", summary["transaction_count"])
		}
		top := summary["top_categories"].([]interface{})
		if len(top) != 2 || top[0].(map[string]interface{})["name"] != "Food" {
			t.Errorf("unexpected top categories: %v", top)
		}

		rec = app.request("GET", "/api/v1/analytics/summary?period=decade", "", token)
		mustStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("requires a token", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/analytics/summary", "", "")
		mustStatus(t, rec, http.StatusUnauthorized)
	})
}
