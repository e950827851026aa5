package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/models"
	"expensetracker/internal/pagination"
	"expensetracker/internal/services"
)

const testExpenseID = "0190a3c4-0000-7000-8000-0000000000e1"

func setupExpenseRouter(handler *ExpenseHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/expenses", handler.CreateExpense)
	auth.GET("/expenses", handler.GetExpenses)
	auth.GET("/expenses/:id", handler.GetExpense)
	auth.PUT("/expenses/:id", handler.UpdateExpense)
	auth.DELETE("/expenses/:id", handler.DeleteExpense)
	return r
}

func TestExpenseHandler_CreateExpense(t *testing.T) {
	t.Run("returns 201 and passes the parsed input", func(t *testing.T) {
		var got services.ExpenseInput
		expSvc := &mockExpenseService{
			createExpenseFn: func(userID string, input services.ExpenseInput) (*models.Expense, error) {
				got = input
				return &models.Expense{
					Base:       models.Base{ID: testExpenseID},
					UserID:     userID,
					CategoryID: input.CategoryID,
					Amount:     input.Amount,
					Date:       input.Date,
				}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupExpenseRouter(NewExpenseHandler(expSvc, audit))

		rec := doRequest(r, "POST", "/expenses",
			`{"category_id":"`+testCategoryID+`","amount":"25.99","description":"Lunch","date":"2024-01-15","ai_confidence":0.9}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !got.Amount.Equal(decimal.RequireFromString("25.99")) {
			t.Errorf("expected amount 25.99, got %s", got.Amount)
		}
		if !got.Date.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("expected 2024-01-15, got %s", got.Date)
		}
		if got.AIConfidence == nil || *got.AIConfidence != 0.9 {
			t.Errorf("expected ai confidence 0.9, got %v", got.AIConfidence)
		}
		expense := parseJSON(t, rec)["expense"].(map[string]interface{})
		if expense["amount"] != "25.99" {
			t.Errorf("expected amount \"25.99\", got %v", expense["amount"])
		}
		if len(audit.entries) != 1 || audit.entries[0].action != services.AuditCreateExpense ||
			audit.entries[0].resourceID != testExpenseID {
			t.Fatalf("expected create audit entry for %s, got %v", testExpenseID, audit.entries)
		}
		if audit.entries[0].changes["amount"] != "25.99" {
			t.Errorf("expected the amount in the audit changes, got %v", audit.entries[0].changes)
		}
	})

	t.Run("accepts a numeric amount and leaves the date to the service", func(t *testing.T) {
		var got services.ExpenseInput
		expSvc := &mockExpenseService{
			createExpenseFn: func(_ string, input services.ExpenseInput) (*models.Expense, error) {
				got = input
				return &models.Expense{}, nil
			},
		}
		r := setupExpenseRouter(NewExpenseHandler(expSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/expenses", `{"category_id":"`+testCategoryID+`","amount":12.5}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !got.Date.IsZero() {
			t.Errorf("expected zero date, got %s", got.Date)
		}
	})

	t.Run("returns 400 on invalid input", func(t *testing.T) {
		r := setupExpenseRouter(NewExpenseHandler(&mockExpenseService{}, &mockAuditService{}))

		tests := []struct {
			name string
			body string
		}{
			{"missing category", `{"amount":"10.00"}`},
			{"malformed category", `{"category_id":"abc","amount":"10.00"}`},
			{"zero amount", `{"category_id":"` + testCategoryID + `","amount":"0"}`},
			{"negative amount", `{"category_id":"` + testCategoryID + `","amount":"-5"}`},
			{"three decimals", `{"category_id":"` + testCategoryID + `","amount":"1.005"}`},
			{"bad date", `{"category_id":"` + testCategoryID + `","amount":"1.00","date":"15/01/2024"}`},
			{"confidence above one", `{"category_id":"` + testCategoryID + `","amount":"1.00","ai_confidence":1.5}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := doRequest(r, "POST", "/expenses", tt.body)
				if rec.Code != http.StatusBadRequest {
					t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
				}
			})
		}
	})

	t.Run("returns 400 on a future date", func(t *testing.T) {
		expSvc := &mockExpenseService{
			createExpenseFn: func(string, services.ExpenseInput) (*models.Expense, error) {
				return nil, apperrors.ErrFutureDate
			},
		}
		r := setupExpenseRouter(NewExpenseHandler(expSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/expenses", `{"category_id":"`+testCategoryID+`","amount":"5","date":"2999-01-01"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "FUTURE_DATE")
	})
}

func TestExpenseHandler_GetExpenses(t *testing.T) {
	t.Run("builds the filter from the query", func(t *testing.T) {
		var got services.ExpenseFilter
		var gotPage pagination.PageRequest
		expSvc := &mockExpenseService{
			getUserExpensesFn: func(_ string, page pagination.PageRequest, filter services.ExpenseFilter) (*pagination.PageResponse[models.Expense], error) {
				got, gotPage = filter, page
				resp := pagination.NewPageResponse([]models.Expense{{Base: models.Base{ID: testExpenseID}}}, 1, 20, 1)
				return &resp, nil
			},
		}
		r := setupExpenseRouter(NewExpenseHandler(expSvc, &mockAuditService{}))

		rec := doRequest(r, "GET",
			"/expenses?start_date=2024-01-01&end_date=2024-01-31&category_id="+testCategoryID+"&min_amount=10&max_amount=99.5&order=asc", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.FromDate == nil || got.FromDate.Day() != 1 || got.ToDate == nil || got.ToDate.Day() != 31 {
			t.Errorf("unexpected date range %v..%v", got.FromDate, got.ToDate)
		}
		if got.CategoryID == nil || *got.CategoryID != testCategoryID {
			t.Errorf("expected category filter, got %v", got.CategoryID)
		}
		if got.MinAmount == nil || !got.MinAmount.Equal(decimal.NewFromInt(10)) {
			t.Errorf("expected min 10, got %v", got.MinAmount)
		}
		if got.MaxAmount == nil || !got.MaxAmount.Equal(decimal.RequireFromString("99.5")) {
			t.Errorf("expected max 99.5, got %v", got.MaxAmount)
		}
		if gotPage.Order != "asc" {
			t.Errorf("expected asc order, got %q", gotPage.Order)
		}
	})

	t.Run("returns 400 on bad filters", func(t *testing.T) {
		r := setupExpenseRouter(NewExpenseHandler(&mockExpenseService{}, &mockAuditService{}))

		for _, q := range []string{
			"?start_date=yesterday",
			"?start_date=2024-02-01&end_date=2024-01-01",
			"?min_amount=ten",
			"?category_id=nope",
		} {
			rec := doRequest(r, "GET", "/expenses"+q, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", q, rec.Code)
			}
		}
	})
}

func TestExpenseHandler_GetExpense(t *testing.T) {
	t.Run("returns 404 when not found", func(t *testing.T) {
		expSvc := &mockExpenseService{
			getExpenseByIDFn: func(_, _ string) (*models.Expense, error) {
				return nil, apperrors.ErrExpenseNotFound
			},
		}
		r := setupExpenseRouter(NewExpenseHandler(expSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/expenses/"+testExpenseID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "EXPENSE_NOT_FOUND")
	})
}

func TestExpenseHandler_UpdateExpense(t *testing.T) {
	t.Run("passes only the provided fields", func(t *testing.T) {
		var got services.ExpenseUpdate
		expSvc := &mockExpenseService{
			updateExpenseFn: func(_, _ string, update services.ExpenseUpdate) (*models.Expense, error) {
				got = update
				return &models.Expense{}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupExpenseRouter(NewExpenseHandler(expSvc, audit))

		rec := doRequest(r, "PUT", "/expenses/"+testExpenseID, `{"amount":"40.00","date":"2024-01-10"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Amount == nil || !got.Amount.Equal(decimal.NewFromInt(40)) {
			t.Errorf("expected amount 40, got %v", got.Amount)
		}
		if got.Date == nil || got.Date.Day() != 10 {
			t.Errorf("expected date 2024-01-10, got %v", got.Date)
		}
		if got.CategoryID != nil || got.Description != nil {
			t.Error("expected untouched fields to stay nil")
		}
		if len(audit.entries) != 1 || audit.entries[0].action != services.AuditUpdateExpense ||
			audit.entries[0].resourceID != testExpenseID {
			t.Fatalf("expected update audit entry for %s, got %v", testExpenseID, audit.entries)
		}
		if changes := audit.entries[0].changes; len(changes) != 2 || changes["amount"] != "40" || changes["date"] != "2024-01-10" {
			t.Errorf("unexpected audit changes: %v", changes)
		}
	})

	t.Run("returns 400 on a non-positive amount", func(t *testing.T) {
		r := setupExpenseRouter(NewExpenseHandler(&mockExpenseService{}, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/expenses/"+testExpenseID, `{"amount":"-1"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestExpenseHandler_DeleteExpense(t *testing.T) {
	t.Run("returns 200 and audits the deletion", func(t *testing.T) {
		var deleted string
		expSvc := &mockExpenseService{
			deleteExpenseFn: func(_, id string) error {
				deleted = id
				return nil
			},
		}
		audit := &mockAuditService{}
		r := setupExpenseRouter(NewExpenseHandler(expSvc, audit))

		rec := doRequest(r, "DELETE", "/expenses/"+testExpenseID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if deleted != testExpenseID {
			t.Errorf("expected %s deleted, got %q", testExpenseID, deleted)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != services.AuditDeleteExpense {
			t.Errorf("expected delete audit entry, got %v", audit.entries)
		}
	})
}
