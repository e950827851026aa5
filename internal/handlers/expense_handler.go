package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/pagination"
	"expensetracker/internal/services"
)

// ExpenseHandler handles expense-related requests
type ExpenseHandler struct {
	expenseService services.ExpenseServicer
	auditService   services.AuditServicer
}

// NewExpenseHandler creates a new ExpenseHandler
func NewExpenseHandler(expenseService services.ExpenseServicer, auditService services.AuditServicer) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService, auditService: auditService}
}

// CreateExpenseRequest represents the request payload for recording an expense
type CreateExpenseRequest struct {
	CategoryID   string          `json:"category_id" binding:"required,uuid"`
	Amount       decimal.Decimal `json:"amount" binding:"required,decimal_gt0,max_2dp" swaggertype:"string" example:"25.99"`
	Description  string          `json:"description" binding:"max=500"`
	Date         string          `json:"date" binding:"omitempty,datetime=2006-01-02" example:"2024-01-15"`
	ReceiptURL   *string         `json:"receipt_url" binding:"omitempty,url"`
	AIConfidence *float64        `json:"ai_confidence" binding:"omitempty,min=0,max=1"`
}

// UpdateExpenseRequest represents the request payload for updating an expense
type UpdateExpenseRequest struct {
	CategoryID  *string          `json:"category_id" binding:"omitempty,uuid"`
	Amount      *decimal.Decimal `json:"amount" binding:"omitempty,decimal_gt0,max_2dp" swaggertype:"string"`
	Description *string          `json:"description" binding:"omitempty,max=500"`
	Date        *string          `json:"date" binding:"omitempty,datetime=2006-01-02"`
}

// ExpenseQuery holds the list filters for expenses
type ExpenseQuery struct {
	CategoryID string `form:"category_id" binding:"omitempty,uuid"`
	MinAmount  string `form:"min_amount" binding:"omitempty,numeric"`
	MaxAmount  string `form:"max_amount" binding:"omitempty,numeric"`
}

// CreateExpense handles recording a new expense
// @Summary     Create an expense
// @Description Record an expense. The date defaults to today and may not be in the future.
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateExpenseRequest true "Expense details"
// @Success     201 {object} models.Expense "Expense created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /expenses [post]
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	input := services.ExpenseInput{
		CategoryID:   req.CategoryID,
		Amount:       req.Amount,
		Description:  req.Description,
		ReceiptURL:   req.ReceiptURL,
		AIConfidence: req.AIConfidence,
	}
	if req.Date != "" {
		// Already validated by the datetime binding.
		input.Date, _ = time.Parse(dateLayout, req.Date)
	}

	expense, err := h.expenseService.CreateExpense(c.Request.Context(), userID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditCreateExpense, "expense", expense.ID, c.ClientIP(),
		map[string]interface{}{"category_id": expense.CategoryID, "amount": expense.Amount.String()})

	c.JSON(http.StatusCreated, gin.H{"expense": expense})
}

// GetExpenses handles listing the user's expenses
// @Summary     Get expenses
// @Description Get the user's expenses, newest first, with optional filters
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Param       order       query string false "Sort direction by date (asc or desc)"
// @Param       start_date  query string false "Earliest date (YYYY-MM-DD)"
// @Param       end_date    query string false "Latest date (YYYY-MM-DD)"
// @Param       category_id query string false "Category ID"
// @Param       min_amount  query string false "Minimum amount"
// @Param       max_amount  query string false "Maximum amount"
// @Success     200 {object} pagination.PageResponse[models.Expense] "Paginated expenses"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /expenses [get]
func (h *ExpenseHandler) GetExpenses(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var query ExpenseQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := buildExpenseFilter(c, query)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.expenseService.GetUserExpenses(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func buildExpenseFilter(c *gin.Context, query ExpenseQuery) (services.ExpenseFilter, error) {
	var filter services.ExpenseFilter
	var err error

	if filter.FromDate, err = parseDateQuery(c, "start_date"); err != nil {
		return filter, err
	}
	if filter.ToDate, err = parseDateQuery(c, "end_date"); err != nil {
		return filter, err
	}
	if filter.FromDate != nil && filter.ToDate != nil && filter.ToDate.Before(*filter.FromDate) {
		return filter, apperrors.ErrInvalidDateRange
	}

	if query.CategoryID != "" {
		filter.CategoryID = &query.CategoryID
	}
	if query.MinAmount != "" {
		d, err := decimal.NewFromString(query.MinAmount)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "min_amount must be a number")
		}
		filter.MinAmount = &d
	}
	if query.MaxAmount != "" {
		d, err := decimal.NewFromString(query.MaxAmount)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "max_amount must be a number")
		}
		filter.MaxAmount = &d
	}
	return filter, nil
}

// GetExpense handles retrieving a specific expense
// @Summary     Get expense by ID
// @Description Get a specific expense owned by the user
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Expense ID"
// @Success     200 {object} models.Expense "Expense details"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /expenses/{id} [get]
func (h *ExpenseHandler) GetExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	expenseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	expense, err := h.expenseService.GetExpenseByID(userID, expenseID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

// UpdateExpense handles updating an expense
// @Summary     Update expense
// @Description Update an expense. Budget alerts are re-evaluated for the affected categories.
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Expense ID"
// @Param       request body UpdateExpenseRequest true "Updated expense details"
// @Success     200 {object} models.Expense "Expense updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /expenses/{id} [put]
func (h *ExpenseHandler) UpdateExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	expenseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	update := services.ExpenseUpdate{
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Description: req.Description,
	}
	if req.Date != nil {
		d, _ := time.Parse(dateLayout, *req.Date)
		update.Date = &d
	}

	expense, err := h.expenseService.UpdateExpense(c.Request.Context(), userID, expenseID, update)
	if err != nil {
		respondWithError(c, err)
		return
	}

	changes := map[string]interface{}{}
	if req.CategoryID != nil {
		changes["category_id"] = *req.CategoryID
	}
	if req.Amount != nil {
		changes["amount"] = req.Amount.String()
	}
	if req.Description != nil {
		changes["description"] = *req.Description
	}
	if req.Date != nil {
		changes["date"] = *req.Date
	}
	h.auditService.Log(userID, services.AuditUpdateExpense, "expense", expenseID, c.ClientIP(), changes)

	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

// DeleteExpense handles deleting an expense
// @Summary     Delete expense
// @Description Delete an expense owned by the user
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Expense ID"
// @Success     200 {object} map[string]string "Expense deleted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /expenses/{id} [delete]
func (h *ExpenseHandler) DeleteExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	expenseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.expenseService.DeleteExpense(c.Request.Context(), userID, expenseID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditDeleteExpense, "expense", expenseID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Expense deleted successfully"})
}
