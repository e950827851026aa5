package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"expensetracker/internal/budget"
	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/pagination"
	"expensetracker/internal/services"
)

const defaultPeriodCount = 12

// BudgetHandler handles budget-related requests.
type BudgetHandler struct {
	budgetService services.BudgetServicer
	auditService  services.AuditServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer, auditService services.AuditServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, auditService: auditService}
}

// CreateBudgetRequest represents the request payload for creating a budget.
type CreateBudgetRequest struct {
	CategoryID string          `json:"category_id" binding:"required,uuid"`
	Amount     decimal.Decimal `json:"amount" binding:"required,decimal_gt0,max_2dp" swaggertype:"string" example:"500.00"`
	PeriodType string          `json:"period_type" binding:"required" example:"MONTHLY"`
	StartDate  string          `json:"start_date" binding:"required,datetime=2006-01-02" example:"2024-01-01"`
	EndDate    string          `json:"end_date" binding:"omitempty,datetime=2006-01-02" example:"2024-01-31"`
}

// UpdateBudgetRequest represents the request payload for updating a budget.
type UpdateBudgetRequest struct {
	CategoryID *string          `json:"category_id" binding:"omitempty,uuid"`
	Amount     *decimal.Decimal `json:"amount" binding:"omitempty,decimal_gt0,max_2dp" swaggertype:"string"`
	PeriodType *string          `json:"period_type"`
	StartDate  *string          `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate    *string          `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

// parsePeriodType accepts WEEKLY or MONTHLY in any case.
func parsePeriodType(s string) (budget.PeriodType, error) {
	p, err := budget.ParsePeriodType(s)
	if err != nil {
		return "", apperrors.ErrInvalidBudgetPeriod
	}
	return p, nil
}

func parseDate(s string) time.Time {
	// Inputs are validated by the datetime binding before this is called.
	t, _ := time.Parse(dateLayout, s)
	return t
}

// CreateBudget handles the creation of a new budget.
// @Summary     Create a budget
// @Description Create a budget for a category. The end date defaults to the end of the first period.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetRequest true "Budget details"
// @Success     201 {object} models.Budget "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     409 {object} ErrorResponse "Overlapping budget"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	periodType, err := parsePeriodType(req.PeriodType)
	if err != nil {
		respondWithError(c, err)
		return
	}

	input := services.BudgetInput{
		CategoryID: req.CategoryID,
		Amount:     req.Amount,
		PeriodType: periodType,
		StartDate:  parseDate(req.StartDate),
	}
	if req.EndDate != "" {
		input.EndDate = parseDate(req.EndDate)
	}

	created, err := h.budgetService.CreateBudget(userID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditCreateBudget, "budget", created.ID, c.ClientIP(),
		map[string]interface{}{"category_id": req.CategoryID, "amount": req.Amount.String(), "period_type": periodType})

	c.JSON(http.StatusCreated, gin.H{"budget": created})
}

// budgetFilter reads the shared list filters.
func budgetFilter(c *gin.Context) (services.BudgetFilter, error) {
	var filter services.BudgetFilter

	if v := c.Query("category_id"); v != "" {
		filter.CategoryID = &v
	}
	if v := c.Query("period_type"); v != "" {
		p, err := parsePeriodType(v)
		if err != nil {
			return filter, err
		}
		filter.PeriodType = &p
	}
	if v := c.Query("active_only"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "active_only must be 'true' or 'false'")
		}
		filter.ActiveOnly = active
	}
	return filter, nil
}

// GetBudgets handles listing budgets for the authenticated user.
// @Summary     Get budgets
// @Description Get a paginated list of budgets for the authenticated user
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       category_id query string false "Filter by category"
// @Param       period_type query string false "Filter by period type (WEEKLY/MONTHLY)"
// @Param       active_only query bool   false "Only budgets whose dates include today"
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Budget] "Paginated budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [get]
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
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

	filter, err := budgetFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.budgetService.GetUserBudgets(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetBudgetsWithStatus handles listing budgets together with their spending.
// @Summary     Get budgets with status
// @Description Get the user's budgets with current spending, remaining amount and status
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       category_id query string false "Filter by category"
// @Param       period_type query string false "Filter by period type (WEEKLY/MONTHLY)"
// @Param       active_only query bool   false "Only budgets whose dates include today"
// @Success     200 {array}  services.BudgetWithStatus "Budgets with status"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/status [get]
func (h *BudgetHandler) GetBudgetsWithStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	filter, err := budgetFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgets, err := h.budgetService.GetBudgetsWithStatus(userID, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budgets": budgets})
}

// GetBudget handles retrieving a specific budget.
// @Summary     Get budget by ID
// @Description Get a specific budget by its ID
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} models.Budget "Budget details"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [get]
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	found, err := h.budgetService.GetBudgetByID(userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": found})
}

// GetBudgetStatus handles retrieving a budget with its spending.
// @Summary     Get budget status
// @Description Get spending against a budget over its own dates
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} services.BudgetWithStatus "Budget status"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/status [get]
func (h *BudgetHandler) GetBudgetStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	status, err := h.budgetService.GetBudgetStatus(userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": status})
}

// UpdateBudget handles updating a budget.
// @Summary     Update budget
// @Description Update a budget's category, amount, period type or dates
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Budget ID"
// @Param       request body UpdateBudgetRequest true "Updated budget details"
// @Success     200 {object} models.Budget "Budget updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     409 {object} ErrorResponse "Overlapping budget"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [put]
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	update := services.BudgetUpdate{CategoryID: req.CategoryID, Amount: req.Amount}
	changes := map[string]interface{}{}
	if req.PeriodType != nil {
		p, err := parsePeriodType(*req.PeriodType)
		if err != nil {
			respondWithError(c, err)
			return
		}
		update.PeriodType = &p
		changes["period_type"] = p
	}
	if req.StartDate != nil {
		d := parseDate(*req.StartDate)
		update.StartDate = &d
		changes["start_date"] = *req.StartDate
	}
	if req.EndDate != nil {
		d := parseDate(*req.EndDate)
		update.EndDate = &d
		changes["end_date"] = *req.EndDate
	}
	if req.Amount != nil {
		changes["amount"] = req.Amount.String()
	}
	if req.CategoryID != nil {
		changes["category_id"] = *req.CategoryID
	}

	updated, err := h.budgetService.UpdateBudget(userID, budgetID, update)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditUpdateBudget, "budget", budgetID, c.ClientIP(), changes)

	c.JSON(http.StatusOK, gin.H{"budget": updated})
}

// DeleteBudget handles deleting a budget.
// @Summary     Delete budget
// @Description Delete a budget and its alert history
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} map[string]string "Budget deleted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [delete]
func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.budgetService.DeleteBudget(userID, budgetID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditDeleteBudget, "budget", budgetID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Budget deleted successfully"})
}

// GetBudgetSummary handles the summary of active budgets.
// @Summary     Get budget summary
// @Description Totals across the user's active budgets with over- and near-limit counts
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.BudgetSummary "Budget summary"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/summary [get]
func (h *BudgetHandler) GetBudgetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.budgetService.GetBudgetSummary(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// GetSpendingAggregation handles per-category spending in a date range.
// @Summary     Get spending aggregation
// @Description Spending per category in a date range (default current month), compared with budgets
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       start_date query string false "Start date (YYYY-MM-DD)"
// @Param       end_date   query string false "End date (YYYY-MM-DD)"
// @Success     200 {object} services.SpendingAggregation "Spending aggregation"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/spending-aggregation [get]
func (h *BudgetHandler) GetSpendingAggregation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	from, err := parseDateQuery(c, "start_date")
	if err != nil {
		respondWithError(c, err)
		return
	}
	to, err := parseDateQuery(c, "end_date")
	if err != nil {
		respondWithError(c, err)
		return
	}

	aggregation, err := h.budgetService.GetSpendingAggregation(userID, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"aggregation": aggregation})
}

// GetBudgetAlerts handles listing budgets at or over their limit.
// @Summary     Get budget alerts
// @Description Active budgets that are near their limit or over budget
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array}  services.BudgetAlert "Budget alerts"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/alerts [get]
func (h *BudgetHandler) GetBudgetAlerts(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	alerts, err := h.budgetService.GetBudgetAlerts(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// GetBudgetPeriods handles generating consecutive budget periods.
// @Summary     Generate budget periods
// @Description Consecutive weekly or monthly periods starting from a date
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       period_type query string true  "WEEKLY or MONTHLY"
// @Param       start_date  query string false "First period anchor (YYYY-MM-DD, default today)"
// @Param       num_periods query int    false "Number of periods (1-24, default 12)"
// @Success     200 {array}  budget.Window "Periods"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /budgets/periods [get]
func (h *BudgetHandler) GetBudgetPeriods(c *gin.Context) {
	if _, err := getUserID(c); err != nil {
		respondWithError(c, err)
		return
	}

	periodType, err := parsePeriodType(c.Query("period_type"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	start, err := parseDateQuery(c, "start_date")
	if err != nil {
		respondWithError(c, err)
		return
	}
	var anchor time.Time
	if start != nil {
		anchor = *start
	}

	count := defaultPeriodCount
	if v := strings.TrimSpace(c.Query("num_periods")); v != "" {
		count, err = strconv.Atoi(v)
		if err != nil || count < 1 || count > services.MaxGeneratedPeriods {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "num_periods must be between 1 and 24"))
			return
		}
	}

	periods, err := h.budgetService.GeneratePeriods(periodType, anchor, count)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"period_type": periodType, "periods": periods})
}
