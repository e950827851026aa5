package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/services"
)

const defaultTrendMonths = 12

// AnalyticsHandler handles spending report requests.
type AnalyticsHandler struct {
	analyticsService services.AnalyticsServicer
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analyticsService services.AnalyticsServicer) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// GetSpendingAnalytics handles totals, category breakdown and trends.
// @Summary     Get spending analytics
// @Description Totals, average and per-category spending in a date range (default last 180 days), with twelve months of trends
// @Tags        analytics
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       start_date query string false "Start date (YYYY-MM-DD)"
// @Param       end_date   query string false "End date (YYYY-MM-DD)"
// @Success     200 {object} services.SpendingAnalytics "Spending analytics"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /analytics/spending [get]
func (h *AnalyticsHandler) GetSpendingAnalytics(c *gin.Context) {
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

	analytics, err := h.analyticsService.GetSpendingAnalytics(userID, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"analytics": analytics})
}

// GetCategoryBreakdown handles per-category spending totals.
// @Summary     Get spending by category
// @Description Spending totals and counts per category, largest first
// @Tags        analytics
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       start_date query string false "Start date (YYYY-MM-DD)"
// @Param       end_date   query string false "End date (YYYY-MM-DD)"
// @Success     200 {array}  services.CategoryTotal "Category totals"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /analytics/categories [get]
func (h *AnalyticsHandler) GetCategoryBreakdown(c *gin.Context) {
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

	categories, err := h.analyticsService.GetCategoryBreakdown(userID, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetMonthlyTrends handles month-by-month spending.
// @Summary     Get monthly spending trends
// @Description Spending per calendar month, ending with the current month
// @Tags        analytics
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       months_back query int false "Number of months (1-24, default 12)"
// @Success     200 {array}  services.MonthlyTrend "Monthly trends"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /analytics/trends [get]
func (h *AnalyticsHandler) GetMonthlyTrends(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	months := defaultTrendMonths
	if v := strings.TrimSpace(c.Query("months_back")); v != "" {
		months, err = strconv.Atoi(v)
		if err != nil || months < 1 || months > services.MaxTrendMonths {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("months_back must be between 1 and %d", services.MaxTrendMonths)))
			return
		}
	}

	trends, err := h.analyticsService.GetMonthlyTrends(userID, months)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trends": trends})
}

// GetBudgetComparison handles budget against spending for a month.
// @Summary     Compare budgets with spending
// @Description Monthly budgets covering the month, each with the month's spending in its category
// @Tags        analytics
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       month query string false "Any date in the month (YYYY-MM-DD, default today)"
// @Success     200 {object} services.BudgetComparison "Budget comparison"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /analytics/budget-comparison [get]
func (h *AnalyticsHandler) GetBudgetComparison(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	month, err := parseDateQuery(c, "month")
	if err != nil {
		respondWithError(c, err)
		return
	}

	comparison, err := h.analyticsService.GetBudgetComparison(userID, month)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"comparison": comparison})
}

// GetSummary handles the quick spending summary.
// @Summary     Get spending summary
// @Description Spending from the start of the week, month, quarter or year up to today, with the top three categories
// @Tags        analytics
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       period query string false "week, month, quarter or year (default month)"
// @Success     200 {object} services.SpendingSummary "Spending summary"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /analytics/summary [get]
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.analyticsService.GetSummary(userID, strings.ToLower(strings.TrimSpace(c.Query("period"))))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
