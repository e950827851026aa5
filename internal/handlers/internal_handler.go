package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"expensetracker/internal/services"
)

// InternalHandler serves endpoints called by schedulers rather than users.
type InternalHandler struct {
	monitorService services.BudgetMonitorServicer
}

// NewInternalHandler creates a new InternalHandler.
func NewInternalHandler(monitorService services.BudgetMonitorServicer) *InternalHandler {
	return &InternalHandler{monitorService: monitorService}
}

// SweepBudgetAlerts handles a budget alert sweep across all users.
// @Summary     Sweep budget alerts
// @Description Evaluate every user with active budgets and send notifications for new crossings
// @Tags        internal
// @Produce     json
// @Security    APIKeyAuth
// @Success     200 {object} services.SweepReport "Sweep report"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /internal/budget-alerts/sweep [post]
func (h *InternalHandler) SweepBudgetAlerts(c *gin.Context) {
	report, err := h.monitorService.CheckAllUsers(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
