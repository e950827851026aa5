package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/services"
)

// NotificationHandler handles notification preferences, history and
// on-demand budget checks.
type NotificationHandler struct {
	notificationService services.NotificationServicer
	monitorService      services.BudgetMonitorServicer
	auditService        services.AuditServicer
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(
	notificationService services.NotificationServicer,
	monitorService services.BudgetMonitorServicer,
	auditService services.AuditServicer,
) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		monitorService:      monitorService,
		auditService:        auditService,
	}
}

// UpdatePreferencesRequest represents the request payload for updating
// notification preferences.
type UpdatePreferencesRequest struct {
	BudgetWarningsEnabled *bool `json:"budget_warnings_enabled"`
	BudgetExceededEnabled *bool `json:"budget_exceeded_enabled"`
	WarningThreshold      *int  `json:"warning_threshold" example:"80"`
}

// TestNotificationRequest represents the request payload for a test notification.
type TestNotificationRequest struct {
	Title string `json:"title" binding:"max=255"`
	Body  string `json:"body" binding:"max=1000"`
}

// GetPreferences handles retrieving notification preferences.
// @Summary     Get notification preferences
// @Description Get the user's notification preferences, creating defaults on first access
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.NotificationPreferences "Preferences"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /notifications/preferences [get]
func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	prefs, err := h.notificationService.GetPreferences(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// UpdatePreferences handles updating notification preferences.
// @Summary     Update notification preferences
// @Description Toggle budget warnings and exceeded alerts or change the warning threshold (50-95)
// @Tags        notifications
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdatePreferencesRequest true "Preference changes"
// @Success     200 {object} models.NotificationPreferences "Preferences updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /notifications/preferences [put]
func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	prefs, err := h.notificationService.UpdatePreferences(userID, services.PreferencesUpdate{
		BudgetWarningsEnabled: req.BudgetWarningsEnabled,
		BudgetExceededEnabled: req.BudgetExceededEnabled,
		WarningThreshold:      req.WarningThreshold,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditUpdatePreferences, "notification_preferences", prefs.ID, c.ClientIP(),
		map[string]interface{}{
			"budget_warnings_enabled": prefs.BudgetWarningsEnabled,
			"budget_exceeded_enabled": prefs.BudgetExceededEnabled,
			"warning_threshold":       prefs.WarningThreshold,
		})

	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// GetLogs handles listing recent notifications.
// @Summary     Get notification history
// @Description Most recent notifications sent to the user, newest first
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Param       limit query int false "Maximum entries (default 50, max 200)"
// @Success     200 {array}  models.NotificationLog "Notification history"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /notifications/logs [get]
func (h *NotificationHandler) GetLogs(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "limit must be a positive integer"))
			return
		}
	}

	logs, err := h.notificationService.GetLogs(userID, limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}

// CheckBudgetAlerts handles an on-demand budget check for the user.
// @Summary     Check budget alerts
// @Description Evaluate the user's active budgets now and send notifications for new threshold crossings
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array}  services.AlertResult "Alerts raised"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /notifications/check-budget-alerts [post]
func (h *NotificationHandler) CheckBudgetAlerts(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	alerts, err := h.monitorService.CheckUserBudgetAlerts(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	sent := 0
	for _, a := range alerts {
		if a.Delivered {
			sent++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts":             alerts,
		"alerts_found":       len(alerts),
		"notifications_sent": sent,
	})
}

// GetBudgetStatus handles the budget dashboard view.
// @Summary     Get budget status
// @Description Summary and per-budget status of the user's active budgets
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.UserBudgetStatus "Budget status"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /notifications/budget-status [get]
func (h *NotificationHandler) GetBudgetStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	status, err := h.monitorService.GetBudgetStatusForUser(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// SendTestNotification handles sending a test notification.
// @Summary     Send test notification
// @Description Send a notification through the configured dispatcher
// @Tags        notifications
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body TestNotificationRequest false "Title and body"
// @Success     200 {object} models.NotificationLog "Notification sent"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     502 {object} ErrorResponse "Dispatch failed"
// @Router      /notifications/test [post]
func (h *NotificationHandler) SendTestNotification(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TestNotificationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	entry, err := h.notificationService.SendTestNotification(c.Request.Context(), userID, req.Title, req.Body)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notification": entry})
}
