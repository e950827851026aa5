// Package router wires handlers and middleware into the gin engine.
package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"expensetracker/internal/config"
	"expensetracker/internal/handlers"
	"expensetracker/internal/metrics"
	"expensetracker/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Category     *handlers.CategoryHandler
	Expense      *handlers.ExpenseHandler
	Budget       *handlers.BudgetHandler
	Notification *handlers.NotificationHandler
	Analytics    *handlers.AnalyticsHandler
	Internal     *handlers.InternalHandler
}

// New builds the gin engine with the global middleware chain and all routes.
func New(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Disable the gin debug route printing as it clutters logs (and test logs)
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, numHandlers int) {}

	r.Use(gin.Recovery())
	r.Use(requestid.New())
	r.Use(middleware.RequestLogging())
	r.Use(metrics.Middleware())
	r.Use(middleware.ErrorHandler())

	if len(cfg.CORSAllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSAllowOrigins,
			AllowMethods:     []string{"OPTIONS", "GET", "POST", "PUT", "DELETE"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-API-Key"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
		}))
	}

	if cfg.EnablePprof {
		pprof.Register(r, "debug/pprof")
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", metrics.Handler())

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	// Protected routes
	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", h.Auth.GetProfile)

	categories := protected.Group("/categories")
	categories.POST("", h.Category.CreateCategory)
	categories.GET("", h.Category.GetCategories)
	categories.GET("/:id", h.Category.GetCategory)
	categories.PUT("/:id", h.Category.UpdateCategory)
	categories.DELETE("/:id", h.Category.DeleteCategory)

	expenses := protected.Group("/expenses")
	expenses.POST("", h.Expense.CreateExpense)
	expenses.GET("", h.Expense.GetExpenses)
	expenses.GET("/:id", h.Expense.GetExpense)
	expenses.PUT("/:id", h.Expense.UpdateExpense)
	expenses.DELETE("/:id", h.Expense.DeleteExpense)

	budgets := protected.Group("/budgets")
	budgets.POST("", h.Budget.CreateBudget)
	budgets.GET("", h.Budget.GetBudgets)
	budgets.GET("/status", h.Budget.GetBudgetsWithStatus)
	budgets.GET("/summary", h.Budget.GetBudgetSummary)
	budgets.GET("/spending-aggregation", h.Budget.GetSpendingAggregation)
	budgets.GET("/alerts", h.Budget.GetBudgetAlerts)
	budgets.GET("/periods", h.Budget.GetBudgetPeriods)
	budgets.GET("/:id", h.Budget.GetBudget)
	budgets.GET("/:id/status", h.Budget.GetBudgetStatus)
	budgets.PUT("/:id", h.Budget.UpdateBudget)
	budgets.DELETE("/:id", h.Budget.DeleteBudget)

	notifications := protected.Group("/notifications")
	notifications.GET("/preferences", h.Notification.GetPreferences)
	notifications.PUT("/preferences", h.Notification.UpdatePreferences)
	notifications.GET("/logs", h.Notification.GetLogs)
	notifications.POST("/check-budget-alerts", h.Notification.CheckBudgetAlerts)
	notifications.GET("/budget-status", h.Notification.GetBudgetStatus)
	notifications.POST("/test", h.Notification.SendTestNotification)

	analytics := protected.Group("/analytics")
	analytics.GET("/spending", h.Analytics.GetSpendingAnalytics)
	analytics.GET("/categories", h.Analytics.GetCategoryBreakdown)
	analytics.GET("/trends", h.Analytics.GetMonthlyTrends)
	analytics.GET("/budget-comparison", h.Analytics.GetBudgetComparison)
	analytics.GET("/summary", h.Analytics.GetSummary)

	// Scheduler routes
	internal := r.Group("/internal")
	internal.Use(middleware.APIKeyMiddleware(cfg.InternalAPIKey))
	internal.POST("/budget-alerts/sweep", h.Internal.SweepBudgetAlerts)

	return r
}
