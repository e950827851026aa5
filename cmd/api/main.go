package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expensetracker/internal/app"
	"expensetracker/internal/clock"
	"expensetracker/internal/config"
	"expensetracker/internal/database"
	"expensetracker/internal/handlers"
	"expensetracker/internal/logger"
	"expensetracker/internal/metrics"
	"expensetracker/internal/router"
	"expensetracker/internal/validator"

	_ "expensetracker/internal/docs" // Import swagger docs
)

const shutdownTimeout = 10 * time.Second

// @title           Expense Tracker API
// @version         1.0
// @description     Expense tracking with budgets, spending aggregation and threshold alerts.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey APIKeyAuth
// @in header
// @name X-API-Key

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	if err := metrics.Register(); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	validator.Register()

	dispatcher, err := app.NewDispatcher(appConfig)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	svc := app.NewServices(dbManager.DB(), appConfig, clock.System{}, dispatcher)
	if err := svc.Categories.EnsureDefaultCategories(); err != nil {
		return fmt.Errorf("failed to seed default categories: %w", err)
	}

	engine := router.New(appConfig, router.Handlers{
		Auth:         handlers.NewAuthHandler(svc.Users, svc.Audit),
		Category:     handlers.NewCategoryHandler(svc.Categories, svc.Audit),
		Expense:      handlers.NewExpenseHandler(svc.Expenses, svc.Audit),
		Budget:       handlers.NewBudgetHandler(svc.Budgets, svc.Audit),
		Notification: handlers.NewNotificationHandler(svc.Notifications, svc.Monitor, svc.Audit),
		Analytics:    handlers.NewAnalyticsHandler(svc.Analytics),
		Internal:     handlers.NewInternalHandler(svc.Monitor),
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting expense tracker server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
