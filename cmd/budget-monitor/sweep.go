package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"expensetracker/internal/app"
	"expensetracker/internal/clock"
	"expensetracker/internal/config"
	"expensetracker/internal/database"
	"expensetracker/internal/logger"
	"expensetracker/internal/metrics"
)

func sweepCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Check every user with active budgets once",
		Long: `Evaluate the active budgets of every user and send a notification for each
threshold crossed since the previous evaluation. Failures for one user are
reported and do not stop the sweep.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the sweep report as JSON")
	return cmd
}

func runSweep(cmd *cobra.Command, jsonOutput bool) error {
	log := logger.Named("budget-monitor")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnw("failed to close database", "error", err)
		}
	}()

	if err := metrics.Register(); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	dispatcher, err := app.NewDispatcher(cfg)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	svc := app.NewServices(dbManager.DB(), cfg, clock.System{}, dispatcher)

	report, err := svc.Monitor.CheckAllUsers(cmd.Context())
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "Users checked:      %d\n", report.TotalUsersChecked)
	fmt.Fprintf(out, "Notifications sent: %d\n", report.TotalNotificationsSent)
	fmt.Fprintf(out, "Failed users:       %d\n", report.FailedUsers)
	for _, r := range report.UserResults {
		if r.Error != "" {
			fmt.Fprintf(out, "  %s: %s\n", r.UserID, r.Error)
		}
	}
	return nil
}
