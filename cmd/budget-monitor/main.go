package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"expensetracker/internal/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "budget-monitor",
		Short: "Budget alert sweeps and period tooling",
		Long: `budget-monitor runs the budget alert sweep outside the API server and
prints the budget periods a period type produces from a start date.

Schedule "budget-monitor sweep" to notify users whose spending crossed a
warning or exceeded threshold since the last check.`,
		SilenceUsage: true,
	}

	root.AddCommand(sweepCmd())
	root.AddCommand(periodsCmd())
	return root
}

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
