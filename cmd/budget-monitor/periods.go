package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"expensetracker/internal/budget"
	"expensetracker/internal/services"
)

func periodsCmd() *cobra.Command {
	var (
		periodType string
		start      string
		count      int
	)

	cmd := &cobra.Command{
		Use:   "periods",
		Short: "Print consecutive budget periods",
		Long: `Print count consecutive budget periods of the given type. Monthly periods
cover whole calendar months starting with the month containing --start.
Weekly periods are seven days long and start on --start.`,
		Example: "  budget-monitor periods --type monthly --start 2024-01-15 --count 3",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 0 || count > services.MaxGeneratedPeriods {
				return fmt.Errorf("--count must be between 0 and %d", services.MaxGeneratedPeriods)
			}

			pt, err := budget.ParsePeriodType(periodType)
			if err != nil {
				return err
			}

			anchor := budget.DateOf(time.Now())
			if start != "" {
				anchor, err = time.Parse(time.DateOnly, start)
				if err != nil {
					return fmt.Errorf("invalid --start %q: expected YYYY-MM-DD", start)
				}
			}

			windows, err := budget.GenerateWindows(pt, anchor, count)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tSTART\tEND\tDAYS")
			for i, win := range windows {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", i+1,
					win.Start.Format(time.DateOnly), win.End.Format(time.DateOnly), win.Days())
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&periodType, "type", "monthly", "period type (weekly or monthly)")
	cmd.Flags().StringVar(&start, "start", "", "first period anchor as YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&count, "count", 12, "number of periods, at most 24")
	return cmd
}
