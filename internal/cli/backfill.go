package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"deedwatch/internal/app"
)

var (
	backfillStart    string
	backfillEnd      string
	backfillWindow   int
	backfillResume   bool
	backfillDryRun   bool
	backfillProgress bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Process a historical range of recording dates",
	RunE: func(cmd *cobra.Command, args []string) error {
		if backfillStart == "" || backfillEnd == "" {
			return fmt.Errorf("--start and --end must be provided")
		}

		from, err := parseDate("start", backfillStart)
		if err != nil {
			return err
		}
		to, err := parseDate("end", backfillEnd)
		if err != nil {
			return err
		}
		if to.Before(from) {
			return fmt.Errorf("--start must not be after --end")
		}
		if backfillWindow < 0 {
			return fmt.Errorf("--window must not be negative")
		}

		opts := app.BackfillOptions{
			From:       from,
			To:         to,
			WindowDays: backfillWindow,
			Resume:     backfillResume,
			DryRun:     backfillDryRun,
			Progress:   backfillProgress,
		}

		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillStart, "start", "", "First recording date (YYYY-MM-DD, inclusive)")
	backfillCmd.Flags().StringVar(&backfillEnd, "end", "", "Last recording date (YYYY-MM-DD, inclusive)")
	backfillCmd.Flags().IntVar(&backfillWindow, "window", 0, "Days per sub-window (defaults to monitor.window)")
	backfillCmd.Flags().BoolVar(&backfillResume, "resume", false, "Skip sub-windows that already completed")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Run without writing to storage or notifying")
	backfillCmd.Flags().BoolVar(&backfillProgress, "progress", false, "Show a progress bar instead of per-window reports")
}
