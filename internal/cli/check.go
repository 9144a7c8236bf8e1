package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"deedwatch/internal/app"
)

var (
	checkDays   int
	checkDate   string
	checkDryRun bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the pipeline once for a trailing window or a single date",
	RunE: func(cmd *cobra.Command, args []string) error {
		if checkDays < 0 {
			return fmt.Errorf("--days must not be negative")
		}
		if checkDate != "" && cmd.Flags().Changed("days") {
			return fmt.Errorf("--days and --date are mutually exclusive")
		}

		opts := app.CheckOptions{Days: checkDays, DryRun: checkDryRun}
		if checkDate != "" {
			date, err := parseDate("date", checkDate)
			if err != nil {
				return err
			}
			opts.Date = &date
		}
		return getApp().Check(cmd.Context(), opts)
	},
}

func init() {
	checkCmd.Flags().IntVar(&checkDays, "days", 0, "Trailing days to check (defaults to config)")
	checkCmd.Flags().StringVar(&checkDate, "date", "", "Single recording date to check (YYYY-MM-DD)")
	checkCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "Fetch, match and price without persisting or notifying")
}
