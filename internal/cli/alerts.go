package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"deedwatch/internal/app"
)

var (
	alertsLimit int
	runsLimit   int
	ackNote     string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Display recent sale alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertsLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().ShowAlerts(cmd.Context(), app.ShowOptions{Limit: alertsLimit})
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Display recent monitor runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runsLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().ShowRuns(cmd.Context(), app.ShowOptions{Limit: runsLimit})
	},
}

var ackCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Acknowledge a sale alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid alert id: %w", err)
		}
		return getApp().Acknowledge(cmd.Context(), id, ackNote)
	},
}

func init() {
	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 20, "Number of alerts to display")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Number of runs to display")
	ackCmd.Flags().StringVar(&ackNote, "note", "", "Note stored with the acknowledgment")
}
