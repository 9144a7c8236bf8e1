package cli

import (
	"github.com/spf13/cobra"

	"deedwatch/internal/app"
)

var (
	exportFrom    string
	exportTo      string
	exportPNGPath string
	exportCSVPath string
	exportMaxRows int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sale alerts as CSV and/or a PNG price timeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath: exportPNGPath,
			CSVPath: exportCSVPath,
			MaxRows: exportMaxRows,
		}

		if exportFrom != "" {
			from, err := parseDate("from", exportFrom)
			if err != nil {
				return err
			}
			opts.From = &from
		}

		if exportTo != "" {
			to, err := parseDate("to", exportTo)
			if err != nil {
				return err
			}
			opts.To = &to
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "First sale date (YYYY-MM-DD, inclusive, defaults to 90 days ago)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Last sale date (YYYY-MM-DD, inclusive, defaults to today)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxRows, "max-rows", 0, "Maximum alerts to export (defaults to config)")
}
