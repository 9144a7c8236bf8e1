package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"deedwatch/internal/alerting"
	"deedwatch/internal/storage"
)

// ShowAlerts prints recent sale alerts, newest first.
func (a *App) ShowAlerts(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alerts, err := store.ListRecentAlerts(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tPriority\tSale Date\tAPN\tAddress\tPrice\tvs Listing\tvs Assessed\tSent\tAck")
	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			alert.ID,
			priorityColor(alert.Priority).Sprint(string(alert.Priority)),
			alert.SaleDate.Format("2006-01-02"),
			alert.APN,
			sanitizeInline(alert.Address),
			formatPrice(alert.SalePrice),
			formatRatio(alert.PriceVsListing, "%"),
			formatRatio(alert.PriceVsAssessed, "x"),
			sentLabel(alert),
			yesNo(alert.Acknowledged),
		)
	}

	return writer.Flush()
}

// ShowRuns prints recent monitor runs, newest first.
func (a *App) ShowRuns(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	runList, err := store.ListRecentRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(runList) == 0 {
		fmt.Fprintln(os.Stdout, "no runs found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Started (UTC)\tCounty\tRange\tStatus\tFetched\tStored\tSkipped\tMatched\tAlerts\tDuration\tError")
	for _, run := range runList {
		duration := "-"
		if run.DurationMs != nil {
			duration = (time.Duration(*run.DurationMs) * time.Millisecond).String()
		}
		errMsg := ""
		if run.ErrorMessage != nil {
			errMsg = sanitizeInline(*run.ErrorMessage)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s..%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			run.StartedAt.UTC().Format(time.RFC3339),
			run.County,
			run.RangeStart.Format("2006-01-02"),
			run.RangeEnd.Format("2006-01-02"),
			statusColor(run.Status).Sprint(string(run.Status)),
			run.RecordsFetched,
			run.RecordsStored,
			run.RecordsSkipped,
			run.RecordsMatched,
			run.AlertsCreated,
			duration,
			errMsg,
		)
	}

	return writer.Flush()
}

// Acknowledge marks an alert as handled by a broker.
func (a *App) Acknowledge(ctx context.Context, id uuid.UUID, note string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alert, err := store.AcknowledgeAlert(ctx, id, note, time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "acknowledged %s (%s, %s)\n", alert.ID, alert.APN, sanitizeInline(alert.Address))
	return nil
}

func priorityColor(p storage.Priority) *color.Color {
	switch p {
	case storage.PriorityHigh:
		return color.New(color.FgRed, color.Bold)
	case storage.PriorityNormal:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgWhite)
	}
}

func statusColor(s storage.RunStatus) *color.Color {
	switch s {
	case storage.RunStatusCompleted:
		return color.New(color.FgGreen)
	case storage.RunStatusFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgCyan)
	}
}

func formatPrice(d decimal.NullDecimal) string {
	if !d.Valid {
		return "exempt"
	}
	return alerting.FormatPrice(d)
}

func formatRatio(d decimal.NullDecimal, suffix string) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(2) + suffix
}

func sentLabel(alert storage.SaleAlert) string {
	if !alert.NotificationSent {
		return "no"
	}
	if alert.NotificationChannel != nil {
		return *alert.NotificationChannel
	}
	return "yes"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
