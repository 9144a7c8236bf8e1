package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"deedwatch/internal/service"
)

// Check runs the pipeline once for a trailing window or a single date.
func (a *App) Check(ctx context.Context, opts CheckOptions) error {
	p, err := a.newPipeline(ctx, pipelineOptions{})
	if err != nil {
		return err
	}
	defer p.close()

	window := service.TrailingWindow(time.Now().UTC(), a.Config.ResolveLookback(opts.Days))
	if opts.Date != nil {
		window = service.DayWindow(*opts.Date)
	}

	var rep service.Report
	if opts.DryRun {
		a.Logger.Warn().Msg("dry run: nothing will be persisted or dispatched")
		rep, err = p.svc.PreviewWindow(ctx, window)
	} else {
		rep, err = p.svc.ProcessWindow(ctx, window)
	}
	printReport(os.Stdout, rep)
	return err
}

func printReport(w io.Writer, rep service.Report) {
	label := "run"
	if rep.DryRun {
		label = "dry run"
	}
	fmt.Fprintf(w, "%s %s..%s\n", label, rep.Window.From.Format("2006-01-02"), rep.Window.To.Format("2006-01-02"))
	if rep.Resumed {
		fmt.Fprintln(w, "  already completed, skipped")
		return
	}
	s := rep.Stats
	fmt.Fprintf(w, "  fetched %d  stored %d  skipped %d  pages failed %d\n", s.RecordsFetched, s.RecordsStored, s.RecordsSkipped, s.PagesFailed)
	fmt.Fprintf(w, "  matched %d  alerts %d", s.RecordsMatched, s.AlertsCreated)
	if !rep.DryRun {
		fmt.Fprintf(w, "  dispatched %d  dispatch failed %d", rep.Dispatched, rep.DispatchFailed)
	}
	fmt.Fprintln(w)
	for _, alert := range rep.Alerts {
		fmt.Fprintf(w, "  %s %s  %s  %s\n",
			priorityColor(alert.Priority).Sprint(string(alert.Priority)),
			alert.APN,
			alert.Address,
			formatPrice(alert.SalePrice),
		)
	}
	if rep.Status != "" {
		fmt.Fprintf(w, "  status %s\n", statusColor(rep.Status).Sprint(string(rep.Status)))
	}
}
