package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"

	"deedwatch/internal/service"
)

// Backfill processes a historical date range in sub-windows.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	if opts.To.Before(opts.From) {
		return errors.New("backfill range is empty, check --start/--end")
	}
	windowDays := opts.WindowDays
	if windowDays <= 0 {
		windowDays = int(a.Config.Monitor.Window.Hours() / 24)
	}
	windows := service.SplitWindows(opts.From, opts.To, windowDays)

	p, err := a.newPipeline(ctx, pipelineOptions{})
	if err != nil {
		return err
	}
	defer p.close()

	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry run: nothing will be persisted or dispatched")
	}

	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.NewOptions(len(windows),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan]Backfilling windows...[reset]"),
		)
	}

	var alerts, skipped int
	reports, err := p.svc.Backfill(ctx, opts.From, opts.To, service.BackfillOptions{
		WindowDays: windowDays,
		Resume:     opts.Resume,
		DryRun:     opts.DryRun,
		OnWindow: func(rep service.Report) {
			alerts += rep.Stats.AlertsCreated
			if rep.Resumed {
				skipped++
			}
			if bar != nil {
				_ = bar.Add(1)
			} else {
				printReport(os.Stdout, rep)
			}
		},
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	a.Logger.Info().
		Int("windows", len(windows)).
		Int("processed", len(reports)).
		Int("resumed", skipped).
		Int("alerts", alerts).
		Bool("dry_run", opts.DryRun).
		Msg("backfill finished")
	return err
}
