package service

import (
	"context"
	"fmt"
	"time"

	"deedwatch/internal/storage"
)

// BackfillOptions control a historical backfill.
type BackfillOptions struct {
	WindowDays int
	Resume     bool
	DryRun     bool
	// OnWindow is called after each sub-window, including resumed ones.
	OnWindow func(Report)
}

// SplitWindows cuts [from, to] into consecutive inclusive windows of at most
// days days.
func SplitWindows(from, to time.Time, days int) []Window {
	if days <= 0 {
		days = 7
	}
	from, to = storage.Day(from), storage.Day(to)
	var windows []Window
	for start := from; !start.After(to); start = start.AddDate(0, 0, days) {
		end := start.AddDate(0, 0, days-1)
		if end.After(to) {
			end = to
		}
		windows = append(windows, Window{From: start, To: end})
	}
	return windows
}

// Backfill processes [from, to] one sub-window at a time, each under its own
// run. It stops at the first failed window so it can be resumed there.
func (s *Service) Backfill(ctx context.Context, from, to time.Time, opts BackfillOptions) ([]Report, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("backfill end %s is before start %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	windows := SplitWindows(from, to, opts.WindowDays)
	reports := make([]Report, 0, len(windows))
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		var (
			rep Report
			err error
		)
		switch {
		case opts.DryRun:
			rep, err = s.PreviewWindow(ctx, w)
		case opts.Resume:
			done, checkErr := s.deps.Repo.HasCompletedRun(ctx, s.opts.County, w.From, w.To)
			if checkErr != nil {
				return reports, checkErr
			}
			if done {
				rep = Report{Window: w, Resumed: true, Status: storage.RunStatusCompleted}
				s.logger.Info().Time("from", w.From).Time("to", w.To).Msg("window already completed, skipping")
				break
			}
			rep, err = s.ProcessWindow(ctx, w)
		default:
			rep, err = s.ProcessWindow(ctx, w)
		}

		reports = append(reports, rep)
		if opts.OnWindow != nil {
			opts.OnWindow(rep)
		}
		if err != nil {
			return reports, fmt.Errorf("window %s..%s: %w", w.From.Format("2006-01-02"), w.To.Format("2006-01-02"), err)
		}
	}
	return reports, nil
}
