// Package runs audits pipeline executions in monitor_runs.
package runs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deedwatch/internal/storage"
)

// Tracker opens and closes monitor runs.
type Tracker struct {
	store  storage.RunStore
	now    func() time.Time
	logger zerolog.Logger
}

// NewTracker constructs a Tracker.
func NewTracker(store storage.RunStore, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("component", "run_tracker").Logger(),
	}
}

// Run is an open run handle.
type Run struct {
	ID        uuid.UUID
	County    string
	From      time.Time
	To        time.Time
	StartedAt time.Time
}

// Start records a running run for the window.
func (t *Tracker) Start(ctx context.Context, county string, from, to time.Time) (Run, error) {
	run := Run{
		ID:        uuid.New(),
		County:    county,
		From:      storage.Day(from),
		To:        storage.Day(to),
		StartedAt: t.now(),
	}
	if err := t.store.CreateRun(ctx, storage.MonitorRun{
		ID:         run.ID,
		StartedAt:  run.StartedAt,
		County:     county,
		RangeStart: run.From,
		RangeEnd:   run.To,
		Status:     storage.RunStatusRunning,
	}); err != nil {
		return Run{}, fmt.Errorf("start run: %w", err)
	}
	t.logger.Info().
		Str("run_id", run.ID.String()).
		Str("county", county).
		Time("from", run.From).
		Time("to", run.To).
		Msg("run started")
	return run, nil
}

// Complete closes the run as completed.
func (t *Tracker) Complete(ctx context.Context, run Run, stats storage.RunStats) error {
	return t.close(ctx, run, storage.RunStatusCompleted, stats, nil)
}

// Fail closes the run as failed with cause recorded.
func (t *Tracker) Fail(ctx context.Context, run Run, stats storage.RunStats, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return t.close(ctx, run, storage.RunStatusFailed, stats, &msg)
}

func (t *Tracker) close(ctx context.Context, run Run, status storage.RunStatus, stats storage.RunStats, errMsg *string) error {
	completed := t.now()
	duration := completed.Sub(run.StartedAt).Milliseconds()
	if err := t.store.CloseRun(ctx, run.ID, storage.RunClose{
		Status:       status,
		Stats:        stats,
		ErrorMessage: errMsg,
		CompletedAt:  completed,
		DurationMs:   duration,
	}); err != nil {
		return fmt.Errorf("close run %s: %w", run.ID, err)
	}

	event := t.logger.Info()
	if status == storage.RunStatusFailed {
		event = t.logger.Error().Str("error", *errMsg)
	}
	event.
		Str("run_id", run.ID.String()).
		Str("status", string(status)).
		Int("fetched", stats.RecordsFetched).
		Int("stored", stats.RecordsStored).
		Int("skipped", stats.RecordsSkipped).
		Int("pages_failed", stats.PagesFailed).
		Int("matched", stats.RecordsMatched).
		Int("alerts", stats.AlertsCreated).
		Int64("duration_ms", duration).
		Msg("run closed")
	return nil
}
