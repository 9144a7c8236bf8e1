package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound is returned when a keyed lookup matches no row.
	ErrNotFound = errors.New("storage: not found")
	// ErrRunClosed is returned when closing a run that is no longer running.
	ErrRunClosed = errors.New("storage: run already closed")
	// ErrAlreadyAcknowledged is returned when acknowledging an alert twice.
	ErrAlreadyAcknowledged = errors.New("storage: alert already acknowledged")
)

// WatchlistStore reads monitored parcels. Upserts are keyed by apn and exist for
// the import collaborator and operators.
type WatchlistStore interface {
	UpsertWatchlistEntry(ctx context.Context, entry WatchlistEntry) (WatchlistEntry, error)
	FindWatchlistByAPN(ctx context.Context, apnNormalized string) ([]WatchlistEntry, error)
	GetWatchlistEntry(ctx context.Context, id uuid.UUID) (WatchlistEntry, error)
	ListWatchlist(ctx context.Context, limit int) ([]WatchlistEntry, error)
}

// RecordingStore persists deed recordings with insert-if-absent semantics on
// (doc_number, recording_date).
type RecordingStore interface {
	// InsertRecording stores rec unless a recording with the same document
	// number and date exists, in which case the existing row is returned with
	// created=false.
	InsertRecording(ctx context.Context, rec DeedRecording) (DeedRecording, bool, error)
	FindRecording(ctx context.Context, docNumber string, recordingDate time.Time) (DeedRecording, error)
	GetRecording(ctx context.Context, id uuid.UUID) (DeedRecording, error)
	// ListPendingRecordings returns recordings of the county inside [from, to]
	// that have no alert yet.
	ListPendingRecordings(ctx context.Context, county string, from, to time.Time) ([]DeedRecording, error)
	// SetRecordingMatch writes a match onto an unmatched recording. It reports
	// false when the recording was already matched.
	SetRecordingMatch(ctx context.Context, id uuid.UUID, match RecordingMatch) (bool, error)
}

// AlertStore persists sale alerts with insert-if-absent semantics on
// (watchlist_id, deed_id).
type AlertStore interface {
	// CreateAlert inserts the alert and, only when it is new, applies sale to
	// the watchlist entry in the same transaction. An existing alert for the
	// pair is returned unchanged with created=false.
	CreateAlert(ctx context.Context, alert SaleAlert, sale SaleUpdate) (SaleAlert, bool, error)
	GetAlert(ctx context.Context, id uuid.UUID) (SaleAlert, error)
	ListUnsentAlerts(ctx context.Context, limit int) ([]SaleAlert, error)
	MarkAlertSent(ctx context.Context, id uuid.UUID, channel string, sentAt time.Time) error
	AcknowledgeAlert(ctx context.Context, id uuid.UUID, note string, at time.Time) (SaleAlert, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]SaleAlert, error)
	ListAlertsBetween(ctx context.Context, from, to time.Time, limit int) ([]SaleAlert, error)
}

// RunStore audits pipeline executions.
type RunStore interface {
	CreateRun(ctx context.Context, run MonitorRun) error
	// CloseRun moves a running run to its terminal status. Returns ErrRunClosed
	// when the run is not running.
	CloseRun(ctx context.Context, id uuid.UUID, close RunClose) error
	GetRun(ctx context.Context, id uuid.UUID) (MonitorRun, error)
	HasCompletedRun(ctx context.Context, county string, from, to time.Time) (bool, error)
	ListRecentRuns(ctx context.Context, limit int) ([]MonitorRun, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Repository aggregates every store the pipeline needs.
type Repository interface {
	WatchlistStore
	RecordingStore
	AlertStore
	RunStore
	AdvisoryLocker
	Migrate(ctx context.Context) error
	Close() error
}
