package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"deedwatch/internal/apn"
)

// Day truncates t to a UTC calendar date, the granularity of recording dates.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// sqlRepo implements every store on top of a dbHandle; the PostgreSQL and
// SQLite stores only differ in how that handle is built.
type sqlRepo struct {
	db  txBeginner
	now func() time.Time
}

func newSQLRepo(db txBeginner) *sqlRepo {
	return &sqlRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func rawArg(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func timePtrArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// UpsertWatchlistEntry inserts or refreshes a watchlist entry keyed by apn.
// Sale state is never overwritten here.
func (r *sqlRepo) UpsertWatchlistEntry(ctx context.Context, e WatchlistEntry) (WatchlistEntry, error) {
	if e.APN == "" {
		return WatchlistEntry{}, errors.New("upsert watchlist entry: apn is required")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := r.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	e.APNNormalized = apn.Normalize(e.APN)

	row := r.db.QueryRow(ctx, upsertWatchlistSQL,
		e.ID,
		e.APN,
		e.APNNormalized,
		nullableString(e.Address),
		nullableString(e.City),
		nullableString(e.State),
		nullableString(e.Zip),
		nullableString(e.County),
		e.BuildingSF,
		e.LotSF,
		nullableString(e.Zoning),
		decimalArg(e.AssessedTotal),
		e.AssessedYear,
		e.IsListedForSale,
		decimalArg(e.ListingPrice),
		nullableString(e.ListingBroker),
		nullableString(e.ParcelRef),
		e.IsActive,
		e.CreatedAt.UTC(),
		e.UpdatedAt.UTC(),
	)
	stored, err := scanWatchlistEntry(row)
	if err != nil {
		return WatchlistEntry{}, fmt.Errorf("upsert watchlist entry: %w", err)
	}
	return stored, nil
}

// FindWatchlistByAPN returns active entries for the normalized APN, most
// recently updated first.
func (r *sqlRepo) FindWatchlistByAPN(ctx context.Context, apnNormalized string) ([]WatchlistEntry, error) {
	return r.listWatchlist(ctx, "find watchlist by apn", findWatchlistByAPNSQL, apnNormalized)
}

// GetWatchlistEntry loads one entry.
func (r *sqlRepo) GetWatchlistEntry(ctx context.Context, id uuid.UUID) (WatchlistEntry, error) {
	e, err := scanWatchlistEntry(r.db.QueryRow(ctx, getWatchlistSQL, id))
	if err != nil {
		return WatchlistEntry{}, fmt.Errorf("get watchlist entry: %w", err)
	}
	return e, nil
}

// ListWatchlist lists entries ordered by apn.
func (r *sqlRepo) ListWatchlist(ctx context.Context, limit int) ([]WatchlistEntry, error) {
	return r.listWatchlist(ctx, "list watchlist", listWatchlistSQL, limit)
}

func (r *sqlRepo) listWatchlist(ctx context.Context, op, query string, args ...interface{}) ([]WatchlistEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	entries := make([]WatchlistEntry, 0)
	for rows.Next() {
		e, scanErr := scanWatchlistEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%s: %w", op, scanErr)
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}
	return entries, nil
}

// InsertRecording stores a recording unless (doc_number, recording_date) exists.
func (r *sqlRepo) InsertRecording(ctx context.Context, rec DeedRecording) (DeedRecording, bool, error) {
	if rec.DocNumber == "" || rec.RecordingDate.IsZero() {
		return DeedRecording{}, false, errors.New("insert recording: doc number and recording date are required")
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	rec.RecordingDate = Day(rec.RecordingDate)
	rec.APNNormalized = apn.Normalize(rec.APN)

	row := r.db.QueryRow(ctx, insertRecordingSQL,
		rec.ID,
		rec.DocNumber,
		rec.RecordingDate,
		nullableString(rec.DocType),
		rec.County,
		nullableString(rec.APN),
		nullableString(rec.APNNormalized),
		nullableString(rec.Address),
		nullableString(rec.City),
		nullableString(rec.Grantor),
		nullableString(rec.Grantee),
		decimalArg(rec.DocumentaryTransferTax),
		rec.IsExempt,
		rawArg(rec.RawData),
		rec.Source,
		rec.CreatedAt.UTC(),
	)
	stored, err := scanDeedRecording(row)
	if errors.Is(err, ErrNotFound) {
		existing, findErr := r.FindRecording(ctx, rec.DocNumber, rec.RecordingDate)
		if findErr != nil {
			return DeedRecording{}, false, findErr
		}
		return existing, false, nil
	}
	if err != nil {
		return DeedRecording{}, false, fmt.Errorf("insert recording: %w", err)
	}
	return stored, true, nil
}

// FindRecording looks a recording up by its natural key.
func (r *sqlRepo) FindRecording(ctx context.Context, docNumber string, recordingDate time.Time) (DeedRecording, error) {
	rec, err := scanDeedRecording(r.db.QueryRow(ctx, findRecordingSQL, docNumber, Day(recordingDate)))
	if err != nil {
		return DeedRecording{}, fmt.Errorf("find recording %s: %w", docNumber, err)
	}
	return rec, nil
}

// GetRecording loads a recording by id.
func (r *sqlRepo) GetRecording(ctx context.Context, id uuid.UUID) (DeedRecording, error) {
	rec, err := scanDeedRecording(r.db.QueryRow(ctx, getRecordingSQL, id))
	if err != nil {
		return DeedRecording{}, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// ListPendingRecordings lists recordings in the window without an alert.
func (r *sqlRepo) ListPendingRecordings(ctx context.Context, county string, from, to time.Time) ([]DeedRecording, error) {
	rows, err := r.db.Query(ctx, listPendingRecordingsSQL, county, Day(from), Day(to))
	if err != nil {
		return nil, fmt.Errorf("list pending recordings: %w", err)
	}
	defer rows.Close()

	recordings := make([]DeedRecording, 0)
	for rows.Next() {
		rec, scanErr := scanDeedRecording(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("list pending recordings: %w", scanErr)
		}
		recordings = append(recordings, rec)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("list pending recordings: %w", rows.Err())
	}
	return recordings, nil
}

// SetRecordingMatch records a match on an unmatched recording.
func (r *sqlRepo) SetRecordingMatch(ctx context.Context, id uuid.UUID, m RecordingMatch) (bool, error) {
	processed := m.ProcessedAt
	if processed.IsZero() {
		processed = r.now()
	}
	affected, err := r.db.Exec(ctx, setRecordingMatchSQL,
		id,
		m.WatchlistID,
		m.Confidence,
		decimalArg(m.CalculatedSalePrice),
		processed.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("set recording match: %w", err)
	}
	return affected > 0, nil
}

// CreateAlert inserts an alert if absent and applies the sale to the watchlist
// entry in the same transaction.
func (r *sqlRepo) CreateAlert(ctx context.Context, a SaleAlert, sale SaleUpdate) (SaleAlert, bool, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now()
	}
	if sale.UpdatedAt.IsZero() {
		sale.UpdatedAt = a.CreatedAt
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return SaleAlert{}, false, fmt.Errorf("begin create alert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stored, err := scanSaleAlert(tx.QueryRow(ctx, insertAlertSQL,
		a.ID,
		a.WatchlistID,
		a.DeedID,
		string(a.Priority),
		nullableString(a.APN),
		nullableString(a.Address),
		nullableString(a.City),
		decimalArg(a.SalePrice),
		Day(a.SaleDate),
		nullableString(a.Buyer),
		nullableString(a.Seller),
		a.WasListed,
		decimalArg(a.ListingPrice),
		decimalArg(a.PriceVsListing),
		decimalArg(a.AssessedValue),
		decimalArg(a.PriceVsAssessed),
		a.CreatedAt.UTC(),
	))
	if errors.Is(err, ErrNotFound) {
		existing, findErr := scanSaleAlert(tx.QueryRow(ctx, findAlertByPairSQL, a.WatchlistID, a.DeedID))
		if findErr != nil {
			return SaleAlert{}, false, fmt.Errorf("load existing alert: %w", findErr)
		}
		if err := tx.Commit(ctx); err != nil {
			return SaleAlert{}, false, fmt.Errorf("commit create alert: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return SaleAlert{}, false, fmt.Errorf("insert alert: %w", err)
	}

	if _, err := tx.Exec(ctx, applySaleSQL,
		a.WatchlistID,
		Day(sale.SaleDate),
		decimalArg(sale.SalePrice),
		nullableString(sale.DocNumber),
		sale.UpdatedAt.UTC(),
	); err != nil {
		return SaleAlert{}, false, fmt.Errorf("apply sale to watchlist: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return SaleAlert{}, false, fmt.Errorf("commit create alert: %w", err)
	}
	return stored, true, nil
}

// GetAlert loads an alert by id.
func (r *sqlRepo) GetAlert(ctx context.Context, id uuid.UUID) (SaleAlert, error) {
	a, err := scanSaleAlert(r.db.QueryRow(ctx, getAlertSQL, id))
	if err != nil {
		return SaleAlert{}, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

// ListUnsentAlerts lists alerts not yet handed to a dispatcher, oldest first.
func (r *sqlRepo) ListUnsentAlerts(ctx context.Context, limit int) ([]SaleAlert, error) {
	return r.listAlerts(ctx, "list unsent alerts", listUnsentAlertsSQL, limit)
}

// ListRecentAlerts lists the newest alerts.
func (r *sqlRepo) ListRecentAlerts(ctx context.Context, limit int) ([]SaleAlert, error) {
	return r.listAlerts(ctx, "list recent alerts", listRecentAlertsSQL, limit)
}

// ListAlertsBetween lists alerts whose sale date falls in [from, to].
func (r *sqlRepo) ListAlertsBetween(ctx context.Context, from, to time.Time, limit int) ([]SaleAlert, error) {
	return r.listAlerts(ctx, "list alerts between", listAlertsBetweenSQL, Day(from), Day(to), limit)
}

func (r *sqlRepo) listAlerts(ctx context.Context, op, query string, args ...interface{}) ([]SaleAlert, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	alerts := make([]SaleAlert, 0)
	for rows.Next() {
		a, scanErr := scanSaleAlert(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%s: %w", op, scanErr)
		}
		alerts = append(alerts, a)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}
	return alerts, nil
}

// MarkAlertSent stores the delivery reported by the dispatcher. Marking an
// already sent alert is a no-op.
func (r *sqlRepo) MarkAlertSent(ctx context.Context, id uuid.UUID, channel string, sentAt time.Time) error {
	affected, err := r.db.Exec(ctx, markAlertSentSQL, id, channel, sentAt.UTC())
	if err != nil {
		return fmt.Errorf("mark alert sent: %w", err)
	}
	if affected == 0 {
		if _, err := r.GetAlert(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// AcknowledgeAlert records a human acknowledgment once.
func (r *sqlRepo) AcknowledgeAlert(ctx context.Context, id uuid.UUID, note string, at time.Time) (SaleAlert, error) {
	affected, err := r.db.Exec(ctx, acknowledgeAlertSQL, id, at.UTC(), nullableString(note))
	if err != nil {
		return SaleAlert{}, fmt.Errorf("acknowledge alert: %w", err)
	}
	a, err := r.GetAlert(ctx, id)
	if err != nil {
		return SaleAlert{}, err
	}
	if affected == 0 {
		return a, ErrAlreadyAcknowledged
	}
	return a, nil
}

// CreateRun inserts a running run.
func (r *sqlRepo) CreateRun(ctx context.Context, run MonitorRun) error {
	if run.ID == uuid.Nil {
		return errors.New("create run: id is required")
	}
	if _, err := r.db.Exec(ctx, insertRunSQL,
		run.ID,
		run.StartedAt.UTC(),
		run.County,
		Day(run.RangeStart),
		Day(run.RangeEnd),
		string(RunStatusRunning),
	); err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// CloseRun transitions a running run to completed or failed.
func (r *sqlRepo) CloseRun(ctx context.Context, id uuid.UUID, c RunClose) error {
	if c.Status != RunStatusCompleted && c.Status != RunStatusFailed {
		return fmt.Errorf("close run: invalid terminal status %q", c.Status)
	}
	affected, err := r.db.Exec(ctx, closeRunSQL,
		id,
		string(c.Status),
		c.CompletedAt.UTC(),
		c.DurationMs,
		nullableStringPtr(c.ErrorMessage),
		c.Stats.RecordsFetched,
		c.Stats.RecordsStored,
		c.Stats.RecordsSkipped,
		c.Stats.PagesFailed,
		c.Stats.RecordsMatched,
		c.Stats.AlertsCreated,
	)
	if err != nil {
		return fmt.Errorf("close run: %w", err)
	}
	if affected == 0 {
		if _, err := r.GetRun(ctx, id); err != nil {
			return err
		}
		return ErrRunClosed
	}
	return nil
}

// GetRun loads a run by id.
func (r *sqlRepo) GetRun(ctx context.Context, id uuid.UUID) (MonitorRun, error) {
	run, err := scanMonitorRun(r.db.QueryRow(ctx, getRunSQL, id))
	if err != nil {
		return MonitorRun{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// HasCompletedRun reports whether the exact window already completed.
func (r *sqlRepo) HasCompletedRun(ctx context.Context, county string, from, to time.Time) (bool, error) {
	var count int64
	if err := r.db.QueryRow(ctx, hasCompletedRunSQL, county, Day(from), Day(to)).Scan(&count); err != nil {
		return false, fmt.Errorf("has completed run: %w", err)
	}
	return count > 0, nil
}

// ListRecentRuns lists the newest runs.
func (r *sqlRepo) ListRecentRuns(ctx context.Context, limit int) ([]MonitorRun, error) {
	rows, err := r.db.Query(ctx, listRecentRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	defer rows.Close()

	runs := make([]MonitorRun, 0, limit)
	for rows.Next() {
		run, scanErr := scanMonitorRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("list recent runs: %w", scanErr)
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("list recent runs: %w", rows.Err())
	}
	return runs, nil
}
