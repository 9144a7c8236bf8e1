package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deedwatch/internal/alertgen"
	"deedwatch/internal/alerting"
	"deedwatch/internal/fetcher"
	"deedwatch/internal/ingest"
	"deedwatch/internal/matcher"
	"deedwatch/internal/metrics"
	"deedwatch/internal/pricing"
	"deedwatch/internal/runs"
	"deedwatch/internal/scheduler"
	"deedwatch/internal/storage"
)

// Options describe what the service watches.
type Options struct {
	County        string
	State         string
	DocTypes      []string
	LookbackDays  int
	DispatchLimit int
	AlertsEnabled bool
	LockKey       int64
}

// Deps are the collaborators wired by the app layer. Scheduler, Dispatcher
// and Metrics may be nil.
type Deps struct {
	Scheduler  *scheduler.Scheduler
	Repo       storage.Repository
	Ingestor   *ingest.Ingestor
	Matcher    *matcher.Matcher
	Calculator *pricing.Calculator
	Generator  *alertgen.Generator
	Tracker    *runs.Tracker
	Dispatcher alerting.Dispatcher
	Metrics    *metrics.Registry
}

// Service orchestrates ingestion, matching, alerting and run auditing.
type Service struct {
	deps   Deps
	opts   Options
	now    func() time.Time
	logger zerolog.Logger
}

// New constructs the monitoring service.
func New(deps Deps, opts Options, logger zerolog.Logger) *Service {
	if opts.DispatchLimit <= 0 {
		opts.DispatchLimit = 200
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 7
	}
	return &Service{
		deps:   deps,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("component", "service").Logger(),
	}
}

// Window is an inclusive range of recording dates.
type Window struct {
	From time.Time
	To   time.Time
}

// Report summarises one window.
type Report struct {
	RunID  uuid.UUID
	Window Window
	Stats  storage.RunStats
	Status storage.RunStatus
	DryRun bool
	// Resumed is set when backfill skipped an already completed window.
	Resumed bool
	// Alerts holds previews in dry-run mode and created alerts otherwise.
	Alerts         []storage.SaleAlert
	Dispatched     int
	DispatchFailed int
}

// Run begins the scheduled loop over trailing windows.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.deps.Scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick runs the trailing window ending at tick unless another process
// holds the advisory lock.
func (s *Service) ProcessTick(ctx context.Context, tick time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tick).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.ProcessWindow(ctx, TrailingWindow(tick, s.opts.LookbackDays))
	return err
}

// TrailingWindow covers the days days before now plus today.
func TrailingWindow(now time.Time, days int) Window {
	to := storage.Day(now)
	return Window{From: to.AddDate(0, 0, -days), To: to}
}

// DayWindow covers a single recording date.
func DayWindow(day time.Time) Window {
	d := storage.Day(day)
	return Window{From: d, To: d}
}

func (s *Service) query(w Window) fetcher.Query {
	return fetcher.Query{
		County:   s.opts.County,
		State:    s.opts.State,
		From:     storage.Day(w.From),
		To:       storage.Day(w.To),
		DocTypes: s.opts.DocTypes,
	}
}

// ProcessWindow runs the pipeline for w under its own monitor run, then hands
// every unsent alert to the dispatcher.
func (s *Service) ProcessWindow(ctx context.Context, w Window) (Report, error) {
	rep, err := s.runPipeline(ctx, w)
	if err != nil {
		return rep, err
	}
	rep.Dispatched, rep.DispatchFailed, err = s.DispatchPending(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("dispatch pending alerts failed")
	}
	return rep, nil
}

func (s *Service) runPipeline(ctx context.Context, w Window) (rep Report, err error) {
	rep = Report{Window: w}
	started := s.now()

	run, err := s.deps.Tracker.Start(ctx, s.opts.County, w.From, w.To)
	if err != nil {
		return rep, err
	}
	rep.RunID = run.ID

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
		// the run is closed even when ctx was cancelled
		closeCtx := context.WithoutCancel(ctx)
		status := storage.RunStatusCompleted
		var closeErr error
		if err != nil {
			status = storage.RunStatusFailed
			closeErr = s.deps.Tracker.Fail(closeCtx, run, rep.Stats, err)
		} else {
			closeErr = s.deps.Tracker.Complete(closeCtx, run, rep.Stats)
		}
		rep.Status = status
		s.observeRun(status, s.now().Sub(started))
		if closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	res, err := s.deps.Ingestor.Ingest(ctx, s.query(w))
	rep.Stats.RecordsFetched = res.Fetched
	rep.Stats.RecordsStored = res.Stored
	rep.Stats.RecordsSkipped = res.Skipped
	rep.Stats.PagesFailed = res.PagesFailed
	s.observeIngest(res)
	if err != nil {
		return rep, fmt.Errorf("ingest: %w", err)
	}

	pending, err := s.deps.Repo.ListPendingRecordings(ctx, s.opts.County, w.From, w.To)
	if err != nil {
		return rep, err
	}

	for _, rec := range pending {
		alert, created, matched, err := s.processRecording(ctx, rec)
		if err != nil {
			return rep, err
		}
		if matched {
			rep.Stats.RecordsMatched++
		}
		if created {
			rep.Stats.AlertsCreated++
			rep.Alerts = append(rep.Alerts, alert)
		}
	}
	return rep, nil
}

func (s *Service) processRecording(ctx context.Context, rec storage.DeedRecording) (storage.SaleAlert, bool, bool, error) {
	m, err := s.deps.Matcher.Match(ctx, rec)
	if err != nil {
		return storage.SaleAlert{}, false, false, fmt.Errorf("match %s: %w", rec.DocNumber, err)
	}
	if m == nil {
		return storage.SaleAlert{}, false, false, nil
	}
	s.observeMatch(m)

	price := s.deps.Calculator.CalculateSalePrice(rec.DocumentaryTransferTax, rec.County)
	if !m.Existing {
		ok, err := s.deps.Repo.SetRecordingMatch(ctx, rec.ID, storage.RecordingMatch{
			WatchlistID:         m.WatchlistID,
			Confidence:          m.Confidence,
			CalculatedSalePrice: price,
			ProcessedAt:         s.now(),
		})
		if err != nil {
			return storage.SaleAlert{}, false, true, fmt.Errorf("record match %s: %w", rec.DocNumber, err)
		}
		if ok {
			rec.MatchedWatchlistID = uuid.NullUUID{UUID: m.WatchlistID, Valid: true}
			rec.CalculatedSalePrice = price
		} else {
			// another worker matched it first; its entry wins
			stored, err := s.deps.Repo.GetRecording(ctx, rec.ID)
			if err != nil {
				return storage.SaleAlert{}, false, true, fmt.Errorf("reload %s: %w", rec.DocNumber, err)
			}
			rec = stored
			if m, err = s.deps.Matcher.Match(ctx, rec); err != nil {
				return storage.SaleAlert{}, false, true, fmt.Errorf("match %s: %w", rec.DocNumber, err)
			}
			if m == nil {
				return storage.SaleAlert{}, false, true, nil
			}
			if rec.CalculatedSalePrice.Valid {
				price = rec.CalculatedSalePrice
			}
		}
	}

	alert, created, err := s.deps.Generator.Generate(ctx, rec, m.Entry, price)
	if err != nil {
		return storage.SaleAlert{}, false, true, err
	}
	if created && s.deps.Metrics != nil {
		s.deps.Metrics.AlertsCreated.WithLabelValues(string(alert.Priority)).Inc()
	}
	return alert, created, true, nil
}

// PreviewWindow performs ingestion, matching and pricing for w without
// persisting anything or dispatching.
func (s *Service) PreviewWindow(ctx context.Context, w Window) (Report, error) {
	rep := Report{Window: w, DryRun: true}

	res, recs, err := s.deps.Ingestor.Preview(ctx, s.query(w))
	rep.Stats.RecordsFetched = res.Fetched
	rep.Stats.RecordsStored = res.Stored
	rep.Stats.RecordsSkipped = res.Skipped
	rep.Stats.PagesFailed = res.PagesFailed
	if err != nil {
		return rep, fmt.Errorf("preview ingest: %w", err)
	}

	pending, err := s.deps.Repo.ListPendingRecordings(ctx, s.opts.County, w.From, w.To)
	if err != nil {
		return rep, err
	}
	open := make(map[uuid.UUID]bool, len(pending))
	for _, p := range pending {
		open[p.ID] = true
	}

	for _, rec := range recs {
		// stored recordings outside the pending set already have their alert
		if rec.ID != uuid.Nil && !open[rec.ID] {
			continue
		}
		m, err := s.deps.Matcher.Match(ctx, rec)
		if err != nil {
			return rep, fmt.Errorf("match %s: %w", rec.DocNumber, err)
		}
		if m == nil {
			continue
		}
		rep.Stats.RecordsMatched++
		price := s.deps.Calculator.CalculateSalePrice(rec.DocumentaryTransferTax, rec.County)
		alert, _ := alertgen.Build(rec, m.Entry, price, s.deps.Generator.Threshold())
		rep.Alerts = append(rep.Alerts, alert)
		rep.Stats.AlertsCreated++
		s.logger.Info().
			Str("doc_number", rec.DocNumber).
			Str("apn", alert.APN).
			Str("priority", string(alert.Priority)).
			Str("sale_price", alerting.FormatPrice(price)).
			Msg("dry run: would create alert")
	}
	return rep, nil
}

// DispatchPending hands unsent alerts to the dispatcher and records the
// delivery. Failed deliveries stay unsent for the next run.
func (s *Service) DispatchPending(ctx context.Context) (int, int, error) {
	if !s.opts.AlertsEnabled || s.deps.Dispatcher == nil {
		return 0, 0, nil
	}
	alerts, err := s.deps.Repo.ListUnsentAlerts(ctx, s.opts.DispatchLimit)
	if err != nil {
		return 0, 0, err
	}

	sent, failed := 0, 0
	for _, alert := range alerts {
		delivery, err := s.deps.Dispatcher.Dispatch(ctx, alert)
		if err != nil {
			failed++
			s.observeDispatch("none", "failed")
			s.logger.Error().Err(err).Str("alert_id", alert.ID.String()).Msg("alert delivery failed")
			continue
		}
		if err := s.deps.Repo.MarkAlertSent(ctx, alert.ID, delivery.Channel, delivery.SentAt); err != nil {
			return sent, failed, fmt.Errorf("mark alert %s sent: %w", alert.ID, err)
		}
		sent++
		s.observeDispatch(delivery.Channel, "sent")
	}
	return sent, failed, nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.LockKey == 0 || s.deps.Repo == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.deps.Repo.TryAdvisoryLock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

func (s *Service) observeIngest(res ingest.Result) {
	if s.deps.Metrics == nil {
		return
	}
	s.deps.Metrics.RecordsFetched.Add(float64(res.Fetched))
	s.deps.Metrics.RecordsStored.Add(float64(res.Stored))
	s.deps.Metrics.RecordsSkipped.Add(float64(res.Skipped))
	s.deps.Metrics.PagesFailed.Add(float64(res.PagesFailed))
	s.deps.Metrics.PageRetries.Add(float64(res.Retries))
}

func (s *Service) observeMatch(m *matcher.Result) {
	if s.deps.Metrics == nil {
		return
	}
	s.deps.Metrics.RecordsMatched.Inc()
	if m.Ambiguous {
		s.deps.Metrics.Ambiguous.Inc()
	}
}

func (s *Service) observeRun(status storage.RunStatus, d time.Duration) {
	if s.deps.Metrics == nil {
		return
	}
	s.deps.Metrics.Runs.WithLabelValues(string(status)).Inc()
	s.deps.Metrics.RunDuration.Observe(d.Seconds())
	if status == storage.RunStatusCompleted {
		s.deps.Metrics.LastSuccessSec.Set(float64(s.now().Unix()))
	}
}

func (s *Service) observeDispatch(channel, result string) {
	if s.deps.Metrics == nil {
		return
	}
	s.deps.Metrics.Dispatches.WithLabelValues(channel, result).Inc()
}
