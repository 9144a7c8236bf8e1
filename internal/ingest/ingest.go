package ingest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"deedwatch/internal/fetcher"
	"deedwatch/internal/storage"
)

// RetryPolicy bounds the per-page retry loop.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Options tune the Ingestor.
type Options struct {
	// Workers is the number of pages fetched concurrently.
	Workers  int
	Retry    RetryPolicy
	MaxPages int
}

// Result counts what one ingestion saw.
type Result struct {
	Fetched     int
	Stored      int
	Skipped     int
	PagesFailed int
	Retries     int
}

// Ingestor pages through a provider and persists recordings insert-if-absent.
type Ingestor struct {
	provider fetcher.Provider
	store    storage.RecordingStore
	opts     Options
	logger   zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// New constructs an Ingestor.
func New(provider fetcher.Provider, store storage.RecordingStore, opts Options, logger zerolog.Logger) *Ingestor {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 1
	}
	if opts.Retry.InitialBackoff <= 0 {
		opts.Retry.InitialBackoff = 500 * time.Millisecond
	}
	if opts.Retry.MaxBackoff < opts.Retry.InitialBackoff {
		opts.Retry.MaxBackoff = opts.Retry.InitialBackoff
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10000
	}
	return &Ingestor{
		provider: provider,
		store:    store,
		opts:     opts,
		logger:   logger.With().Str("component", "ingestor").Str("provider", provider.Name()).Logger(),
		sleep:    sleepCtx,
	}
}

// Ingest fetches the window and stores every well-formed recording not seen
// before. Failed pages are counted, not returned; storage errors are returned.
func (i *Ingestor) Ingest(ctx context.Context, q fetcher.Query) (Result, error) {
	return i.run(ctx, q, func(ctx context.Context, rec storage.DeedRecording) (bool, error) {
		_, created, err := i.store.InsertRecording(ctx, rec)
		return created, err
	})
}

// Preview fetches and normalizes the window without writing. Stored counts
// recordings that are not persisted yet. Every normalized recording is
// returned, existing ones in their stored form.
func (i *Ingestor) Preview(ctx context.Context, q fetcher.Query) (Result, []storage.DeedRecording, error) {
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		out  []storage.DeedRecording
	)
	res, err := i.run(ctx, q, func(ctx context.Context, rec storage.DeedRecording) (bool, error) {
		key := rec.DocNumber + "|" + rec.RecordingDate.Format(fetcher.DateLayout)
		existing, err := i.store.FindRecording(ctx, rec.DocNumber, rec.RecordingDate)
		isNew := errors.Is(err, storage.ErrNotFound)
		if err != nil && !isNew {
			return false, err
		}

		mu.Lock()
		defer mu.Unlock()
		if seen[key] {
			return false, nil
		}
		seen[key] = true
		if isNew {
			out = append(out, rec)
		} else {
			out = append(out, existing)
		}
		return isNew, nil
	})
	return res, out, err
}

type sink func(ctx context.Context, rec storage.DeedRecording) (bool, error)

func (i *Ingestor) run(ctx context.Context, q fetcher.Query, handle sink) (Result, error) {
	var (
		mu  sync.Mutex
		res Result
	)

	for start := 0; start < i.opts.MaxPages; start += i.opts.Workers {
		end := start + i.opts.Workers
		if end > i.opts.MaxPages {
			end = i.opts.MaxPages
		}

		var (
			more      = true
			succeeded int
		)
		g, gctx := errgroup.WithContext(ctx)
		for page := start; page < end; page++ {
			g.Go(func() error {
				p, retries, err := i.fetchPage(gctx, q, page)
				mu.Lock()
				res.Retries += retries
				mu.Unlock()
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					i.logger.Warn().Err(err).Int("page", page).Msg("page failed after retries")
					mu.Lock()
					res.PagesFailed++
					mu.Unlock()
					return nil
				}

				stored, skipped, err := i.handlePage(gctx, q, page, p.Records, handle)

				mu.Lock()
				defer mu.Unlock()
				succeeded++
				res.Fetched += len(p.Records)
				res.Stored += stored
				res.Skipped += skipped
				if !p.More {
					more = false
				}
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return res, err
		}

		// stop at the first short page, or when no page of the batch came back
		if !more || succeeded == 0 {
			break
		}
	}

	i.logger.Info().
		Str("county", q.County).
		Str("from", q.From.Format(fetcher.DateLayout)).
		Str("to", q.To.Format(fetcher.DateLayout)).
		Int("fetched", res.Fetched).
		Int("stored", res.Stored).
		Int("skipped", res.Skipped).
		Int("pages_failed", res.PagesFailed).
		Msg("ingestion finished")
	return res, nil
}

func (i *Ingestor) handlePage(ctx context.Context, q fetcher.Query, page int, records []fetcher.RawRecording, handle sink) (int, int, error) {
	stored, skipped := 0, 0
	for _, raw := range records {
		rec, err := Normalize(raw, q.County, i.provider.Name())
		if err != nil {
			skipped++
			i.logger.Warn().Err(err).Int("page", page).Str("doc_number", raw.DocNumber).Msg("skipping recording")
			continue
		}
		created, err := handle(ctx, rec)
		if err != nil {
			return stored, skipped, fmt.Errorf("store recording %s: %w", rec.DocNumber, err)
		}
		if created {
			stored++
		}
	}
	return stored, skipped, nil
}

func (i *Ingestor) fetchPage(ctx context.Context, q fetcher.Query, page int) (fetcher.Page, int, error) {
	backoff := i.opts.Retry.InitialBackoff
	retries := 0
	for attempt := 1; ; attempt++ {
		p, err := i.provider.FetchPage(ctx, q, page)
		if err == nil {
			return p, retries, nil
		}
		if ctx.Err() != nil {
			return fetcher.Page{}, retries, ctx.Err()
		}
		if !fetcher.IsTransient(err) || attempt >= i.opts.Retry.MaxAttempts {
			return fetcher.Page{}, retries, err
		}

		wait := jitter(backoff)
		i.logger.Warn().Err(err).Int("page", page).Int("attempt", attempt).Dur("backoff", wait).Msg("retrying page")
		if err := i.sleep(ctx, wait); err != nil {
			return fetcher.Page{}, retries, err
		}
		retries++
		backoff *= 2
		if backoff > i.opts.Retry.MaxBackoff {
			backoff = i.opts.Retry.MaxBackoff
		}
	}
}

// jitter spreads d over [d/2, d).
func jitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + time.Duration(rand.Int63n(int64(half)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
