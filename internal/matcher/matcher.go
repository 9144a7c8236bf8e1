// Package matcher resolves deed recordings against the watchlist by exact
// normalized-APN equality. There is no fuzzy fallback.
package matcher

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deedwatch/internal/apn"
	"deedwatch/internal/storage"
)

// Result is the resolution of one recording.
type Result struct {
	WatchlistID uuid.UUID
	Entry       storage.WatchlistEntry
	Confidence  float64
	// Ambiguous is set when several active entries share the normalized APN.
	Ambiguous bool
	// Candidates is the number of active entries that shared the APN.
	Candidates int
	Exempt     bool
	// Existing marks a recording that was already matched before this call.
	Existing bool
}

// Matcher looks watchlist entries up for recordings.
type Matcher struct {
	watchlist storage.WatchlistStore
	logger    zerolog.Logger
}

// New constructs a Matcher.
func New(watchlist storage.WatchlistStore, logger zerolog.Logger) *Matcher {
	return &Matcher{
		watchlist: watchlist,
		logger:    logger.With().Str("component", "matcher").Logger(),
	}
}

// Match resolves rec. It returns nil when no active entry carries the APN.
func (m *Matcher) Match(ctx context.Context, rec storage.DeedRecording) (*Result, error) {
	if rec.Matched() {
		entry, err := m.watchlist.GetWatchlistEntry(ctx, rec.MatchedWatchlistID.UUID)
		if err != nil {
			return nil, fmt.Errorf("load matched entry: %w", err)
		}
		confidence := 1.0
		if rec.MatchConfidence != nil {
			confidence = *rec.MatchConfidence
		}
		return &Result{
			WatchlistID: entry.ID,
			Entry:       entry,
			Confidence:  confidence,
			Ambiguous:   confidence < 1,
			Exempt:      rec.IsExempt,
			Existing:    true,
		}, nil
	}

	key := rec.APNNormalized
	if key == "" {
		key = apn.Normalize(rec.APN)
	}
	if key == "" {
		return nil, nil
	}

	candidates, err := m.watchlist.FindWatchlistByAPN(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("find watchlist by apn: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// candidates arrive most recently updated first
	chosen := candidates[0]
	res := &Result{
		WatchlistID: chosen.ID,
		Entry:       chosen,
		Confidence:  1.0 / float64(len(candidates)),
		Ambiguous:   len(candidates) > 1,
		Candidates:  len(candidates),
		Exempt:      rec.IsExempt,
	}
	if res.Ambiguous {
		ids := make([]string, 0, len(candidates))
		for _, c := range candidates {
			ids = append(ids, c.ID.String())
		}
		m.logger.Warn().
			Str("apn_normalized", key).
			Str("doc_number", rec.DocNumber).
			Strs("candidates", ids).
			Str("chosen", chosen.ID.String()).
			Msg("several active watchlist entries share an apn")
	}
	return res, nil
}
