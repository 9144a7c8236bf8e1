// Package alertgen turns a matched recording into a prioritized sale alert.
package alertgen

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"deedwatch/internal/storage"
)

// DefaultHighPriceThreshold marks sales above five million as high priority.
var DefaultHighPriceThreshold = decimal.NewFromInt(5_000_000)

var hundred = decimal.NewFromInt(100)

// Build computes the alert for rec matched to entry and the sale state to
// apply to the entry. It has no side effects.
func Build(rec storage.DeedRecording, entry storage.WatchlistEntry, salePrice decimal.NullDecimal, threshold decimal.Decimal) (storage.SaleAlert, storage.SaleUpdate) {
	alert := storage.SaleAlert{
		WatchlistID:   entry.ID,
		DeedID:        rec.ID,
		Priority:      Priority(salePrice, entry.IsListedForSale, threshold),
		APN:           firstNonEmpty(rec.APN, entry.APN),
		Address:       firstNonEmpty(entry.Address, rec.Address),
		City:          firstNonEmpty(entry.City, rec.City),
		SalePrice:     salePrice,
		SaleDate:      rec.RecordingDate,
		Buyer:         rec.Grantee,
		Seller:        rec.Grantor,
		WasListed:     entry.IsListedForSale,
		ListingPrice:  entry.ListingPrice,
		AssessedValue: entry.AssessedTotal,
	}

	if salePrice.Valid {
		if entry.AssessedTotal.Valid && entry.AssessedTotal.Decimal.IsPositive() {
			alert.PriceVsAssessed = decimal.NewNullDecimal(salePrice.Decimal.Div(entry.AssessedTotal.Decimal).Round(2))
		}
		if entry.ListingPrice.Valid && entry.ListingPrice.Decimal.IsPositive() {
			listing := entry.ListingPrice.Decimal
			alert.PriceVsListing = decimal.NewNullDecimal(salePrice.Decimal.Sub(listing).Div(listing).Mul(hundred).Round(2))
		}
	}

	sale := storage.SaleUpdate{
		SaleDate:  rec.RecordingDate,
		SalePrice: salePrice,
		DocNumber: rec.DocNumber,
	}
	return alert, sale
}

// Priority is high when the sale exceeds threshold or the parcel was listed.
func Priority(salePrice decimal.NullDecimal, listed bool, threshold decimal.Decimal) storage.Priority {
	if listed {
		return storage.PriorityHigh
	}
	if salePrice.Valid && salePrice.Decimal.GreaterThan(threshold) {
		return storage.PriorityHigh
	}
	return storage.PriorityNormal
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Generator persists alerts insert-if-absent.
type Generator struct {
	alerts    storage.AlertStore
	threshold decimal.Decimal
	now       func() time.Time
	logger    zerolog.Logger
}

// NewGenerator constructs a Generator. A non-positive threshold uses the default.
func NewGenerator(alerts storage.AlertStore, threshold decimal.Decimal, logger zerolog.Logger) *Generator {
	if !threshold.IsPositive() {
		threshold = DefaultHighPriceThreshold
	}
	return &Generator{
		alerts:    alerts,
		threshold: threshold,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With().Str("component", "alert_generator").Logger(),
	}
}

// Threshold reports the high-priority sale price threshold.
func (g *Generator) Threshold() decimal.Decimal { return g.threshold }

// Generate creates the alert for rec, or returns the existing one for the
// (entry, recording) pair with created=false.
func (g *Generator) Generate(ctx context.Context, rec storage.DeedRecording, entry storage.WatchlistEntry, salePrice decimal.NullDecimal) (storage.SaleAlert, bool, error) {
	alert, sale := Build(rec, entry, salePrice, g.threshold)
	now := g.now()
	alert.CreatedAt = now
	sale.UpdatedAt = now

	stored, created, err := g.alerts.CreateAlert(ctx, alert, sale)
	if err != nil {
		return storage.SaleAlert{}, false, fmt.Errorf("create alert for %s: %w", rec.DocNumber, err)
	}
	if created {
		g.logger.Info().
			Str("alert_id", stored.ID.String()).
			Str("apn", stored.APN).
			Str("priority", string(stored.Priority)).
			Str("sale_price", priceString(stored.SalePrice)).
			Msg("sale alert created")
	}
	return stored, created, nil
}

func priceString(d decimal.NullDecimal) string {
	if !d.Valid {
		return "exempt"
	}
	return d.Decimal.StringFixed(0)
}
