package alertgen

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deedwatch/internal/storage"
)

func nd(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func recording() storage.DeedRecording {
	return storage.DeedRecording{
		ID:            uuid.New(),
		DocNumber:     "2024000001",
		RecordingDate: time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
		APN:           "360-384-05",
		Address:       "2911 N ORANGE OLIVE",
		Grantor:       "Seller",
		Grantee:       "Buyer",
	}
}

func TestBuildPriceVsAssessed(t *testing.T) {
	entry := storage.WatchlistEntry{ID: uuid.New(), Address: "2911 N Orange Olive Rd", AssessedTotal: nd(1_000_000)}

	alert, sale := Build(recording(), entry, nd(3_320_000), DefaultHighPriceThreshold)
	require.True(t, alert.PriceVsAssessed.Valid)
	assert.Equal(t, "3.32", alert.PriceVsAssessed.Decimal.StringFixed(2))
	assert.False(t, alert.PriceVsListing.Valid)
	assert.Equal(t, storage.PriorityNormal, alert.Priority)
	assert.Equal(t, "2911 N Orange Olive Rd", alert.Address)
	assert.Equal(t, "Buyer", alert.Buyer)
	assert.Equal(t, "Seller", alert.Seller)
	assert.Equal(t, "2024000001", sale.DocNumber)
	assert.True(t, sale.SalePrice.Decimal.Equal(decimal.NewFromInt(3_320_000)))
}

func TestBuildListedParcelIsHighPriority(t *testing.T) {
	entry := storage.WatchlistEntry{ID: uuid.New(), IsListedForSale: true, ListingPrice: nd(2_600_000)}

	alert, _ := Build(recording(), entry, nd(2_600_000), DefaultHighPriceThreshold)
	assert.Equal(t, storage.PriorityHigh, alert.Priority)
	assert.True(t, alert.WasListed)
	require.True(t, alert.PriceVsListing.Valid)
	assert.True(t, alert.PriceVsListing.Decimal.IsZero())
}

func TestBuildPriceVsListingDelta(t *testing.T) {
	entry := storage.WatchlistEntry{ID: uuid.New(), ListingPrice: nd(3_000_000)}

	alert, _ := Build(recording(), entry, nd(2_700_000), DefaultHighPriceThreshold)
	require.True(t, alert.PriceVsListing.Valid)
	assert.Equal(t, "-10.00", alert.PriceVsListing.Decimal.StringFixed(2))
}

func TestBuildExemptTransfer(t *testing.T) {
	entry := storage.WatchlistEntry{ID: uuid.New(), AssessedTotal: nd(1_000_000), ListingPrice: nd(1)}

	alert, sale := Build(recording(), entry, decimal.NullDecimal{}, DefaultHighPriceThreshold)
	assert.False(t, alert.SalePrice.Valid)
	assert.False(t, alert.PriceVsAssessed.Valid)
	assert.False(t, alert.PriceVsListing.Valid)
	assert.Equal(t, storage.PriorityNormal, alert.Priority)
	assert.False(t, sale.SalePrice.Valid)
}

func TestPriority(t *testing.T) {
	threshold := DefaultHighPriceThreshold
	assert.Equal(t, storage.PriorityNormal, Priority(nd(5_000_000), false, threshold))
	assert.Equal(t, storage.PriorityHigh, Priority(nd(5_000_001), false, threshold))
	assert.Equal(t, storage.PriorityHigh, Priority(decimal.NullDecimal{}, true, threshold))
	assert.Equal(t, storage.PriorityNormal, Priority(decimal.NullDecimal{}, false, threshold))
}

type recordingAlerts struct {
	storage.AlertStore
	created []storage.SaleAlert
	sales   []storage.SaleUpdate
}

func (r *recordingAlerts) CreateAlert(_ context.Context, a storage.SaleAlert, s storage.SaleUpdate) (storage.SaleAlert, bool, error) {
	for _, existing := range r.created {
		if existing.WatchlistID == a.WatchlistID && existing.DeedID == a.DeedID {
			return existing, false, nil
		}
	}
	a.ID = uuid.New()
	r.created = append(r.created, a)
	r.sales = append(r.sales, s)
	return a, true, nil
}

func TestGeneratorReturnsExistingAlert(t *testing.T) {
	store := &recordingAlerts{}
	g := NewGenerator(store, decimal.Zero, zerolog.Nop())
	assert.True(t, g.Threshold().Equal(DefaultHighPriceThreshold))

	rec := recording()
	entry := storage.WatchlistEntry{ID: uuid.New()}

	first, created, err := g.Generate(context.Background(), rec, entry, nd(14_000_000))
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, storage.PriorityHigh, first.Priority)
	assert.False(t, first.CreatedAt.IsZero())
	assert.Equal(t, first.CreatedAt, store.sales[0].UpdatedAt)

	second, created, err := g.Generate(context.Background(), rec, entry, nd(1))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.created, 1)
}
