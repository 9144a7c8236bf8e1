package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deedwatch/internal/fetcher"
)

func TestParseRecordingDate(t *testing.T) {
	want := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-04", "2024-03-04T00:00:00Z", "2024-03-04T16:30:00", "03/04/2024", "3/4/2024", " 2024-03-04 "} {
		got, err := ParseRecordingDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	_, err := ParseRecordingDate("March 4th")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNormalizeExemption(t *testing.T) {
	base := fetcher.RawRecording{DocNumber: " 2024000001 ", RecordingDate: "2024-03-04", APN: "360-384-05"}

	rec, err := Normalize(base, "Orange", "mock")
	require.NoError(t, err)
	assert.Equal(t, "2024000001", rec.DocNumber)
	assert.Equal(t, "36038405", rec.APNNormalized)
	assert.True(t, rec.IsExempt)
	assert.True(t, json.Valid(rec.RawData))

	base.TransferTax = decimal.NewNullDecimal(decimal.Zero)
	rec, err = Normalize(base, "Orange", "mock")
	require.NoError(t, err)
	assert.True(t, rec.IsExempt)

	base.TransferTax = decimal.NewNullDecimal(decimal.NewFromInt(2860))
	rec, err = Normalize(base, "Orange", "mock")
	require.NoError(t, err)
	assert.False(t, rec.IsExempt)
}

func TestNormalizeRejectsMissingDocNumber(t *testing.T) {
	_, err := Normalize(fetcher.RawRecording{RecordingDate: "2024-03-04"}, "Orange", "mock")
	assert.ErrorIs(t, err, ErrMalformed)
}
