package fetcher

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

const mockName = "mock"

// Mock serves deterministic sample recordings dated on the first day of the
// query, for running the pipeline without provider credentials.
type Mock struct{}

// NewMock constructs the sample provider.
func NewMock() *Mock { return &Mock{} }

// Name identifies the provider in recordings and cache keys.
func (m *Mock) Name() string { return mockName }

// FetchPage returns the sample set on page zero and nothing afterwards.
func (m *Mock) FetchPage(_ context.Context, q Query, page int) (Page, error) {
	if page > 0 {
		return Page{}, nil
	}
	date := q.From.Format(DateLayout)
	raw := json.RawMessage(`{"test":true}`)
	return Page{Records: []RawRecording{
		{
			DocNumber:     "2025000012345",
			RecordingDate: date,
			DocType:       "Grant Deed",
			APN:           "360-384-05",
			Address:       "2911 N Orange Olive Rd",
			City:          "Orange",
			Grantor:       "OLIVE HILL PROPERTIES LLC",
			Grantee:       "NEW BUYER INDUSTRIAL LLC",
			TransferTax:   decimal.NewNullDecimal(decimal.NewFromInt(2860)),
			Raw:           raw,
		},
		{
			DocNumber:     "2025000012346",
			RecordingDate: date,
			DocType:       "Grant Deed",
			APN:           "082-261-15",
			Address:       "3855 E La Palma Ave",
			City:          "Anaheim",
			Grantor:       "LA PALMA INDUSTRIAL OWNER LLC",
			Grantee:       "WAREHOUSE BUYER CORP",
			TransferTax:   decimal.NewNullDecimal(decimal.NewFromInt(15400)),
			Raw:           raw,
		},
	}}, nil
}

var _ Provider = (*Mock)(nil)
