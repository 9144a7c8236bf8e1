package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestATTOMFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, attomSnapshotPath, r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("apikey"))
		q := r.URL.Query()
		assert.Equal(t, "CA/Orange", q.Get("geoIdV4"))
		assert.Equal(t, "2024-03-01", q.Get("minsaledate"))
		assert.Equal(t, "2024-03-07", q.Get("maxsaledate"))
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "2", q.Get("pageSize"))
		_, _ = w.Write([]byte(`{"property":[{
			"identifier":{"apn":"360-384-05"},
			"address":{"oneLine":"2911 N Orange Olive Rd","locality":"Orange"},
			"sale":{"saleTransferData":{"documentNumber":"2024000001","recordingDate":"2024-03-04",
				"documentType":"Grant Deed","sellerName":"A","buyerName":"B","transferTax":"2,860.00"}}
		}]}`))
	}))
	defer srv.Close()

	a := NewATTOM(ATTOMOptions{BaseURL: srv.URL, APIKey: "key", PageSize: 2, Timeout: time.Second}, noopLogger())
	page, err := a.FetchPage(context.Background(), testQuery(), 0)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.False(t, page.More)

	rec := page.Records[0]
	assert.Equal(t, "2024000001", rec.DocNumber)
	assert.Equal(t, "360-384-05", rec.APN)
	assert.Equal(t, "Orange", rec.City)
	assert.Equal(t, "A", rec.Grantor)
	assert.True(t, rec.TransferTax.Valid)
	assert.Equal(t, "2860", rec.TransferTax.Decimal.String())
}

func TestATTOMUnparseableTaxKeepsRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"property":[{
			"identifier":{"apn":"082-261-15"},
			"sale":{"saleTransferData":{"documentNumber":"2024000009","recordingDate":"2024-03-05","transferTax":"N/A"}}
		}]}`))
	}))
	defer srv.Close()

	a := NewATTOM(ATTOMOptions{BaseURL: srv.URL, APIKey: "key", PageSize: 5, Timeout: time.Second}, noopLogger())
	page, err := a.FetchPage(context.Background(), testQuery(), 0)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "2024000009", page.Records[0].DocNumber)
	assert.Equal(t, "082-261-15", page.Records[0].APN)
	assert.False(t, page.Records[0].TransferTax.Valid)
}

func TestMockServesSampleOnFirstPage(t *testing.T) {
	m := NewMock()
	page, err := m.FetchPage(context.Background(), testQuery(), 0)
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "2024-03-01", page.Records[0].RecordingDate)
	assert.Equal(t, "360-384-05", page.Records[0].APN)

	page, err = m.FetchPage(context.Background(), testQuery(), 1)
	require.NoError(t, err)
	assert.Empty(t, page.Records)
}
