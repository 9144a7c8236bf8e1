package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testQuery() Query {
	return Query{
		County:   "Orange",
		State:    "CA",
		From:     time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC),
		DocTypes: []string{"Grant Deed"},
	}
}

func TestPropertyRadarFetchPage(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, propertyRadarSearchPath, r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"results":[
			{"documentNumber":"2024000001","recordingDate":"2024-03-04","apn":"360-384-05","grantor":"A","grantee":"B","transferTax":2860},
			{"documentNumber":"2024000002","recordingDate":"2024-03-05","apn":"082-261-15","transferTax":""},
			"not a record"
		]}`))
	}))
	defer srv.Close()

	p := NewPropertyRadar(PropertyRadarOptions{BaseURL: srv.URL, APIKey: "key", PageSize: 3, Timeout: time.Second}, noopLogger())
	page, err := p.FetchPage(context.Background(), testQuery(), 2)
	require.NoError(t, err)

	assert.Equal(t, 6, got.Offset)
	assert.Equal(t, 3, got.Limit)
	assert.Equal(t, "2024-03-01", got.Criteria.RecordingDateMin)
	assert.Equal(t, "2024-03-07", got.Criteria.RecordingDateMax)
	assert.Equal(t, []string{"Grant Deed"}, got.Criteria.DocumentType)

	require.Len(t, page.Records, 3)
	assert.True(t, page.More)
	assert.Equal(t, "2024000001", page.Records[0].DocNumber)
	assert.Equal(t, "2860", page.Records[0].TransferTax.Decimal.String())
	assert.False(t, page.Records[1].TransferTax.Valid)
	assert.Empty(t, page.Records[2].DocNumber)
	assert.NotEmpty(t, page.Records[2].Raw)
}

func TestPropertyRadarLastPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	p := NewPropertyRadar(PropertyRadarOptions{BaseURL: srv.URL, APIKey: "key"}, noopLogger())
	page, err := p.FetchPage(context.Background(), testQuery(), 0)
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.False(t, page.More)
}

func TestPropertyRadarErrorClassification(t *testing.T) {
	cases := map[int]bool{
		http.StatusBadRequest:          false,
		http.StatusUnauthorized:        false,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
	}
	for status, transient := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))

		p := NewPropertyRadar(PropertyRadarOptions{BaseURL: srv.URL, APIKey: "key"}, noopLogger())
		_, err := p.FetchPage(context.Background(), testQuery(), 0)
		srv.Close()

		require.Error(t, err, "status %d", status)
		var httpErr *HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, status, httpErr.StatusCode)
		assert.Equal(t, transient, IsTransient(err), "status %d", status)
	}
}

func TestTransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewPropertyRadar(PropertyRadarOptions{BaseURL: url, APIKey: "key", Timeout: time.Second}, noopLogger())
	_, err := p.FetchPage(context.Background(), testQuery(), 0)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestMalformedBodyIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	p := NewPropertyRadar(PropertyRadarOptions{BaseURL: srv.URL, APIKey: "key"}, noopLogger())
	_, err := p.FetchPage(context.Background(), testQuery(), 0)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestPropertyRadarKeepsRecordWithOddOptionalFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"documentNumber":"2024000003","recordingDate":"2024-03-06","apn":36038405,
			 "grantor":{"name":"nested"},"grantee":["Buyer LP","Co-Buyer Trust"],"transferTax":"N/A"}
		]}`))
	}))
	defer srv.Close()

	p := NewPropertyRadar(PropertyRadarOptions{BaseURL: srv.URL, APIKey: "key", PageSize: 10, Timeout: time.Second}, noopLogger())
	page, err := p.FetchPage(context.Background(), testQuery(), 0)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)

	rec := page.Records[0]
	assert.Equal(t, "2024000003", rec.DocNumber)
	assert.Equal(t, "2024-03-06", rec.RecordingDate)
	assert.Equal(t, "36038405", rec.APN)
	assert.Empty(t, rec.Grantor)
	assert.Equal(t, "Buyer LP; Co-Buyer Trust", rec.Grantee)
	assert.False(t, rec.TransferTax.Valid)
}

func TestFlexDecoding(t *testing.T) {
	var d flexDecimal
	for in, want := range map[string]string{`2860`: "2860", `"$15,400"`: "15400", `" 12.5 "`: "12.5"} {
		require.NoError(t, json.Unmarshal([]byte(in), &d))
		require.True(t, d.Valid, in)
		assert.Equal(t, want, d.Decimal.String())
	}
	for _, in := range []string{`null`, `""`, `"N/A"`, `true`, `{}`} {
		require.NoError(t, json.Unmarshal([]byte(in), &d))
		assert.False(t, d.Valid, in)
	}

	var s flexString
	for in, want := range map[string]string{`" A "`: "A", `42`: "42", `["x", 7, null]`: "x; 7", `{"a":1}`: "", `null`: ""} {
		require.NoError(t, json.Unmarshal([]byte(in), &s))
		assert.Equal(t, want, string(s), in)
	}
}
