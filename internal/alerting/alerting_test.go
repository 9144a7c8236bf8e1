package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deedwatch/internal/storage"
)

type stubDispatcher struct {
	name  string
	err   error
	calls int
}

func (s *stubDispatcher) Name() string { return s.name }

func (s *stubDispatcher) Dispatch(context.Context, storage.SaleAlert) (Delivery, error) {
	s.calls++
	if s.err != nil {
		return Delivery{}, s.err
	}
	return Delivery{}, nil
}

func TestRouterFallsBackToNextChannel(t *testing.T) {
	broken := &stubDispatcher{name: "slack", err: errors.New("webhook down")}
	ok := &stubDispatcher{name: "telegram"}
	unused := &stubDispatcher{name: "kafka"}
	r := NewRouter(testLogger(), broken, ok, unused)

	d, err := r.Dispatch(context.Background(), sampleAlert())
	require.NoError(t, err)
	assert.Equal(t, "telegram", d.Channel)
	assert.False(t, d.SentAt.IsZero())
	assert.Equal(t, 1, broken.calls)
	assert.Zero(t, unused.calls)
}

func TestRouterJoinsErrors(t *testing.T) {
	r := NewRouter(testLogger(),
		&stubDispatcher{name: "slack", err: errors.New("a")},
		&stubDispatcher{name: "telegram", err: errors.New("b")},
	)
	_, err := r.Dispatch(context.Background(), sampleAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack: a")
	assert.Contains(t, err.Error(), "telegram: b")

	_, err = NewRouter(testLogger()).Dispatch(context.Background(), sampleAlert())
	assert.ErrorIs(t, err, ErrNoDispatchers)
}

func TestSlackNotifier(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, "#sales", time.Second, testLogger())
	d, err := n.Dispatch(context.Background(), sampleAlert())
	require.NoError(t, err)
	assert.Equal(t, "slack", d.Channel)
	assert.Equal(t, "#sales", payload["channel"])
	assert.Contains(t, payload["text"], "2911 N Orange Olive Rd, Orange")
}

func TestSlackNotifierStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	_, err := NewSlackNotifier(srv.URL, "", time.Second, testLogger()).Dispatch(context.Background(), sampleAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_token")
}

type fakeKafkaWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error { return nil }

func TestKafkaDispatcherPublishesEvent(t *testing.T) {
	w := &fakeKafkaWriter{}
	k := newKafkaDispatcherWith(w, "alerts", testLogger())
	alert := sampleAlert()

	d, err := k.Dispatch(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, "kafka", d.Channel)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, alert.WatchlistID.String(), string(w.msgs[0].Key))

	var event alertEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &event))
	assert.Equal(t, alert.ID.String(), event.ID)
	require.NotNil(t, event.SalePrice)
	assert.Equal(t, "2600000", *event.SalePrice)
	assert.Equal(t, "2025-01-06", event.SaleDate)

	w.err = errors.New("broker unavailable")
	_, err = k.Dispatch(context.Background(), alert)
	assert.Error(t, err)
}

func TestRenderMessage(t *testing.T) {
	msg := RenderMessage(sampleAlert())
	assert.Contains(t, msg, "[HIGH]")
	assert.Contains(t, msg, "APN: 360-384-05")
	assert.Contains(t, msg, "Sale Price: $2,600,000")
	assert.Contains(t, msg, "Was Listed: $2,800,000 (-7.1% from list)")
	assert.Contains(t, msg, "Sale/Assessed Ratio: 2.60x")

	exempt := sampleAlert()
	exempt.Priority = storage.PriorityNormal
	exempt.SalePrice = decimal.NullDecimal{}
	exempt.WasListed = false
	exempt.PriceVsAssessed = decimal.NullDecimal{}
	msg = RenderMessage(exempt)
	assert.Contains(t, msg, "Sale Price: Unknown")
	assert.NotContains(t, msg, "Ratio")
	assert.NotContains(t, msg, "[HIGH]")
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$999", FormatPrice(decimal.NewNullDecimal(decimal.NewFromInt(999))))
	assert.Equal(t, "$14,000,000", FormatPrice(decimal.NewNullDecimal(decimal.NewFromInt(14_000_000))))
	assert.Equal(t, "$1,000", FormatPrice(decimal.NewNullDecimal(decimal.RequireFromString("999.6"))))
}
