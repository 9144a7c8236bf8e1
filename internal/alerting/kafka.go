package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"deedwatch/internal/storage"
)

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes alerts as JSON for downstream delivery services.
// Messages are keyed by watchlist id so one parcel's alerts stay ordered.
type KafkaDispatcher struct {
	writer kafkaMessageWriter
	topic  string
	logger zerolog.Logger
}

// NewKafkaDispatcher creates a synchronous writer on topic.
func NewKafkaDispatcher(brokers []string, topic string, timeout time.Duration, logger zerolog.Logger) *KafkaDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return newKafkaDispatcherWith(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: timeout,
	}, topic, logger)
}

func newKafkaDispatcherWith(w kafkaMessageWriter, topic string, logger zerolog.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{
		writer: w,
		topic:  topic,
		logger: logger.With().Str("component", "alert_kafka").Logger(),
	}
}

// Name identifies the channel.
func (k *KafkaDispatcher) Name() string { return "kafka" }

// Dispatch writes the alert event and waits for acknowledgment.
func (k *KafkaDispatcher) Dispatch(ctx context.Context, alert storage.SaleAlert) (Delivery, error) {
	b, err := json.Marshal(newAlertEvent(alert))
	if err != nil {
		return Delivery{}, fmt.Errorf("marshal alert event: %w", err)
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.WatchlistID.String()),
		Value: b,
		Headers: []kafka.Header{
			{Key: "priority", Value: []byte(alert.Priority)},
		},
	}); err != nil {
		return Delivery{}, fmt.Errorf("write kafka message: %w", err)
	}
	k.logger.Info().Str("alert_id", alert.ID.String()).Str("topic", k.topic).Msg("alert published (kafka)")
	return Delivery{Channel: k.Name(), SentAt: time.Now().UTC()}, nil
}

// Close flushes and closes the writer.
func (k *KafkaDispatcher) Close() error { return k.writer.Close() }

type alertEvent struct {
	ID              string  `json:"id"`
	WatchlistID     string  `json:"watchlist_id"`
	DeedID          string  `json:"deed_id"`
	Priority        string  `json:"priority"`
	APN             string  `json:"apn"`
	Address         string  `json:"address"`
	City            string  `json:"city"`
	SalePrice       *string `json:"sale_price"`
	SaleDate        string  `json:"sale_date"`
	Buyer           string  `json:"buyer"`
	Seller          string  `json:"seller"`
	WasListed       bool    `json:"was_listed"`
	ListingPrice    *string `json:"listing_price"`
	PriceVsListing  *string `json:"price_vs_listing"`
	AssessedValue   *string `json:"assessed_value"`
	PriceVsAssessed *string `json:"price_vs_assessed"`
	Message         string  `json:"message"`
	CreatedAt       string  `json:"created_at"`
}

func newAlertEvent(a storage.SaleAlert) alertEvent {
	return alertEvent{
		ID:              a.ID.String(),
		WatchlistID:     a.WatchlistID.String(),
		DeedID:          a.DeedID.String(),
		Priority:        string(a.Priority),
		APN:             a.APN,
		Address:         a.Address,
		City:            a.City,
		SalePrice:       decimalString(a.SalePrice),
		SaleDate:        a.SaleDate.Format("2006-01-02"),
		Buyer:           a.Buyer,
		Seller:          a.Seller,
		WasListed:       a.WasListed,
		ListingPrice:    decimalString(a.ListingPrice),
		PriceVsListing:  decimalString(a.PriceVsListing),
		AssessedValue:   decimalString(a.AssessedValue),
		PriceVsAssessed: decimalString(a.PriceVsAssessed),
		Message:         RenderMessage(a),
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

var _ Dispatcher = (*KafkaDispatcher)(nil)
