package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Priority ranks a sale alert for delivery.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// RunStatus is the lifecycle state of a monitor run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// WatchlistEntry is a monitored parcel.
type WatchlistEntry struct {
	ID            uuid.UUID
	APN           string
	APNNormalized string
	Address       string
	City          string
	State         string
	Zip           string
	County        string
	BuildingSF    *int64
	LotSF         *int64
	Zoning        string

	AssessedTotal decimal.NullDecimal
	AssessedYear  *int

	LastSaleDate      *time.Time
	LastSalePrice     decimal.NullDecimal
	LastSaleDocNumber *string

	IsListedForSale bool
	ListingPrice    decimal.NullDecimal
	ListingBroker   string

	// ParcelRef points at geometry owned by the map layer.
	ParcelRef string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeedRecording is one county recording as delivered by a provider.
type DeedRecording struct {
	ID                     uuid.UUID
	DocNumber              string
	RecordingDate          time.Time
	DocType                string
	County                 string
	APN                    string
	APNNormalized          string
	Address                string
	City                   string
	Grantor                string
	Grantee                string
	DocumentaryTransferTax decimal.NullDecimal
	CalculatedSalePrice    decimal.NullDecimal
	IsExempt               bool
	MatchedWatchlistID     uuid.NullUUID
	MatchConfidence        *float64
	RawData                json.RawMessage
	Source                 string
	ProcessedAt            *time.Time
	CreatedAt              time.Time
}

// Matched reports whether the recording already resolved to a watchlist entry.
func (r DeedRecording) Matched() bool {
	return r.MatchedWatchlistID.Valid
}

// RecordingMatch is the resolution written back onto a recording.
type RecordingMatch struct {
	WatchlistID         uuid.UUID
	Confidence          float64
	CalculatedSalePrice decimal.NullDecimal
	ProcessedAt         time.Time
}

// SaleAlert tells a broker that a watched parcel sold.
type SaleAlert struct {
	ID          uuid.UUID
	WatchlistID uuid.UUID
	DeedID      uuid.UUID
	Priority    Priority

	APN       string
	Address   string
	City      string
	SalePrice decimal.NullDecimal
	SaleDate  time.Time
	Buyer     string
	Seller    string

	WasListed       bool
	ListingPrice    decimal.NullDecimal
	PriceVsListing  decimal.NullDecimal
	AssessedValue   decimal.NullDecimal
	PriceVsAssessed decimal.NullDecimal

	NotificationSent    bool
	NotificationChannel *string
	NotificationSentAt  *time.Time

	Acknowledged    bool
	AcknowledgedAt  *time.Time
	AcknowledgeNote *string

	CreatedAt time.Time
}

// SaleUpdate is applied to the matched watchlist entry when an alert is first created.
type SaleUpdate struct {
	SaleDate  time.Time
	SalePrice decimal.NullDecimal
	DocNumber string
	UpdatedAt time.Time
}

// MonitorRun audits one pipeline execution.
type MonitorRun struct {
	ID             uuid.UUID
	StartedAt      time.Time
	CompletedAt    *time.Time
	County         string
	RangeStart     time.Time
	RangeEnd       time.Time
	RecordsFetched int
	RecordsStored  int
	RecordsSkipped int
	PagesFailed    int
	RecordsMatched int
	AlertsCreated  int
	Status         RunStatus
	ErrorMessage   *string
	DurationMs     *int64
}

// RunStats are the counters persisted when a run closes.
type RunStats struct {
	RecordsFetched int
	RecordsStored  int
	RecordsSkipped int
	PagesFailed    int
	RecordsMatched int
	AlertsCreated  int
}

// RunClose captures the terminal transition of a run.
type RunClose struct {
	Status       RunStatus
	Stats        RunStats
	ErrorMessage *string
	CompletedAt  time.Time
	DurationMs   int64
}
