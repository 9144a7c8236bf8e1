package app

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deedwatch/internal/config"
	"deedwatch/internal/service"
	"deedwatch/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		Monitor: config.MonitorConfig{County: "Orange", State: "CA", LookbackDays: 7, Window: 168 * time.Hour},
		Pricing: config.PricingConfig{DefaultRate: 1.10},
		Alerting: config.AlertingConfig{
			Enabled:            true,
			HighPriceThreshold: 5_000_000,
		},
	}
}

func TestSyntheticAlertPricesTheStamp(t *testing.T) {
	a := NewApp(testConfig(), zerolog.Nop())

	alert := a.syntheticAlert(SimulateOptions{APN: "360-384-05", Address: "1 Main St", TransferTax: 2860, Assessed: 1_000_000})
	require.True(t, alert.SalePrice.Valid)
	assert.True(t, alert.SalePrice.Decimal.Equal(decimal.NewFromInt(2_600_000)))
	assert.Equal(t, storage.PriorityNormal, alert.Priority)
	assert.Equal(t, "2.6", alert.PriceVsAssessed.Decimal.String())

	exempt := a.syntheticAlert(SimulateOptions{APN: "082-261-15", Listed: true})
	assert.False(t, exempt.SalePrice.Valid)
	assert.Equal(t, storage.PriorityHigh, exempt.Priority)
}

func TestNewDispatcherFollowsChannelOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Alerting.Channels = []string{"telegram", "slack"}
	cfg.Alerting.Slack = config.SlackConfig{Enabled: true, WebhookURL: "http://127.0.0.1/hook"}
	a := NewApp(cfg, zerolog.Nop())

	d, closer, err := a.newDispatcher()
	require.NoError(t, err)
	defer closer()
	require.NotNil(t, d)
	assert.Equal(t, "router", d.Name())

	cfg.Alerting.Channels = []string{"pigeon"}
	_, _, err = a.newDispatcher()
	assert.Error(t, err)
}

func TestNewDispatcherBuildsEmailChannel(t *testing.T) {
	cfg := testConfig()
	cfg.Alerting.Channels = []string{"email"}
	cfg.Alerting.Email = config.EmailConfig{Enabled: true, Host: "smtp.example.com", Port: 25, From: "a@example.com", To: []string{"b@example.com"}}
	a := NewApp(cfg, zerolog.Nop())

	d, closer, err := a.newDispatcher()
	require.NoError(t, err)
	defer closer()
	require.NotNil(t, d)
}

func TestNewDispatcherWithoutChannels(t *testing.T) {
	a := NewApp(testConfig(), zerolog.Nop())
	d, closer, err := a.newDispatcher()
	require.NoError(t, err)
	require.NotNil(t, closer)
	assert.Nil(t, d)
}

func TestNewProviderByName(t *testing.T) {
	cfg := testConfig()
	a := NewApp(cfg, zerolog.Nop())

	for name, want := range map[string]string{"mock": "mock", "propertyradar": "propertyradar", "attom": "attom"} {
		cfg.Provider.Name = name
		p, err := a.newProvider()
		require.NoError(t, err)
		assert.Equal(t, want, p.Name())
	}

	cfg.Provider.Name = "county-scraper"
	_, err := a.newProvider()
	assert.Error(t, err)
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, service.Report{
		Window: service.Window{
			From: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC),
		},
		DryRun: true,
		Stats:  storage.RunStats{RecordsFetched: 2, RecordsMatched: 1, AlertsCreated: 1},
		Alerts: []storage.SaleAlert{{
			Priority:  storage.PriorityNormal,
			APN:       "360-384-05",
			Address:   "1 Main St",
			SalePrice: decimal.NewNullDecimal(decimal.NewFromInt(2_600_000)),
		}},
	})

	out := buf.String()
	assert.Contains(t, out, "dry run 2024-03-01..2024-03-07")
	assert.Contains(t, out, "fetched 2")
	assert.Contains(t, out, "$2,600,000")
	assert.NotContains(t, out, "dispatched")
}

func TestWriteAlertsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "alerts.csv")
	alerts := []storage.SaleAlert{
		{
			Priority:        storage.PriorityHigh,
			APN:             "360-384-05",
			SaleDate:        time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
			SalePrice:       decimal.NewNullDecimal(decimal.NewFromInt(2_600_000)),
			WasListed:       true,
			PriceVsListing:  decimal.NewNullDecimal(decimal.Zero),
			PriceVsAssessed: decimal.NewNullDecimal(decimal.RequireFromString("2.6")),
		},
		{Priority: storage.PriorityNormal, APN: "082-261-15", SaleDate: time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, writeAlertsCSV(path, alerts))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "sale_date", rows[0][1])
	assert.Equal(t, []string{"2024-03-04", "high", "360-384-05"}, rows[1][1:4])
	assert.Equal(t, "2600000", rows[1][6])
	assert.Equal(t, "0.00", rows[1][11])
	assert.Equal(t, "2.60", rows[1][13])
	assert.Equal(t, "", rows[2][6], "exempt transfers have no price")
}

func TestWriteAlertsPNGNeedsTwoPricedSales(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")
	err := writeAlertsPNG(path, []storage.SaleAlert{{SalePrice: decimal.NewNullDecimal(decimal.NewFromInt(1))}})
	assert.Error(t, err)
}
