package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DEEDWATCH_DATABASE_DRIVER", "sqlite")
	t.Setenv("DEEDWATCH_MONITOR_COUNTY", "Los Angeles")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "Los Angeles", cfg.Monitor.County)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, 7*24*time.Hour, cfg.Monitor.Window)
	assert.Equal(t, "mock", cfg.Provider.Name)
	assert.Equal(t, 4, cfg.Provider.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Provider.Retry.InitialBackoff)
	assert.InDelta(t, 1.10, cfg.Pricing.DefaultRate, 1e-9)
	assert.InDelta(t, 5_000_000, cfg.Alerting.HighPriceThreshold, 1e-6)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deedwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  sqlite_path: /tmp/deeds.db
monitor:
  county: San Diego
  lookback_days: 3
provider:
  name: attom
  api_key: secret
  doc_types: Grant Deed,Trust Transfer Deed
pricing:
  rates:
    san diego: 1.10
    san francisco: 6.80
alerting:
  channels: [telegram, kafka]
  kafka:
    enabled: true
    brokers: [localhost:9092]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "San Diego", cfg.Monitor.County)
	assert.Equal(t, 3, cfg.ResolveLookback(0))
	assert.Equal(t, 10, cfg.ResolveLookback(10))
	assert.Equal(t, "attom", cfg.Provider.Name)
	assert.Equal(t, []string{"Grant Deed", "Trust Transfer Deed"}, cfg.Provider.DocTypes)
	assert.InDelta(t, 6.80, cfg.Pricing.Rates["san francisco"], 1e-9)
	assert.Equal(t, []string{"telegram", "kafka"}, cfg.Alerting.Channels)
	assert.Equal(t, "deedwatch.sale-alerts", cfg.Alerting.Kafka.Topic)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database:  DatabaseConfig{Driver: DriverSQLite, SQLitePath: "deeds.db"},
			Scheduler: SchedulerConfig{Interval: time.Hour},
			Monitor:   MonitorConfig{County: "Orange", LookbackDays: 7, Window: 168 * time.Hour, Workers: 2},
			Provider:  ProviderConfig{Name: "mock", PageSize: 100, Retry: RetryConfig{MaxAttempts: 3}},
			Pricing:   PricingConfig{DefaultRate: 1.1},
			Export:    ExportConfig{MaxRows: 100},
		}
	}
	base := valid()
	require.NoError(t, base.Validate())

	cases := map[string]func(*Config){
		"postgres without dsn":   func(c *Config) { c.Database.Driver = DriverPostgres },
		"unknown driver":         func(c *Config) { c.Database.Driver = "oracle" },
		"zero interval":          func(c *Config) { c.Scheduler.Interval = 0 },
		"missing county":         func(c *Config) { c.Monitor.County = " " },
		"sub-day window":         func(c *Config) { c.Monitor.Window = time.Hour },
		"paid provider no key":   func(c *Config) { c.Provider.Name = "propertyradar" },
		"unknown provider":       func(c *Config) { c.Provider.Name = "scraper" },
		"zero rate":              func(c *Config) { c.Pricing.DefaultRate = 0 },
		"slack without webhook":  func(c *Config) { c.Alerting.Slack.Enabled = true },
		"telegram without token": func(c *Config) { c.Alerting.Telegram.Enabled = true },
		"kafka without brokers":  func(c *Config) { c.Alerting.Kafka.Enabled = true },
		"email without host":     func(c *Config) { c.Alerting.Email.Enabled = true },
		"email without recipients": func(c *Config) {
			c.Alerting.Email = EmailConfig{Enabled: true, Host: "smtp.example.com", From: "a@example.com"}
		},
		"cache without dir":      func(c *Config) { c.Cache.Enabled = true },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
