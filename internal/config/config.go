package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"deedwatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig selects and sizes the storage backend.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs the daemon cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// MonitorConfig describes which county is watched and how windows are cut.
type MonitorConfig struct {
	County       string        `mapstructure:"county"`
	State        string        `mapstructure:"state"`
	LookbackDays int           `mapstructure:"lookback_days"`
	Window       time.Duration `mapstructure:"window"`
	Workers      int           `mapstructure:"workers"`
	DispatchMax  int           `mapstructure:"dispatch_max"`
}

// ProviderConfig captures recording provider connectivity.
type ProviderConfig struct {
	Name           string        `mapstructure:"name"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	PageSize       int           `mapstructure:"page_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	DocTypes       []string      `mapstructure:"doc_types"`
	GeoID          string        `mapstructure:"geo_id"`
	Retry          RetryConfig   `mapstructure:"retry"`
}

// RetryConfig bounds the per-page retry loop.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// PricingConfig holds DTT rates per $1,000 of consideration.
type PricingConfig struct {
	DefaultRate float64            `mapstructure:"default_rate"`
	Rates       map[string]float64 `mapstructure:"rates"`
}

// AlertingConfig defines prioritisation and routing.
type AlertingConfig struct {
	Enabled            bool           `mapstructure:"enabled"`
	HighPriceThreshold float64        `mapstructure:"high_price_threshold"`
	Channels           []string       `mapstructure:"channels"`
	Slack              SlackConfig    `mapstructure:"slack"`
	Telegram           TelegramConfig `mapstructure:"telegram"`
	Email              EmailConfig    `mapstructure:"email"`
	Kafka              KafkaConfig    `mapstructure:"kafka"`
}

// SlackConfig describes the incoming webhook.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

// TelegramConfig describes the Telegram bot.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// EmailConfig describes the SMTP relay.
type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// KafkaConfig describes the alert topic.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CacheConfig configures the on-disk provider page cache.
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Dir         string        `mapstructure:"dir"`
	SettleAfter time.Duration `mapstructure:"settle_after"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxRows int `mapstructure:"max_rows"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEEDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "deedwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.sqlite_path", "deedwatch.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_interval", false)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x64656564))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("monitor.county", "Orange")
	v.SetDefault("monitor.state", "CA")
	v.SetDefault("monitor.lookback_days", 7)
	v.SetDefault("monitor.window", "168h")
	v.SetDefault("monitor.workers", 4)
	v.SetDefault("monitor.dispatch_max", 200)

	v.SetDefault("provider.name", "mock")
	v.SetDefault("provider.page_size", 100)
	v.SetDefault("provider.request_timeout", "30s")
	v.SetDefault("provider.doc_types", []string{"Grant Deed", "Warranty Deed", "Quitclaim Deed"})
	v.SetDefault("provider.retry.max_attempts", 4)
	v.SetDefault("provider.retry.initial_backoff", "500ms")
	v.SetDefault("provider.retry.max_backoff", "10s")

	v.SetDefault("pricing.default_rate", 1.10)
	v.SetDefault("pricing.rates", map[string]float64{
		"orange":      1.10,
		"los angeles": 1.10,
		"san diego":   1.10,
		"riverside":   1.10,
	})

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.high_price_threshold", 5000000.0)
	v.SetDefault("alerting.channels", []string{"slack"})
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.email.port", 587)
	v.SetDefault("alerting.kafka.topic", "deedwatch.sale-alerts")
	v.SetDefault("alerting.kafka.write_timeout", "10s")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.dir", ".deedwatch-cache")
	v.SetDefault("cache.settle_after", "720h")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9108")

	v.SetDefault("export.max_rows", 10000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if strings.TrimSpace(c.Monitor.County) == "" {
		return fmt.Errorf("monitor.county is required")
	}
	if c.Monitor.LookbackDays <= 0 {
		return fmt.Errorf("monitor.lookback_days must be greater than zero")
	}
	if c.Monitor.Window < 24*time.Hour {
		return fmt.Errorf("monitor.window must be at least one day")
	}
	if c.Monitor.Workers <= 0 {
		return fmt.Errorf("monitor.workers must be greater than zero")
	}
	switch c.Provider.Name {
	case "mock":
	case "propertyradar", "attom":
		if c.Provider.APIKey == "" {
			return fmt.Errorf("provider.api_key is required for %s", c.Provider.Name)
		}
	default:
		return fmt.Errorf("provider.name must be one of propertyradar, attom, mock")
	}
	if c.Provider.PageSize <= 0 {
		return fmt.Errorf("provider.page_size must be greater than zero")
	}
	if c.Provider.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("provider.retry.max_attempts must be greater than zero")
	}
	if c.Pricing.DefaultRate <= 0 {
		return fmt.Errorf("pricing.default_rate must be greater than zero")
	}
	if c.Alerting.HighPriceThreshold < 0 {
		return fmt.Errorf("alerting.high_price_threshold cannot be negative")
	}
	if c.Alerting.Slack.Enabled && c.Alerting.Slack.WebhookURL == "" {
		return fmt.Errorf("alerting.slack.webhook_url is required")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if c.Alerting.Email.Enabled {
		if c.Alerting.Email.Host == "" {
			return fmt.Errorf("alerting.email.host is required")
		}
		if c.Alerting.Email.From == "" {
			return fmt.Errorf("alerting.email.from is required")
		}
		if len(c.Alerting.Email.To) == 0 {
			return fmt.Errorf("alerting.email.to is required")
		}
	}
	if c.Alerting.Kafka.Enabled {
		if len(c.Alerting.Kafka.Brokers) == 0 {
			return fmt.Errorf("alerting.kafka.brokers is required")
		}
		if c.Alerting.Kafka.Topic == "" {
			return fmt.Errorf("alerting.kafka.topic is required")
		}
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required when the cache is enabled")
	}
	if c.Export.MaxRows <= 0 {
		return fmt.Errorf("export.max_rows must be greater than zero")
	}
	return nil
}

// ResolveMaxRows returns either the CLI override or config default.
func (c *Config) ResolveMaxRows(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxRows
}

// ResolveLookback returns either the CLI override or config default.
func (c *Config) ResolveLookback(override int) int {
	if override > 0 {
		return override
	}
	return c.Monitor.LookbackDays
}
