package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"deedwatch/internal/alertgen"
	"deedwatch/internal/alerting"
	"deedwatch/internal/config"
	"deedwatch/internal/fetcher"
	"deedwatch/internal/ingest"
	"deedwatch/internal/matcher"
	"deedwatch/internal/metrics"
	"deedwatch/internal/pagecache"
	"deedwatch/internal/pricing"
	"deedwatch/internal/runs"
	"deedwatch/internal/scheduler"
	"deedwatch/internal/service"
	"deedwatch/internal/storage"
	"deedwatch/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newProvider() (fetcher.Provider, error) {
	p := a.Config.Provider
	if p.UserAgent == "" {
		p.UserAgent = version.UserAgent()
	}
	switch p.Name {
	case "propertyradar":
		return fetcher.NewPropertyRadar(fetcher.PropertyRadarOptions{
			BaseURL:   p.BaseURL,
			APIKey:    p.APIKey,
			PageSize:  p.PageSize,
			Timeout:   p.RequestTimeout,
			UserAgent: p.UserAgent,
		}, a.Logger), nil
	case "attom":
		return fetcher.NewATTOM(fetcher.ATTOMOptions{
			BaseURL:   p.BaseURL,
			APIKey:    p.APIKey,
			PageSize:  p.PageSize,
			Timeout:   p.RequestTimeout,
			UserAgent: p.UserAgent,
			GeoID:     p.GeoID,
		}, a.Logger), nil
	case "mock", "":
		return fetcher.NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", p.Name)
	}
}

// newCachedProvider wraps the provider with the page cache when enabled. The
// returned closer is never nil.
func (a *App) newCachedProvider() (fetcher.Provider, func(), error) {
	provider, err := a.newProvider()
	if err != nil {
		return nil, nil, err
	}
	if !a.Config.Cache.Enabled {
		return provider, func() {}, nil
	}
	cache, err := pagecache.Open(a.Config.Cache.Dir)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close page cache")
		}
	}
	return pagecache.Wrap(provider, cache, a.Config.Cache.SettleAfter, a.Logger), closer, nil
}

// newDispatcher builds the channel router in the configured order. The closer
// is never nil.
func (a *App) newDispatcher() (alerting.Dispatcher, func(), error) {
	cfg := a.Config.Alerting
	var (
		dispatchers []alerting.Dispatcher
		closers     []func() error
	)
	for _, name := range cfg.Channels {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "slack":
			if cfg.Slack.Enabled {
				dispatchers = append(dispatchers, alerting.NewSlackNotifier(cfg.Slack.WebhookURL, cfg.Slack.Channel, 10*time.Second, a.Logger))
			}
		case "telegram":
			if cfg.Telegram.Enabled {
				dispatchers = append(dispatchers, alerting.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, 10*time.Second, a.Logger))
			}
		case "email":
			if cfg.Email.Enabled {
				dispatchers = append(dispatchers, alerting.NewEmailNotifier(alerting.EmailOptions{
					Host:     cfg.Email.Host,
					Port:     cfg.Email.Port,
					Username: cfg.Email.Username,
					Password: cfg.Email.Password,
					From:     cfg.Email.From,
					To:       cfg.Email.To,
				}, a.Logger))
			}
		case "kafka":
			if cfg.Kafka.Enabled {
				k := alerting.NewKafkaDispatcher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.WriteTimeout, a.Logger)
				dispatchers = append(dispatchers, k)
				closers = append(closers, k.Close)
			}
		default:
			return nil, nil, fmt.Errorf("unknown alert channel %q", name)
		}
	}

	closer := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				a.Logger.Warn().Err(err).Msg("close dispatcher")
			}
		}
	}
	if len(dispatchers) == 0 {
		return nil, closer, nil
	}
	return alerting.NewRouter(a.Logger, dispatchers...), closer, nil
}

func (a *App) openStore(ctx context.Context) (storage.Repository, func(), error) {
	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	// the embedded sqlite file is created on demand
	if a.Config.Database.Driver == config.DriverSQLite {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
	}
	closer := func() {
		if err := store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close store")
		}
	}
	return store, closer, nil
}

// pipeline holds a wired service and the resources to release with it.
type pipeline struct {
	svc    *service.Service
	store  storage.Repository
	close  func()
	sched  *scheduler.Scheduler
	metric *metrics.Registry
}

type pipelineOptions struct {
	withScheduler bool
	withMetrics   bool
}

func (a *App) newPipeline(ctx context.Context, opts pipelineOptions) (*pipeline, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	provider, closeProvider, err := a.newCachedProvider()
	if err != nil {
		closeStore()
		return nil, err
	}
	dispatcher, closeDispatcher, err := a.newDispatcher()
	if err != nil {
		closeProvider()
		closeStore()
		return nil, err
	}

	p := &pipeline{
		store: store,
		close: func() {
			closeDispatcher()
			closeProvider()
			closeStore()
		},
	}
	if opts.withScheduler {
		p.sched = scheduler.New(scheduler.Options{
			Interval:     a.Config.Scheduler.Interval,
			AlignToStart: a.Config.Scheduler.AlignToInterval,
			StartupDelay: a.Config.Scheduler.StartupDelay,
			RunOnStart:   true,
		}, a.Logger)
	}
	if opts.withMetrics && a.Config.Metrics.Enabled {
		p.metric = metrics.NewRegistry()
	}

	retry := a.Config.Provider.Retry
	deps := service.Deps{
		Scheduler: p.sched,
		Repo:      store,
		Ingestor: ingest.New(provider, store, ingest.Options{
			Workers: a.Config.Monitor.Workers,
			Retry: ingest.RetryPolicy{
				MaxAttempts:    retry.MaxAttempts,
				InitialBackoff: retry.InitialBackoff,
				MaxBackoff:     retry.MaxBackoff,
			},
		}, a.Logger),
		Matcher:    matcher.New(store, a.Logger),
		Calculator: pricing.NewCalculatorFromFloats(a.Config.Pricing.DefaultRate, a.Config.Pricing.Rates),
		Generator:  alertgen.NewGenerator(store, decimal.NewFromFloat(a.Config.Alerting.HighPriceThreshold), a.Logger),
		Tracker:    runs.NewTracker(store, a.Logger),
		Dispatcher: dispatcher,
		Metrics:    p.metric,
	}

	p.svc = service.New(deps, service.Options{
		County:        a.Config.Monitor.County,
		State:         a.Config.Monitor.State,
		DocTypes:      a.Config.Provider.DocTypes,
		LookbackDays:  a.Config.Monitor.LookbackDays,
		DispatchLimit: a.Config.Monitor.DispatchMax,
		AlertsEnabled: a.Config.Alerting.Enabled,
		LockKey:       a.Config.Scheduler.AdvisoryLockKey,
	}, a.Logger)
	return p, nil
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p, err := a.newPipeline(ctx, pipelineOptions{withScheduler: true, withMetrics: true})
	if err != nil {
		return err
	}
	defer p.close()

	if p.metric != nil {
		srv := &http.Server{Addr: a.Config.Metrics.Addr, Handler: metricsMux(p.metric), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		a.Logger.Info().Str("addr", a.Config.Metrics.Addr).Msg("serving metrics")
	}

	a.Logger.Info().
		Str("county", a.Config.Monitor.County).
		Str("provider", a.Config.Provider.Name).
		Dur("interval", a.Config.Scheduler.Interval).
		Msg("starting monitoring service")
	err = p.svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

func metricsMux(reg *metrics.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Migrate applies the embedded schema of the configured driver.
func (a *App) Migrate(ctx context.Context) error {
	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	a.Logger.Info().Str("driver", a.Config.Database.Driver).Msg("schema applied")
	return nil
}

// CheckOptions select the window of a one-off run.
type CheckOptions struct {
	Days   int
	Date   *time.Time
	DryRun bool
}

// ExportOptions hold parameters for exporting alerts.
type ExportOptions struct {
	From    *time.Time
	To      *time.Time
	PNGPath string
	CSVPath string
	MaxRows int
}

// ShowOptions configure the listing commands.
type ShowOptions struct {
	Limit int
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	From       time.Time
	To         time.Time
	WindowDays int
	Resume     bool
	DryRun     bool
	Progress   bool
}
