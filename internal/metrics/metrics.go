package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	RecordsFetched prometheus.Counter
	RecordsStored  prometheus.Counter
	RecordsSkipped prometheus.Counter
	PagesFailed    prometheus.Counter
	PageRetries    prometheus.Counter
	RecordsMatched prometheus.Counter
	Ambiguous      prometheus.Counter
	AlertsCreated  *prometheus.CounterVec
	Dispatches     *prometheus.CounterVec

	Runs           *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	LastSuccessSec prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	fetched := prometheus.NewCounter(prometheus.CounterOpts{Name: "deedwatch_records_fetched_total"})
	stored := prometheus.NewCounter(prometheus.CounterOpts{Name: "deedwatch_records_stored_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "deedwatch_records_skipped_total"})
	pagesFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "deedwatch_pages_failed_total"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{Name: "deedwatch_page_retries_total"})
	matched := prometheus.NewCounter(prometheus.CounterOpts{Name: "deedwatch_records_matched_total"})
	ambiguous := prometheus.NewCounter(prometheus.CounterOpts{Name: "deedwatch_ambiguous_matches_total"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "deedwatch_alerts_created_total"}, []string{"priority"})
	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "deedwatch_alert_dispatches_total"}, []string{"channel", "result"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "deedwatch_runs_total"}, []string{"status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "deedwatch_run_duration_seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{Name: "deedwatch_last_success_timestamp_seconds"})

	r.MustRegister(fetched, stored, skipped, pagesFailed, retries, matched, ambiguous, alerts, dispatches, runs, duration, lastSuccess)
	return &Registry{
		reg:            r,
		RecordsFetched: fetched,
		RecordsStored:  stored,
		RecordsSkipped: skipped,
		PagesFailed:    pagesFailed,
		PageRetries:    retries,
		RecordsMatched: matched,
		Ambiguous:      ambiguous,
		AlertsCreated:  alerts,
		Dispatches:     dispatches,
		Runs:           runs,
		RunDuration:    duration,
		LastSuccessSec: lastSuccess,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
