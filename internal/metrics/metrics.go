// Package metrics exposes pipeline counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quoteledger/internal/refresh"
)

// Recorder implements refresh.Observer and quotepage.AttemptObserver.
// A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	fetchAttempts *prometheus.CounterVec
	lookups       *prometheus.CounterVec
	runs          prometheus.Counter
	runDuration   prometheus.Histogram
	lastRun       prometheus.Gauge
	lastFailed    prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quoteledger_fetch_attempts_total",
			Help: "Quote page fetch attempts by HTTP status (0 = transport error).",
		}, []string{"status"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quoteledger_lookups_total",
			Help: "Per-row lookups by outcome.",
		}, []string{"outcome"}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quoteledger_runs_total",
			Help: "Completed refresh runs.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quoteledger_run_duration_seconds",
			Help:    "Wall time of completed refresh runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quoteledger_last_run_timestamp_seconds",
			Help: "Unix time the last refresh run finished.",
		}),
		lastFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quoteledger_last_run_failed_rows",
			Help: "Rows whose lookup failed in the last refresh run.",
		}),
	}
	r.registry.MustRegister(r.fetchAttempts, r.lookups, r.runs, r.runDuration, r.lastRun, r.lastFailed)
	return r
}

func (r *Recorder) ObserveAttempt(status int) {
	if r == nil {
		return
	}
	r.fetchAttempts.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (r *Recorder) ObserveLookup(ok bool) {
	if r == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "ok"
	}
	r.lookups.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveRun(s refresh.Summary) {
	if r == nil {
		return
	}
	r.runs.Inc()
	r.runDuration.Observe(s.Duration().Seconds())
	r.lastRun.Set(float64(s.FinishedAt.Unix()))
	r.lastFailed.Set(float64(s.Failed))
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
