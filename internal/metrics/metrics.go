// Package metrics exposes the job core's counters and gauges for
// external polling. It is purely observational: every recording method
// is safe on a nil *Metrics, so the worker and monitor run identically
// whether or not the exporter is enabled.
package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the session job core.
type Metrics struct {
	queueLength   prometheus.Gauge
	failureRate   prometheus.Gauge
	processed     prometheus.Counter
	succeeded     prometheus.Counter
	failed        prometheus.Counter
	skipped       prometheus.Counter
	queueAlerts   prometheus.Counter
	failureAlerts prometheus.Counter
}

// MustNewMetrics constructs the collectors and registers them with reg.
// Registration errors panic, mirroring promauto semantics: a duplicate
// registration is a wiring bug worth surfacing at startup. Tests pass a
// fresh registry to keep metric names from colliding.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "session_queue_length",
			Help: "Current depth of the session task queue.",
		}),
		failureRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "session_failure_rate",
			Help: "Failure rate over the monitor's sliding result window.",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "session_tasks_processed_total",
			Help: "Tasks that ran the pipeline and reached a terminal state.",
		}),
		succeeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "session_tasks_succeeded_total",
			Help: "Tasks whose terminal state is a success.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "session_tasks_failed_total",
			Help: "Tasks whose terminal state is a failure.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "session_tasks_skipped_total",
			Help: "Dequeued tasks skipped because the session was already terminal.",
		}),
		queueAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_alerts_total",
			Help: "Queue-depth threshold breaches dispatched to the alert channel.",
		}),
		failureAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "failure_rate_alerts_total",
			Help: "Failure-rate threshold breaches dispatched to the alert channel.",
		}),
	}
	reg.MustRegister(
		m.queueLength, m.failureRate,
		m.processed, m.succeeded, m.failed, m.skipped,
		m.queueAlerts, m.failureAlerts,
	)
	return m
}

// SetQueueLength records the sampled queue depth.
func (m *Metrics) SetQueueLength(n int64) {
	if m == nil {
		return
	}
	m.queueLength.Set(float64(n))
}

// SetFailureRate records the sampled failure rate.
func (m *Metrics) SetFailureRate(rate float64) {
	if m == nil {
		return
	}
	m.failureRate.Set(rate)
}

// TaskProcessed records one terminal pipeline execution.
func (m *Metrics) TaskProcessed(success bool) {
	if m == nil {
		return
	}
	m.processed.Inc()
	if success {
		m.succeeded.Inc()
	} else {
		m.failed.Inc()
	}
}

// TaskSkipped records an idempotent skip of an already-terminal session.
func (m *Metrics) TaskSkipped() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

// QueueAlert records one dispatched queue-depth alert.
func (m *Metrics) QueueAlert() {
	if m == nil {
		return
	}
	m.queueAlerts.Inc()
}

// FailureAlert records one dispatched failure-rate alert.
func (m *Metrics) FailureAlert() {
	if m == nil {
		return
	}
	m.failureAlerts.Inc()
}

// Router returns the HTTP surface of the exporter: GET /metrics in the
// Prometheus exposition format, plus a trivial liveness probe.
func Router(g prometheus.Gatherer) chi.Router {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
