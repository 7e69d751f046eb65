// Package metrics exposes prometheus instruments for the diagnosis engine
// and the HTTP API. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "apsdiag"

// Metrics groups the instruments registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	batches       *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	samples       prometheus.Counter
	anomalies     *prometheus.CounterVec
	anomalyRate   prometheus.Gauge
	accuracy      *prometheus.GaugeVec
	requests      *prometheus.CounterVec
	sessions      prometheus.Gauge
}

// New registers every instrument on a fresh registry, so independent
// instances (one per test) never collide.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		// status: ok, error
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches analyzed by outcome",
		}, []string{"status"}),
		// stage: sanitize, anomalies, statistics, train, importance
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each analysis stage",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),
		samples: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Samples that survived sanitization",
		}),
		// severity: minor, major, critical
		anomalies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Anomalous samples by severity",
		}, []string{"severity"}),
		anomalyRate: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "anomaly_rate_percent",
			Help:      "Anomaly rate of the most recent batch",
		}),
		accuracy: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_accuracy",
			Help:      "Held-out accuracy of the most recently trained model",
		}, []string{"label_mode"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP API requests by route and status code",
		}, []string{"route", "code"}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Upload sessions held by the server",
		}),
	}
}

// Registry returns the registry the instruments live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStage records how long one engine stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// BatchDone counts a finished batch by outcome.
func (m *Metrics) BatchDone(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.batches.WithLabelValues(status).Inc()
}

// Samples counts cleaned rows.
func (m *Metrics) Samples(n int) {
	if m == nil {
		return
	}
	m.samples.Add(float64(n))
}

// Anomalies records one batch's anomaly tiers and rate.
func (m *Metrics) Anomalies(minor, major, critical int, rate float64) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues("minor").Add(float64(minor))
	m.anomalies.WithLabelValues("major").Add(float64(major))
	m.anomalies.WithLabelValues("critical").Add(float64(critical))
	m.anomalyRate.Set(rate)
}

// Accuracy records the held-out accuracy of the latest model.
func (m *Metrics) Accuracy(labelMode string, v float64) {
	if m == nil {
		return
	}
	m.accuracy.WithLabelValues(labelMode).Set(v)
}

// Request counts one HTTP response by route and status.
func (m *Metrics) Request(route string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// SessionsActive sets the number of live server sessions.
func (m *Metrics) SessionsActive(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
