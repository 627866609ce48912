// Package metrics holds the Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing, so libraries and tests can skip instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studentkit"

type Metrics struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	subscriptions prometheus.Gauge
	shareViews    prometheus.Counter
	deletions     *prometheus.CounterVec
	umsImports    *prometheus.CounterVec
	gatherer      prometheus.Gatherer
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Real-time change listeners currently open.",
		}),
		shareViews: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shared_profile_views_total",
			Help:      "Reads of public shared profiles.",
		}),
		deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_deletions_total",
			Help:      "Account deletions by outcome.",
		}, []string{"outcome"}),
		umsImports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ums_imports_total",
			Help:      "UMS imports by outcome.",
		}, []string{"outcome"}),
		gatherer: reg,
	}
	reg.MustRegister(m.requests, m.latency, m.subscriptions, m.shareViews, m.deletions, m.umsImports)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) SubscriptionOpened() {
	if m != nil {
		m.subscriptions.Inc()
	}
}

func (m *Metrics) SubscriptionClosed() {
	if m != nil {
		m.subscriptions.Dec()
	}
}

func (m *Metrics) ShareViewed() {
	if m != nil {
		m.shareViews.Inc()
	}
}

// AccountDeleted records "done" or "failed".
func (m *Metrics) AccountDeleted(outcome string) {
	if m != nil {
		m.deletions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) UMSImported(outcome string) {
	if m != nil {
		m.umsImports.WithLabelValues(outcome).Inc()
	}
}
