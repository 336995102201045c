// Package metrics holds the Prometheus instruments for remote API calls,
// list views and the web server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Remote call results.
const (
	ResultOK               = "ok"
	ResultAppFailure       = "app_failure"
	ResultTransportFailure = "transport_failure"
	ResultCanceled         = "canceled"
)

// Metrics is a set of instruments registered on one registry.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	remoteRequests *prometheus.CounterVec
	remoteLatency  *prometheus.HistogramVec
	openViews      prometheus.Gauge
	circuitState   prometheus.Gauge
	httpRequests   *prometheus.CounterVec
}

// New registers the unitdesk instruments and the Go/process collectors on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		remoteRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unitdesk",
			Subsystem: "remote",
			Name:      "requests_total",
			Help:      "Remote unit API calls broken down by operation and result.",
		}, []string{"op", "result"}),
		remoteLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "unitdesk",
			Subsystem: "remote",
			Name:      "request_duration_seconds",
			Help:      "Latency of remote unit API calls.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		openViews: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "unitdesk",
			Name:      "open_views",
			Help:      "List views currently held in memory.",
		}),
		circuitState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "unitdesk",
			Subsystem: "remote",
			Name:      "circuit_state",
			Help:      "Remote API circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unitdesk",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Web UI requests broken down by method and status class.",
		}, []string{"method", "class"}),
	}
}

// Registry returns the registry the instruments live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRemote records one remote API call.
func (m *Metrics) ObserveRemote(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.remoteRequests.WithLabelValues(op, result).Inc()
	m.remoteLatency.WithLabelValues(op).Observe(d.Seconds())
}

// ViewOpened and ViewClosed track the open view gauge.
func (m *Metrics) ViewOpened() {
	if m != nil {
		m.openViews.Inc()
	}
}

func (m *Metrics) ViewClosed() {
	if m != nil {
		m.openViews.Dec()
	}
}

// SetCircuitState records the breaker state as a number.
func (m *Metrics) SetCircuitState(state int) {
	if m != nil {
		m.circuitState.Set(float64(state))
	}
}

// ObserveHTTP records one served web request.
func (m *Metrics) ObserveHTTP(method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status/100)+"xx").Inc()
}
