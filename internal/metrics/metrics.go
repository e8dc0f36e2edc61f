// internal/metrics/metrics.go
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the realtime collectors. A nil *Metrics records nothing,
// so components can be built without instrumentation in tests.
type Metrics struct {
	connections      prometheus.Gauge
	messages         *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	broadcasts       *prometheus.CounterVec
	deliveries       prometheus.Counter
	httpRequests     *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leaven_ws_connections",
			Help: "Live websocket connections on this instance",
		}),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaven_ws_messages_total",
				Help: "Inbound websocket messages by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leaven_ws_dispatch_duration_seconds",
				Help:    "Time spent dispatching one inbound message",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		broadcasts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaven_ws_broadcasts_total",
				Help: "Topic broadcasts by outcome",
			},
			[]string{"outcome"},
		),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leaven_ws_deliveries_total",
			Help: "Broadcast frames written to local connections",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaven_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
	}
}

// Register adds every collector to r.
func (m *Metrics) Register(r prometheus.Registerer) {
	r.MustRegister(m.connections, m.messages, m.dispatchDuration, m.broadcasts, m.deliveries, m.httpRequests)
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// ObserveMessage records one dispatch. messageType must be a registered
// type or "unknown" to keep label cardinality bounded.
func (m *Metrics) ObserveMessage(messageType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(messageType, outcome).Inc()
	m.dispatchDuration.WithLabelValues(messageType).Observe(d.Seconds())
}

func (m *Metrics) RecordBroadcast(outcome string) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordDeliveries(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.deliveries.Add(float64(n))
}

func (m *Metrics) ObserveHTTP(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
