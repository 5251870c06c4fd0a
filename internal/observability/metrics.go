package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dicerace",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dicerace",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	intents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dicerace",
			Subsystem: "coordinator",
			Name:      "intents_total",
			Help:      "Intents processed by the coordinator loop.",
		},
		[]string{"kind", "result", "reason"},
	)
	intentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dicerace",
			Subsystem: "coordinator",
			Name:      "intent_duration_seconds",
			Help:      "Time spent applying one intent.",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		},
		[]string{"kind"},
	)
	events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dicerace",
			Subsystem: "coordinator",
			Name:      "events_total",
			Help:      "Events emitted by the coordinator.",
		},
		[]string{"kind"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dicerace",
			Subsystem: "coordinator",
			Name:      "sessions_active",
			Help:      "Live sessions in the session table.",
		},
	)
	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dicerace",
			Subsystem: "transport",
			Name:      "connections_active",
			Help:      "Open websocket connections.",
		},
	)
	outboxOverflows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dicerace",
			Subsystem: "transport",
			Name:      "outbox_overflows_total",
			Help:      "Connections closed because their outbox filled up.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			intents,
			intentDuration,
			events,
			activeSessions,
			activeConnections,
			outboxOverflows,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordIntent counts one coordinator intent. reason is empty on success.
func RecordIntent(kind, result, reason string, duration time.Duration) {
	RegisterMetrics()
	intents.WithLabelValues(kind, result, reason).Inc()
	intentDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func RecordEvent(kind string) {
	RegisterMetrics()
	events.WithLabelValues(kind).Inc()
}

func SetActiveSessions(n int) {
	RegisterMetrics()
	activeSessions.Set(float64(n))
}

func SetActiveConnections(n int) {
	RegisterMetrics()
	activeConnections.Set(float64(n))
}

func RecordOutboxOverflow() {
	RegisterMetrics()
	outboxOverflows.Inc()
}
