package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hassctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served by the local metrics endpoint.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hassctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	sessionFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hassctl",
			Subsystem: "session",
			Name:      "frames_total",
			Help:      "Frames moved over the websocket, by direction and kind.",
		},
		[]string{"direction", "kind"},
	)
	sessionDecodeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hassctl",
			Subsystem: "session",
			Name:      "decode_errors_total",
			Help:      "Inbound frames dropped because they could not be decoded.",
		},
	)
	sessionOrphanReplies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hassctl",
			Subsystem: "session",
			Name:      "orphan_replies_total",
			Help:      "Replies that matched no pending request.",
		},
	)
	sessionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hassctl",
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Push events by routing outcome.",
		},
		[]string{"outcome"},
	)
	sessionPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hassctl",
			Subsystem: "session",
			Name:      "pending_requests",
			Help:      "Requests awaiting a reply.",
		},
	)
	sessionSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hassctl",
			Subsystem: "session",
			Name:      "active_subscriptions",
			Help:      "Subscriptions currently routed to a consumer.",
		},
	)
	sessionRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hassctl",
			Subsystem: "session",
			Name:      "request_duration_seconds",
			Help:      "Round trip of correlated commands in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"verb", "outcome"},
	)
)

// Event routing outcomes.
const (
	EventDelivered = "delivered"
	EventUnrouted  = "unrouted"
	EventPruned    = "pruned"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			sessionFrames,
			sessionDecodeErrors,
			sessionOrphanReplies,
			sessionEvents,
			sessionPending,
			sessionSubscriptions,
			sessionRequestDuration,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordFrame(direction, kind string) {
	RegisterMetrics()
	sessionFrames.WithLabelValues(direction, kind).Inc()
}

func RecordDecodeError() {
	RegisterMetrics()
	sessionDecodeErrors.Inc()
}

func RecordOrphanReply() {
	RegisterMetrics()
	sessionOrphanReplies.Inc()
}

func RecordEvent(outcome string) {
	RegisterMetrics()
	sessionEvents.WithLabelValues(outcome).Inc()
}

// AddPending and AddSubscriptions take deltas so several sessions in one
// process can share the gauges.
func AddPending(delta int) {
	RegisterMetrics()
	sessionPending.Add(float64(delta))
}

func AddSubscriptions(delta int) {
	RegisterMetrics()
	sessionSubscriptions.Add(float64(delta))
}

func RecordRequest(verb string, success bool, duration time.Duration) {
	RegisterMetrics()
	outcome := "error"
	if success {
		outcome = "success"
	}
	sessionRequestDuration.WithLabelValues(verb, outcome).Observe(duration.Seconds())
}
