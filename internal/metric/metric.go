package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call outcomes.
const (
	OutcomeFailed    = "failed"
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeEnded     = "ended"
	OutcomeNoAnswer  = "no_answer"
	OutcomeMedia     = "media_failed"
	OutcomeAbandoned = "abandoned"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peercall_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peercall_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "peercall_ws_active_connections",
			Help: "Open signaling WebSocket connections",
		},
	)

	wsDroppedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "peercall_ws_dropped_frames_total",
			Help: "Outbound frames dropped because a send buffer was full",
		},
	)

	callsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "peercall_calls_started_total",
			Help: "Calls that entered the pending state",
		},
	)

	callOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peercall_call_outcomes_total",
			Help: "Finished or failed call attempts by outcome",
		},
		[]string{"outcome"},
	)

	onlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "peercall_online_users",
			Help: "Distinct logical users online",
		},
	)
)

func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func IncrementWSActiveConnections() { wsActiveConnections.Inc() }
func DecrementWSActiveConnections() { wsActiveConnections.Dec() }
func IncrementDroppedFrames()       { wsDroppedFrames.Inc() }

func CallStarted() { callsStarted.Inc() }

func CallOutcome(outcome string) { callOutcomes.WithLabelValues(outcome).Inc() }

func SetOnlineUsers(n int) { onlineUsers.Set(float64(n)) }
