package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JetNetRequestsTotal tracks outbound data calls to JetNet.
	JetNetRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jetnet_api_requests_total",
			Help: "Total number of JetNet API requests made (by endpoint, method, and status).",
		},
		[]string{"endpoint", "method", "status"},
	)

	// JetNetRequestDuration measures outbound JetNet call latency.
	JetNetRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jetnet_api_request_duration_seconds",
			Help:    "Duration of JetNet API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 17), // 1ms → ~65s
		},
		[]string{"endpoint", "method"},
	)

	// LoginsTotal counts APILogin calls by result.
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jetnet_logins_total",
			Help: "Number of JetNet APILogin calls by result.",
		},
		[]string{"result"},
	)

	// TokenCacheTotal counts session cache lookups (hit, miss, expired, error).
	TokenCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jetnet_token_cache_total",
			Help: "JetNet session cache lookups by result.",
		},
		[]string{"result"},
	)

	// ReauthRetriesTotal counts 401-triggered retries by final result.
	ReauthRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jetnet_reauth_retries_total",
			Help: "Requests retried after a 401, by outcome of the retry.",
		},
		[]string{"result"},
	)

	// OperationsTotal counts dispatched catalog operations.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jetnet_operations_total",
			Help: "Dispatched JetNet operations by resource, operation and result.",
		},
		[]string{"resource", "operation", "result"},
	)

	// QueueMessagesTotal tracks messages handled or published per subject/queue.
	QueueMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Queue messages by subject and status.",
		},
		[]string{"subject", "status"},
	)

	// QueuePublishLatency measures publish latency per subject.
	QueuePublishLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_publish_latency_seconds",
			Help:    "Latency of queue publishes in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// ErrorsTotal counts adapter errors by component and kind.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_errors_total",
			Help: "Adapter errors by component and kind.",
		},
		[]string{"component", "kind"},
	)
)

// IncJetNetRequest increments the JetNet API request counter.
func IncJetNetRequest(endpoint, method, status string) {
	JetNetRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

func IncLogin(result string) {
	LoginsTotal.WithLabelValues(result).Inc()
}

func IncTokenCache(result string) {
	TokenCacheTotal.WithLabelValues(result).Inc()
}

func IncReauthRetry(result string) {
	ReauthRetriesTotal.WithLabelValues(result).Inc()
}

func IncOperation(resource, operation, result string) {
	OperationsTotal.WithLabelValues(resource, operation, result).Inc()
}

func IncQueueMessage(subject, status string) {
	QueueMessagesTotal.WithLabelValues(subject, status).Inc()
}

func IncError(component, kind string) {
	ErrorsTotal.WithLabelValues(component, kind).Inc()
}

// PublishHook records publisher outcomes; it matches publisher.Hook.
func PublishHook(subject, status string, elapsed time.Duration) {
	QueuePublishLatency.WithLabelValues(subject).Observe(elapsed.Seconds())
	IncQueueMessage(subject, status)
}

// ObserveDuration records elapsed time since start into a HistogramVec or SummaryVec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()
	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}
