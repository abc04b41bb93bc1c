package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	IngressRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingress_requests_total",
			Help: "Total number of chat messages accepted by the router service (count)",
		},
		[]string{"channel", "status"},
	)

	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifications_total",
			Help: "Total number of classifications by intent and source (count)",
		},
		[]string{"intent", "source"},
	)

	ClassificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classification_duration_ms",
			Help:    "Classification duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"source"},
	)

	RoutingDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_decisions_total",
			Help: "Total number of routing decisions by dispatch target (count)",
		},
		[]string{"target"},
	)

	ConsumerMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consumer_messages_total",
			Help: "Total number of routed messages processed by the consumer service (count)",
		},
		[]string{"queue", "status"},
	)

	ConsumerProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consumer_processing_duration_ms",
			Help:    "Processing duration of routed messages in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"queue", "status"},
	)

	ActionInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "action_invocations_total",
			Help: "Total number of account action invocations (count)",
		},
		[]string{"action", "status"},
	)

	IdempotentReplaysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idempotent_replays_total",
			Help: "Total number of redelivered messages answered from the idempotency store (count)",
		},
	)

	ClaimWaitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idempotency_claim_waits_total",
			Help: "Total number of deliveries that waited on a claim held by another worker (count)",
		},
	)

	ResponsesDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responses_delivered_total",
			Help: "Total number of responses delivered to sinks (count)",
		},
		[]string{"sink", "status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "queue"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to the dead letter queue (count)",
		},
		[]string{"service", "queue", "reason"},
	)

	DeadLettersReplayedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dead_letters_replayed_total",
			Help: "Total number of archived dead letters replayed (count)",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy", "reason"},
	)

	BrokerMessagesPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_messages_published_total",
			Help: "Total number of messages published to the broker (count)",
		},
		[]string{"service", "destination"},
	)

	BrokerMessagesConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_messages_consumed_total",
			Help: "Total number of messages consumed from the broker (count)",
		},
		[]string{"service", "queue"},
	)

	BrokerMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "broker_message_size_bytes",
			Help:    "Size of broker messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "destination", "direction"},
	)

	BrokerPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "broker_publish_duration_ms",
			Help:    "Duration of publishing messages to the broker in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "destination"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

var (
	routerOnce   sync.Once
	consumerOnce sync.Once
	brokerOnce   sync.Once
	breakerOnce  sync.Once
	adminOnce    sync.Once
	fallbackOnce sync.Once
)

func RegisterRouterMetrics() {
	routerOnce.Do(func() {
		prometheus.MustRegister(IngressRequestsTotal)
		prometheus.MustRegister(ClassificationsTotal)
		prometheus.MustRegister(ClassificationDuration)
		prometheus.MustRegister(RoutingDecisionsTotal)
		prometheus.MustRegister(RateLimitRequestsTotal)
		prometheus.MustRegister(ActionInvocationsTotal)
	})
}

func RegisterConsumerMetrics() {
	consumerOnce.Do(func() {
		prometheus.MustRegister(ConsumerMessagesTotal)
		prometheus.MustRegister(ConsumerProcessingDuration)
		prometheus.MustRegister(IdempotentReplaysTotal)
		prometheus.MustRegister(ClaimWaitsTotal)
		prometheus.MustRegister(ResponsesDeliveredTotal)
	})
	registerFallbackUsageTotalOnce()
}

func registerFallbackUsageTotalOnce() {
	fallbackOnce.Do(func() {
		prometheus.MustRegister(FallbackUsageTotal)
	})
}

func RegisterBrokerMetrics() {
	brokerOnce.Do(func() {
		prometheus.MustRegister(RetryAttemptsTotal)
		prometheus.MustRegister(DLQMessagesTotal)
		prometheus.MustRegister(BrokerMessagesPublishedTotal)
		prometheus.MustRegister(BrokerMessagesConsumedTotal)
		prometheus.MustRegister(BrokerMessageSizeBytes)
		prometheus.MustRegister(BrokerPublishDuration)
	})
}

func RegisterCircuitBreakerMetrics() {
	breakerOnce.Do(func() {
		prometheus.MustRegister(CircuitBreakerState)
		prometheus.MustRegister(CircuitBreakerRequests)
		prometheus.MustRegister(CircuitBreakerFailures)
	})
}

func RegisterAdminMetrics() {
	adminOnce.Do(func() {
		prometheus.MustRegister(DeadLettersReplayedTotal)
		prometheus.MustRegister(DatabaseQueriesTotal)
		prometheus.MustRegister(DatabaseQueryDuration)
	})
}

func IncIngressRequest(channel, status string) {
	IngressRequestsTotal.WithLabelValues(channel, status).Inc()
}

func IncClassification(intent, source string) {
	ClassificationsTotal.WithLabelValues(intent, source).Inc()
}

func ObserveClassificationDuration(source string, duration time.Duration) {
	ClassificationDuration.WithLabelValues(source).Observe(float64(duration.Milliseconds()))
}

func IncRoutingDecision(target string) {
	RoutingDecisionsTotal.WithLabelValues(target).Inc()
}

func IncConsumerMessage(queue, status string) {
	ConsumerMessagesTotal.WithLabelValues(queue, status).Inc()
}

func ObserveConsumerDuration(queue, status string, duration time.Duration) {
	ConsumerProcessingDuration.WithLabelValues(queue, status).Observe(float64(duration.Milliseconds()))
}

func IncActionInvocation(action, status string) {
	ActionInvocationsTotal.WithLabelValues(action, status).Inc()
}

func IncResponseDelivered(sink, status string) {
	ResponsesDeliveredTotal.WithLabelValues(sink, status).Inc()
}

func IncBrokerPublished(service, destination string) {
	BrokerMessagesPublishedTotal.WithLabelValues(service, destination).Inc()
}

func IncBrokerConsumed(service, queue string) {
	BrokerMessagesConsumedTotal.WithLabelValues(service, queue).Inc()
}

func ObserveBrokerMessageSize(service, destination, direction string, sizeBytes int) {
	BrokerMessageSizeBytes.WithLabelValues(service, destination, direction).Observe(float64(sizeBytes))
}

func ObserveBrokerPublishDuration(service, destination string, duration time.Duration) {
	BrokerPublishDuration.WithLabelValues(service, destination).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
