package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qaforum_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qaforum_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of open websocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qaforum_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketGroupSubscriptions is the gauge of subscriptions per group kind
	// (question, user, all).
	WebSocketGroupSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "qaforum_websocket_group_subscriptions",
		Help: "Number of active group subscriptions by group kind",
	}, []string{"kind"})

	// WebSocketBackpressureDrops counts frames dropped because a client buffer was full or closed.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qaforum_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// BroadcastEventsTotal counts events accepted by the broadcaster.
	BroadcastEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qaforum_broadcast_events_total",
		Help: "Total number of broadcast events published by event name",
	}, []string{"event"})

	// BroadcastDropsTotal counts events the broadcaster discarded.
	BroadcastDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qaforum_broadcast_drops_total",
		Help: "Total number of broadcast events dropped by reason",
	}, []string{"reason"})

	// ModerationTransitionsTotal counts report status changes.
	ModerationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qaforum_moderation_transitions_total",
		Help: "Total number of report status transitions",
	}, []string{"from", "to"})

	// VotesCastTotal counts vote submissions by target kind and resulting value.
	VotesCastTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qaforum_votes_cast_total",
		Help: "Total number of votes cast by target kind and stored value",
	}, []string{"target", "value"})

	// EmailDeliveryFailures counts outbound email failures by provider.
	EmailDeliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qaforum_email_delivery_failures_total",
		Help: "Total number of failed outbound emails by provider",
	}, []string{"provider"})

	// RateLimitRejections counts requests refused by a named rate limit rule.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qaforum_rate_limit_rejections_total",
		Help: "Total number of requests rejected by rate limit rule",
	}, []string{"rule"})

	// AssistantRequestsTotal counts study assistant calls by outcome.
	AssistantRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qaforum_assistant_requests_total",
		Help: "Total number of study assistant requests by outcome",
	}, []string{"outcome"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
