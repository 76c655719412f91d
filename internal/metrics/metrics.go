// Package metrics defines the Prometheus collectors for the realtime layer.
//
// Delivery is fire-and-forget by contract, so these counters are the only
// place drop rates become observable. Exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection registry metrics
var (
	// ConnectedClients tracks total live connections on this instance
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connected_clients",
			Help: "Current number of live client connections on this instance",
		},
	)

	// ConnectedUsers tracks distinct users with at least one connection
	ConnectedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connected_users",
			Help: "Distinct users with at least one live connection",
		},
	)

	// ConnectedProviders tracks distinct providers with at least one connection
	ConnectedProviders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connected_providers",
			Help: "Distinct providers with at least one live connection",
		},
	)
)

// Delivery metrics
var (
	// DeliveriesTotal counts frames written to clients by event name
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_deliveries_total",
			Help: "Frames delivered to local connections by event",
		},
		[]string{"event"},
	)

	// DeliveryFailures counts local delivery failures by reason
	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_delivery_failures_total",
			Help: "Local delivery failures by reason (marshal/write)",
		},
		[]string{"reason"},
	)

	// SlowClientsEvicted counts clients dropped because their buffer was full
	SlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_slow_clients_evicted_total",
			Help: "Clients evicted because their send buffer was full",
		},
	)
)

// Bus metrics
var (
	// BusPublishFailures counts failed cross-instance publishes
	BusPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_bus_publish_failures_total",
			Help: "Failed bus publishes (delivery degraded to local-only)",
		},
	)

	// BusMessagesReceived counts envelopes accepted from the bus
	BusMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_bus_messages_received_total",
			Help: "Envelopes received from the bus and delivered locally",
		},
	)

	// BusMessagesDropped counts malformed bus messages discarded
	BusMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_bus_messages_dropped_total",
			Help: "Bus messages dropped due to bad topic or malformed envelope",
		},
	)
)

// WebSocket endpoint metrics
var (
	// WebSocketConnectionsTotal tracks connection attempts by result
	WebSocketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_websocket_connections_total",
			Help: "WebSocket connection attempts by result (success/error/rejected)",
		},
		[]string{"result"},
	)

	// WebSocketConnectionsRejected tracks rejected attempts by reason
	WebSocketConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_websocket_connections_rejected_total",
			Help: "WebSocket connections rejected by reason (rate_limit/per_ip_limit/global_limit)",
		},
		[]string{"reason"},
	)

	// WebSocketUniqueIPs tracks unique IPs with active connections
	WebSocketUniqueIPs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_websocket_unique_ips",
			Help: "Number of unique IP addresses with active WebSocket connections",
		},
	)
)

// Redis metrics
var (
	// RedisOpsTotal tracks Redis operations by command and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks Redis connection errors
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
	)
)
