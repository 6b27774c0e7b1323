// Package metrics declares the Prometheus collectors exported at /metrics.
// Collectors register with the default registry on package init via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chatterbox"

// ActiveConnections is the number of registered transport connections.
var ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "active_connections",
	Help:      "Number of live connections held by the registry.",
})

// OnlineUsers is the number of usernames with at least one live connection.
var OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "online_users",
	Help:      "Number of usernames with at least one live connection.",
})

// MessagesTotal counts accepted messages.
// Label kind: "public", "private" or "system".
var MessagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Messages persisted and fanned out, by kind.",
	},
	[]string{"kind"},
)

// DroppedDeliveries counts events discarded because a connection's send queue was full.
var DroppedDeliveries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "dropped_deliveries_total",
	Help:      "Events dropped for slow consumers.",
})

// StoreErrors counts failed or timed-out store calls.
// Label op: the store operation, e.g. "upsert_online".
var StoreErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_errors_total",
		Help:      "Identity store calls that failed or timed out, by operation.",
	},
	[]string{"op"},
)

// PresenceTransitions counts published online/offline changes.
// Label state: "online" or "offline".
var PresenceTransitions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "presence_transitions_total",
		Help:      "Presence changes broadcast to clients, by resulting state.",
	},
	[]string{"state"},
)

// TypingExpiries counts typing indicators cleared by the server-side timer.
var TypingExpiries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "typing_expiries_total",
	Help:      "Typing indicators cleared because the typer went quiet.",
})

// RelayEvents counts messages exchanged with other nodes.
// Label direction: "published" or "received".
var RelayEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_events_total",
		Help:      "Messages relayed through Redis, by direction.",
	},
	[]string{"direction"},
)

// HTTPRequestDuration observes REST request latency.
// Labels: method, route (the gin route pattern), status.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Latency of HTTP requests served by the API.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)
