package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chat_pubsub"

// Response results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds every collector exported by the client.
type Metrics struct {
	ConnectionsOpened prometheus.Counter
	ConnectionsClosed prometheus.Counter
	ConnectionsFailed prometheus.Counter
	LiveConnections   prometheus.Gauge
	PendingTopics     prometheus.Gauge
	ListenedTopics    prometheus.Gauge

	MessagesReceived      prometheus.Counter
	MessagesFailedToParse prometheus.Counter
	ListenResponses       *prometheus.CounterVec // by result
	UnlistenResponses     *prometheus.CounterVec // by result
	PongTimeouts          prometheus.Counter

	ActionsDispatched *prometheus.CounterVec // by category, kind
	ActionsDropped    *prometheus.CounterVec // by category, reason

	ArchiveRowsWritten prometheus.Counter
	ArchiveFlushErrors prometheus.Counter
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "connections_opened_total",
			Help: "Connections whose transport opened.",
		}),
		ConnectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "connections_closed_total",
			Help: "Connections whose transport closed.",
		}),
		ConnectionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "connections_failed_total",
			Help: "Connection attempts that failed before opening.",
		}),
		LiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool", Name: "live_connections",
			Help: "Currently open connections.",
		}),
		PendingTopics: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool", Name: "pending_topics",
			Help: "Topics waiting for a connection with room.",
		}),
		ListenedTopics: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool", Name: "listened_topics",
			Help: "Topics owned by live connections.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "frames", Name: "received_total",
			Help: "Frames read from all connections.",
		}),
		MessagesFailedToParse: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "frames", Name: "parse_failures_total",
			Help: "Frames that could not be decoded.",
		}),
		ListenResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "frames", Name: "listen_responses_total",
			Help: "RESPONSE frames answering LISTEN requests.",
		}, []string{"result"}),
		UnlistenResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "frames", Name: "unlisten_responses_total",
			Help: "RESPONSE frames answering UNLISTEN requests.",
		}, []string{"result"}),
		PongTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "frames", Name: "pong_timeouts_total",
			Help: "PINGs that went unanswered within the pong timeout.",
		}),
		ActionsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "router", Name: "actions_dispatched_total",
			Help: "Actions delivered to sinks.",
		}, []string{"category", "kind"}),
		ActionsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "router", Name: "actions_dropped_total",
			Help: "Messages that produced no action.",
		}, []string{"category", "reason"}),
		ArchiveRowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "archive", Name: "rows_written_total",
			Help: "Action rows copied into the archive.",
		}),
		ArchiveFlushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "archive", Name: "flush_errors_total",
			Help: "Archive batches that failed to write.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.collectors()...)
	}
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ConnectionsOpened,
		m.ConnectionsClosed,
		m.ConnectionsFailed,
		m.LiveConnections,
		m.PendingTopics,
		m.ListenedTopics,
		m.MessagesReceived,
		m.MessagesFailedToParse,
		m.ListenResponses,
		m.UnlistenResponses,
		m.PongTimeouts,
		m.ActionsDispatched,
		m.ActionsDropped,
		m.ArchiveRowsWritten,
		m.ArchiveFlushErrors,
	}
}

// Result maps a failure flag to the result label.
func Result(failed bool) string {
	if failed {
		return ResultError
	}
	return ResultOK
}
