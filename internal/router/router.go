package router

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/chat-pubsub/internal/action"
	"github.com/rickgao/chat-pubsub/internal/metrics"
	"github.com/rickgao/chat-pubsub/internal/protocol"
)

// Router decodes MESSAGE payloads and fans the resulting actions out to
// the sinks registered for their category.
type Router interface {
	// Register adds a sink for category. Sinks run in registration order.
	Register(category Category, sink Sink)

	// Dispatch decodes msg and delivers the action. Decode failures are
	// logged and counted, never returned.
	Dispatch(msg *protocol.Message, receivedAt time.Time)

	// Stats returns current router statistics.
	Stats() RouterStats
}

// router is the internal implementation.
type router struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	sinks map[Category][]Sink

	received       atomic.Int64
	routed         atomic.Int64
	decodeErrors   atomic.Int64
	ignored        atomic.Int64
	unknownActions atomic.Int64
	unknownTopics  atomic.Int64
	unhandled      atomic.Int64
}

// NewRouter creates a new Message Router. A nil m records into
// unregistered collectors.
func NewRouter(m *metrics.Metrics, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}

	return &router{
		logger:  logger,
		metrics: m,
		sinks:   make(map[Category][]Sink),
	}
}

// Register adds a sink.
func (r *router) Register(category Category, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[category] = append(r.sinks[category], sink)
}

// Dispatch decodes and delivers a single message.
func (r *router) Dispatch(msg *protocol.Message, receivedAt time.Time) {
	r.received.Add(1)

	rt, ok := lookup(msg.Topic)
	if !ok {
		r.unknownTopics.Add(1)
		r.logger.Warn("message on unknown topic", "topic", msg.Topic)
		return
	}
	category := string(rt.category)

	act, err := rt.decode(msg.Topic, msg.Payload, receivedAt)
	switch {
	case errors.Is(err, action.ErrIgnored):
		r.ignored.Add(1)
		r.metrics.ActionsDropped.WithLabelValues(category, "ignored").Inc()
		return

	case err != nil:
		r.decodeErrors.Add(1)
		r.metrics.ActionsDropped.WithLabelValues(category, "decode_error").Inc()
		r.logger.Warn("failed to decode payload",
			"topic", msg.Topic,
			"error", err,
		)
		return
	}

	if unknown, ok := act.(action.UnknownAction); ok {
		r.unknownActions.Add(1)
		r.metrics.ActionsDropped.WithLabelValues(category, "unknown_action").Inc()
		r.logger.Info("unknown action", "topic", msg.Topic, "name", unknown.Name)
		return
	}

	r.mu.RLock()
	sinks := r.sinks[rt.category]
	r.mu.RUnlock()

	if len(sinks) == 0 {
		r.unhandled.Add(1)
		r.metrics.ActionsDropped.WithLabelValues(category, "no_sink").Inc()
		return
	}

	event := Event{Category: rt.category, Topic: msg.Topic, Action: act}
	for _, sink := range sinks {
		sink.Handle(event)
	}

	r.routed.Add(1)
	r.metrics.ActionsDispatched.WithLabelValues(category, act.Kind()).Inc()
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	return RouterStats{
		MessagesReceived: r.received.Load(),
		ActionsRouted:    r.routed.Load(),
		DecodeErrors:     r.decodeErrors.Load(),
		Ignored:          r.ignored.Load(),
		UnknownActions:   r.unknownActions.Load(),
		UnknownTopics:    r.unknownTopics.Load(),
		Unhandled:        r.unhandled.Load(),
	}
}

// CategoryOf returns the category a topic is routed to.
func CategoryOf(topic protocol.Topic) (Category, bool) {
	rt, ok := lookup(topic)
	return rt.category, ok
}

func lookup(topic protocol.Topic) (route, bool) {
	for _, rt := range routes {
		if topic.HasPrefix(rt.prefix) {
			return rt, true
		}
	}
	return route{}, false
}
