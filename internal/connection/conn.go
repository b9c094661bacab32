package connection

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rickgao/chat-pubsub/internal/metrics"
	"github.com/rickgao/chat-pubsub/internal/protocol"
)

// Connection is one pooled transport together with the topics it owns.
//
// A Connection only tracks state and talks to its Client. Placing topics,
// correlating nonces and reacting to closes is the Manager's job.
type Connection struct {
	id      int
	client  Client
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics

	maxTopics    int
	pingInterval time.Duration
	pongTimeout  time.Duration

	mu           sync.Mutex
	state        State
	subs         []subscription // ordered by listen time
	awaitingPong bool
	pingTimer    *clock.Timer
	pongTimer    *clock.Timer
	done         chan struct{}
}

type subscription struct {
	Subscription
	confirmed bool
}

func newConnection(id int, c Client, cfg ManagerConfig, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Connection {
	return &Connection{
		id:           id,
		client:       c,
		clock:        clk,
		logger:       logger,
		metrics:      m,
		maxTopics:    cfg.MaxTopics,
		pingInterval: cfg.PingInterval,
		pongTimeout:  cfg.PongTimeout,
		done:         make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Connection) ID() int { return c.id }

// State returns the lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the connection is stopped or closed.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Start begins the keepalive cycle: a PING now and every ping interval.
func (c *Connection) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateCreated {
		return
	}
	c.state = StateStarted
	c.pingLocked()
}

// Stop cancels keepalive timers. Later sends are refused.
func (c *Connection) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped || c.state == StateClosed {
		return
	}
	c.state = StateStopped
	c.shutdownLocked()
}

// MarkClosed records that the transport closed and returns the topics the
// connection owned, in listen order. Only the first call returns topics.
func (c *Connection) MarkClosed() []Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return nil
	}
	if c.state != StateStopped {
		c.shutdownLocked()
	}
	c.state = StateClosed

	orphans := make([]Subscription, len(c.subs))
	for i, s := range c.subs {
		orphans[i] = s.Subscription
	}
	c.subs = nil
	return orphans
}

func (c *Connection) shutdownLocked() {
	if c.pingTimer != nil {
		c.pingTimer.Stop()
		c.pingTimer = nil
	}
	if c.pongTimer != nil {
		c.pongTimer.Stop()
		c.pongTimer = nil
	}
	c.awaitingPong = false
	close(c.done)
}

// Listen records topics and sends a LISTEN for them. It returns false,
// and sends nothing, when the topics do not fit or the connection is
// stopped. A failed write is logged; the topics stay recorded so they are
// handed back by MarkClosed.
func (c *Connection) Listen(topics []protocol.Topic, authToken string) (nonce string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped || c.state == StateClosed {
		return "", false
	}
	if len(topics) == 0 || len(c.subs)+len(topics) > c.maxTopics {
		return "", false
	}

	for _, t := range topics {
		c.subs = append(c.subs, subscription{Subscription: Subscription{Topic: t, AuthToken: authToken}})
	}

	req := protocol.NewListen(topics, authToken)
	if err := c.sendLocked(req); err != nil {
		c.logger.Warn("failed to send listen", "topics", len(topics), "error", err)
	} else {
		c.logger.Debug("listen sent", "topics", topics, "nonce", req.Nonce)
	}
	return req.Nonce, true
}

// UnlistenByPrefix forgets every topic starting with prefix and sends one
// UNLISTEN for them. It returns no topics and an empty nonce when nothing
// matched.
func (c *Connection) UnlistenByPrefix(prefix string) (topics []protocol.Topic, nonce string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped || c.state == StateClosed {
		return nil, ""
	}

	kept := c.subs[:0]
	for _, s := range c.subs {
		if s.Topic.HasPrefix(prefix) {
			topics = append(topics, s.Topic)
			continue
		}
		kept = append(kept, s)
	}
	c.subs = kept

	if len(topics) == 0 {
		return nil, ""
	}

	req := protocol.NewUnlisten(topics)
	if err := c.sendLocked(req); err != nil {
		c.logger.Warn("failed to send unlisten", "topics", len(topics), "error", err)
	}
	return topics, req.Nonce
}

// IsListening reports whether the connection owns topic.
func (c *Connection) IsListening(topic protocol.Topic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexLocked(topic) >= 0
}

// IsConfirmed reports whether the server acknowledged the LISTEN for topic.
func (c *Connection) IsConfirmed(topic protocol.Topic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(topic)
	return i >= 0 && c.subs[i].confirmed
}

// Confirm marks topics as acknowledged. Topics no longer owned are skipped.
func (c *Connection) Confirm(topics []protocol.Topic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		if i := c.indexLocked(t); i >= 0 {
			c.subs[i].confirmed = true
		}
	}
}

// Topics returns the owned topics in listen order.
func (c *Connection) Topics() []protocol.Topic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Topic, len(c.subs))
	for i, s := range c.subs {
		out[i] = s.Topic
	}
	return out
}

// Len returns the number of owned topics.
func (c *Connection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Room returns how many more topics fit.
func (c *Connection) Room() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped || c.state == StateClosed {
		return 0
	}
	return c.maxTopics - len(c.subs)
}

// HandlePong clears the outstanding PING.
func (c *Connection) HandlePong() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.awaitingPong {
		c.logger.Debug("spurious pong")
		return
	}
	c.awaitingPong = false
	if c.pongTimer != nil {
		c.pongTimer.Stop()
		c.pongTimer = nil
	}
}

// AwaitingPong reports whether a PING is unanswered.
func (c *Connection) AwaitingPong() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaitingPong
}

func (c *Connection) indexLocked(topic protocol.Topic) int {
	for i, s := range c.subs {
		if s.Topic == topic {
			return i
		}
	}
	return -1
}

func (c *Connection) pingLocked() {
	if c.state != StateStarted {
		return
	}

	if err := c.sendLocked(protocol.NewPing()); err != nil {
		c.logger.Warn("failed to send ping", "error", err)
	}
	c.awaitingPong = true

	if c.pongTimer != nil {
		c.pongTimer.Stop()
	}
	c.pongTimer = c.clock.AfterFunc(c.pongTimeout, c.checkPong)
	c.pingTimer = c.clock.AfterFunc(c.pingInterval, c.ping)
}

func (c *Connection) ping() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingLocked()
}

func (c *Connection) checkPong() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateStarted || !c.awaitingPong {
		return
	}
	c.logger.Warn("no pong received", "timeout", c.pongTimeout)
	c.metrics.PongTimeouts.Inc()
}

func (c *Connection) sendLocked(req protocol.Request) error {
	data, err := req.Encode()
	if err != nil {
		return err
	}
	return c.client.Send(data)
}
