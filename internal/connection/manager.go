package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rickgao/chat-pubsub/internal/auth"
	"github.com/rickgao/chat-pubsub/internal/backoff"
	"github.com/rickgao/chat-pubsub/internal/metrics"
	"github.com/rickgao/chat-pubsub/internal/protocol"
)

// Dispatcher receives every MESSAGE frame. It is called from the
// connection's pump goroutine without any manager lock held.
type Dispatcher interface {
	Dispatch(msg *protocol.Message, receivedAt time.Time)
}

// Manager orchestrates the connection pool and topic subscriptions.
type Manager interface {
	// Start enables dialing. Topics requested before Start are dialed for now.
	Start(ctx context.Context) error

	// Stop closes every connection and cancels all timers.
	Stop(ctx context.Context) error

	// ListenToTopic subscribes to topic on any connection with room,
	// opening a new connection when none has.
	ListenToTopic(topic protocol.Topic, authToken string)

	ListenToWhispers() error
	ListenToChannelModerationActions(channelID string) error
	ListenToAutomodQueue(channelID string) error
	ListenToChannelPointRewards(channelID string)

	// UnlistenAllByPrefix drops every listened or pending topic with prefix.
	UnlistenAllByPrefix(prefix string)

	UnlistenWhispers()
	UnlistenAllModerationActions()
	UnlistenAutomodQueue()
	UnlistenChannelPointRewards()

	// IsListeningToTopic reports whether a live connection owns topic.
	IsListeningToTopic(topic protocol.Topic) bool

	// Stats returns current connection and subscription statistics.
	Stats() ManagerStats
}

// Option configures a manager.
type Option func(*manager)

// WithClock sets the clock used for keepalive and reconnect timers.
func WithClock(clk clock.Clock) Option {
	return func(m *manager) {
		m.clock = clk
	}
}

// WithMetrics sets the collectors the manager reports to.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *manager) {
		m.metrics = mt
	}
}

// WithClientFactory overrides how transports are created.
func WithClientFactory(f ClientFactory) Option {
	return func(m *manager) {
		m.newClient = f
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *manager) {
		m.logger = logger
	}
}

type nonceInfo struct {
	connID int
	typ    string // protocol.TypeListen or protocol.TypeUnlisten
	topics []protocol.Topic
}

// manager implements the Manager interface.
type manager struct {
	cfg        ManagerConfig
	creds      auth.Provider
	dispatcher Dispatcher
	clock      clock.Clock
	metrics    *metrics.Metrics
	newClient  ClientFactory
	logger     *slog.Logger
	backoff    *backoff.Policy

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	started        bool
	stopping       bool
	nextID         int
	conns          []*Connection // live, in open order
	pending        []Subscription
	nonces         map[string]nonceInfo
	adding         bool
	reconnectTimer *clock.Timer

	connectionsOpened     atomic.Int64
	connectionsClosed     atomic.Int64
	connectionsFailed     atomic.Int64
	messagesReceived      atomic.Int64
	messagesFailedToParse atomic.Int64
	listenResponses       atomic.Int64
	failedListenResponses atomic.Int64
	unlistenResponses     atomic.Int64
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, creds auth.Provider, dispatcher Dispatcher, opts ...Option) Manager {
	m := &manager{
		cfg:        cfg.withDefaults(),
		creds:      creds,
		dispatcher: dispatcher,
		nonces:     make(map[string]nonceInfo),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.clock == nil {
		m.clock = clock.New()
	}
	if m.metrics == nil {
		m.metrics = metrics.New(nil)
	}
	if m.newClient == nil {
		clientCfg := m.cfg.Client
		logger := m.logger
		m.newClient = func(id int) Client {
			return NewClient(clientCfg, logger.With("conn_id", id))
		}
	}
	m.backoff = backoff.New(m.cfg.ReconnectBase, m.cfg.ReconnectMaxSteps)

	return m
}

// Start enables the manager.
func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopping {
		return ErrStopped
	}
	if m.started {
		return nil
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)

	if len(m.pending) > 0 {
		m.addConnectionLocked()
	}

	m.logger.Info("connection manager started",
		"max_topics", m.cfg.MaxTopics,
		"pending", len(m.pending),
	)
	return nil
}

// Stop gracefully shuts down.
func (m *manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	m.stopping = true
	if m.cancel != nil {
		m.cancel()
	}
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	conns := m.conns
	m.conns = nil
	m.nonces = make(map[string]nonceInfo)
	m.metrics.LiveConnections.Set(0)
	m.metrics.ListenedTopics.Set(0)
	m.mu.Unlock()

	for _, conn := range conns {
		conn.Stop()
		conn.client.Close()
	}

	// Wait for pumps and in-flight dials with timeout
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, forcing close")
	}

	m.logger.Info("connection manager stopped", "connections", len(conns))
	return nil
}

// ListenToTopic subscribes to topic.
func (m *manager) ListenToTopic(topic protocol.Topic, authToken string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopping {
		m.logger.Debug("listen after stop ignored", "topic", topic)
		return
	}
	if m.ownedLocked(topic) || m.pendingLocked(topic) {
		return
	}

	if m.placeLocked(Subscription{Topic: topic, AuthToken: authToken}) {
		return
	}

	m.logger.Debug("no connection with room, queueing", "topic", topic)
	m.pending = append(m.pending, Subscription{Topic: topic, AuthToken: authToken})
	m.metrics.PendingTopics.Set(float64(len(m.pending)))
	m.addConnectionLocked()
}

// ListenToWhispers listens to the authenticated user's whispers.
func (m *manager) ListenToWhispers() error {
	creds, err := m.credentials()
	if err != nil {
		return err
	}
	m.ListenToTopic(protocol.WhispersTopic(creds.UserID), creds.AuthToken)
	return nil
}

// ListenToChannelModerationActions listens to moderation actions in a channel.
func (m *manager) ListenToChannelModerationActions(channelID string) error {
	creds, err := m.credentials()
	if err != nil {
		return err
	}
	m.ListenToTopic(protocol.ModeratorActionsTopic(creds.UserID, channelID), creds.AuthToken)
	return nil
}

// ListenToAutomodQueue listens to messages held by automod in a channel.
func (m *manager) ListenToAutomodQueue(channelID string) error {
	creds, err := m.credentials()
	if err != nil {
		return err
	}
	m.ListenToTopic(protocol.AutomodQueueTopic(creds.UserID, channelID), creds.AuthToken)
	return nil
}

// ListenToChannelPointRewards listens to reward redemptions. The topic is
// public, so it is requested without a token.
func (m *manager) ListenToChannelPointRewards(channelID string) {
	m.ListenToTopic(protocol.ChannelPointsTopic(channelID), "")
}

func (m *manager) credentials() (auth.Credentials, error) {
	if m.creds == nil {
		return auth.Credentials{}, ErrNoCredentials
	}
	creds := m.creds.Credentials()
	if !creds.Valid() {
		m.logger.Warn("listen skipped, account is not logged in")
		return auth.Credentials{}, ErrNoCredentials
	}
	return creds, nil
}

// UnlistenAllByPrefix drops every topic with prefix.
func (m *manager) UnlistenAllByPrefix(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.pending[:0]
	for _, s := range m.pending {
		if !s.Topic.HasPrefix(prefix) {
			kept = append(kept, s)
		}
	}
	m.pending = kept
	m.metrics.PendingTopics.Set(float64(len(m.pending)))

	for _, conn := range m.conns {
		topics, nonce := conn.UnlistenByPrefix(prefix)
		if nonce == "" {
			continue
		}
		m.nonces[nonce] = nonceInfo{connID: conn.id, typ: protocol.TypeUnlisten, topics: topics}
		m.logger.Debug("unlisten sent", "conn", conn.id, "topics", topics, "nonce", nonce)
	}
	m.updateTopicGaugeLocked()
}

func (m *manager) UnlistenWhispers() {
	m.UnlistenAllByPrefix(protocol.PrefixWhispers)
}

func (m *manager) UnlistenAllModerationActions() {
	m.UnlistenAllByPrefix(protocol.PrefixModeratorActions)
}

func (m *manager) UnlistenAutomodQueue() {
	m.UnlistenAllByPrefix(protocol.PrefixAutomodQueue)
}

func (m *manager) UnlistenChannelPointRewards() {
	m.UnlistenAllByPrefix(protocol.PrefixChannelPoints)
}

// IsListeningToTopic reports whether a live connection owns topic.
func (m *manager) IsListeningToTopic(topic protocol.Topic) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownedLocked(topic)
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	live := len(m.conns)
	topics := 0
	for _, conn := range m.conns {
		topics += conn.Len()
	}
	pending := len(m.pending)
	m.mu.Unlock()

	return ManagerStats{
		LiveConnections:       live,
		ListenedTopics:        topics,
		PendingTopics:         pending,
		ConnectionsOpened:     m.connectionsOpened.Load(),
		ConnectionsClosed:     m.connectionsClosed.Load(),
		ConnectionsFailed:     m.connectionsFailed.Load(),
		MessagesReceived:      m.messagesReceived.Load(),
		MessagesFailedToParse: m.messagesFailedToParse.Load(),
		ListenResponses:       m.listenResponses.Load(),
		FailedListenResponses: m.failedListenResponses.Load(),
		UnlistenResponses:     m.unlistenResponses.Load(),
	}
}

func (m *manager) ownedLocked(topic protocol.Topic) bool {
	for _, conn := range m.conns {
		if conn.IsListening(topic) {
			return true
		}
	}
	return false
}

func (m *manager) pendingLocked(topic protocol.Topic) bool {
	for _, s := range m.pending {
		if s.Topic == topic {
			return true
		}
	}
	return false
}

// placeLocked listens to s on the first live connection that accepts it.
func (m *manager) placeLocked(s Subscription) bool {
	topics := []protocol.Topic{s.Topic}
	for _, conn := range m.conns {
		nonce, ok := conn.Listen(topics, s.AuthToken)
		if !ok {
			continue
		}
		m.nonces[nonce] = nonceInfo{connID: conn.id, typ: protocol.TypeListen, topics: topics}
		m.updateTopicGaugeLocked()
		return true
	}
	return false
}

// addConnectionLocked dials a new connection unless one is already being
// dialed or dialing is not possible yet.
func (m *manager) addConnectionLocked() {
	if !m.started || m.stopping || m.adding {
		return
	}
	m.adding = true
	m.nextID++
	id := m.nextID

	c := m.newClient(id)
	ctx := m.ctx

	m.wg.Add(1)
	go m.dial(ctx, id, c)
}

func (m *manager) dial(ctx context.Context, id int, c Client) {
	defer m.wg.Done()

	m.logger.Debug("dialing", "conn", id)

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	err := c.Connect(dialCtx)
	cancel()

	if err != nil {
		c.Close()
		m.onConnectFailed(id, err)
		return
	}
	m.onOpen(id, c)
}

func (m *manager) onConnectFailed(id int, err error) {
	m.connectionsFailed.Add(1)
	m.metrics.ConnectionsFailed.Inc()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.adding = false
	if m.stopping {
		return
	}

	m.logger.Warn("connection failed", "conn", id, "error", err)
	if len(m.pending) > 0 {
		m.scheduleReconnectLocked()
	}
}

func (m *manager) onOpen(id int, c Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.adding = false
	if m.stopping {
		c.Close()
		return
	}

	m.connectionsOpened.Add(1)
	m.metrics.ConnectionsOpened.Inc()
	m.backoff.Reset()

	conn := newConnection(id, c, m.cfg, m.clock, m.metrics, m.logger.With("conn_id", id))
	conn.Start()
	m.conns = append(m.conns, conn)
	m.metrics.LiveConnections.Set(float64(len(m.conns)))

	m.logger.Info("connection opened", "conn", id, "pending", len(m.pending))

	m.drainLocked(conn)
	if len(m.pending) > 0 {
		m.addConnectionLocked()
	}

	m.wg.Add(1)
	go m.pump(conn)
}

// drainLocked moves pending requests onto conn in FIFO order until it is
// full. Consecutive requests sharing a token go out in one LISTEN.
func (m *manager) drainLocked(conn *Connection) {
	room := conn.Room()
	n := min(room, len(m.pending))
	if n == 0 {
		return
	}

	batch := m.pending[:n]
	for start := 0; start < len(batch); {
		end := start + 1
		for end < len(batch) && batch[end].AuthToken == batch[start].AuthToken {
			end++
		}

		topics := make([]protocol.Topic, 0, end-start)
		for _, s := range batch[start:end] {
			topics = append(topics, s.Topic)
		}
		if nonce, ok := conn.Listen(topics, batch[start].AuthToken); ok {
			m.nonces[nonce] = nonceInfo{connID: conn.id, typ: protocol.TypeListen, topics: topics}
		}
		start = end
	}

	m.pending = append([]Subscription(nil), m.pending[n:]...)
	m.metrics.PendingTopics.Set(float64(len(m.pending)))
	m.updateTopicGaugeLocked()
}

func (m *manager) scheduleReconnectLocked() {
	if m.reconnectTimer != nil {
		return
	}
	wait := m.backoff.Next()
	m.logger.Info("scheduling reconnect", "wait", wait, "pending", len(m.pending))

	m.reconnectTimer = m.clock.AfterFunc(wait, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.reconnectTimer = nil
		m.addConnectionLocked()
	})
}

// pump reads frames from one connection until it stops or its transport fails.
func (m *manager) pump(conn *Connection) {
	defer m.wg.Done()

	for {
		select {
		case <-conn.Done():
			return

		case err := <-conn.client.Errors():
			m.drainBuffered(conn)
			m.onClose(conn, err)
			return

		case msg, ok := <-conn.client.Messages():
			if !ok {
				m.onClose(conn, ErrAlreadyClosed)
				return
			}
			m.onMessage(conn, msg)
		}
	}
}

// drainBuffered handles frames the client read before reporting its error.
// The read loop queues every frame ahead of the error, so a non-blocking
// drain sees all of them.
func (m *manager) drainBuffered(conn *Connection) {
	for {
		select {
		case msg, ok := <-conn.client.Messages():
			if !ok {
				return
			}
			m.onMessage(conn, msg)
		default:
			return
		}
	}
}

// onClose handles the end of conn's transport. Orphaned topics are placed
// again unless the manager is stopping.
func (m *manager) onClose(conn *Connection, reason error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, c := range m.conns {
		if c == conn {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.logger.Debug("close for unknown connection", "conn", conn.id, "reason", reason)
		return
	}

	m.conns = append(m.conns[:idx], m.conns[idx+1:]...)
	for nonce, info := range m.nonces {
		if info.connID == conn.id {
			delete(m.nonces, nonce)
		}
	}
	orphans := conn.MarkClosed()
	conn.client.Close()

	m.connectionsClosed.Add(1)
	m.metrics.ConnectionsClosed.Inc()
	m.metrics.LiveConnections.Set(float64(len(m.conns)))

	m.logger.Info("connection closed",
		"conn", conn.id,
		"reason", reason,
		"orphaned", len(orphans),
	)

	if m.stopping {
		return
	}

	for _, s := range orphans {
		if m.placeLocked(s) {
			continue
		}
		m.pending = append(m.pending, s)
	}
	m.metrics.PendingTopics.Set(float64(len(m.pending)))
	m.updateTopicGaugeLocked()

	if len(m.pending) > 0 {
		m.scheduleReconnectLocked()
	}
}

func (m *manager) onMessage(conn *Connection, msg TimestampedMessage) {
	m.messagesReceived.Add(1)
	m.metrics.MessagesReceived.Inc()

	frame, err := protocol.Decode(msg.Data)
	if err != nil {
		m.messagesFailedToParse.Add(1)
		m.metrics.MessagesFailedToParse.Inc()

		var de *protocol.DecodeError
		if errors.As(err, &de) {
			m.logger.Debug("failed to decode frame", "conn", conn.id, "error", de.Err, "raw", string(de.Raw))
		} else {
			m.logger.Debug("failed to decode frame", "conn", conn.id, "error", err)
		}
		return
	}

	switch f := frame.(type) {
	case *protocol.Response:
		m.onResponse(f)

	case *protocol.Message:
		if m.dispatcher != nil {
			m.dispatcher.Dispatch(f, msg.ReceivedAt)
		}

	case *protocol.Pong:
		conn.HandlePong()

	case *protocol.Reconnect:
		m.logger.Info("server requested reconnect", "conn", conn.id)
		m.onClose(conn, ErrReconnectRequested)
	}
}

func (m *manager) onResponse(resp *protocol.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.nonces[resp.Nonce]
	if !ok {
		m.logger.Debug("response for unknown nonce", "nonce", resp.Nonce, "error", resp.Error)
		return
	}
	delete(m.nonces, resp.Nonce)

	switch info.typ {
	case protocol.TypeListen:
		m.listenResponses.Add(1)
		m.metrics.ListenResponses.WithLabelValues(metrics.Result(resp.Failed())).Inc()
		if resp.Failed() {
			m.failedListenResponses.Add(1)
			m.logger.Warn("listen rejected",
				"nonce", resp.Nonce,
				"error", resp.Error,
				"topics", info.topics,
			)
			return
		}
		for _, conn := range m.conns {
			if conn.id == info.connID {
				conn.Confirm(info.topics)
				break
			}
		}
		m.logger.Debug("listen confirmed", "conn", info.connID, "topics", info.topics)

	case protocol.TypeUnlisten:
		m.unlistenResponses.Add(1)
		m.metrics.UnlistenResponses.WithLabelValues(metrics.Result(resp.Failed())).Inc()
		if resp.Failed() {
			m.logger.Warn("unlisten rejected", "nonce", resp.Nonce, "error", resp.Error)
		}
	}
}

func (m *manager) updateTopicGaugeLocked() {
	n := 0
	for _, conn := range m.conns {
		n += conn.Len()
	}
	m.metrics.ListenedTopics.Set(float64(n))
}
