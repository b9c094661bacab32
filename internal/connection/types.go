package connection

import (
	"errors"
	"time"

	"github.com/rickgao/chat-pubsub/internal/protocol"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrAlreadyClosed      = errors.New("already closed")
	ErrStopped            = errors.New("manager stopped")
	ErrNoCredentials      = errors.New("no credentials available")
	ErrReconnectRequested = errors.New("server requested reconnect")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Subscription is a topic together with the token it is listened with.
type Subscription struct {
	Topic     protocol.Topic
	AuthToken string
}

// State is the lifecycle state of a Connection.
type State int

const (
	StateCreated State = iota
	StateStarted
	StateStopped
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://pubsub-edge.twitch.tv)
	UserAgent        string        // Sent with the handshake; empty = version.UserAgent()
	HandshakeTimeout time.Duration // Max time for the WebSocket handshake
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:              "wss://pubsub-edge.twitch.tv",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Client            ClientConfig
	MaxTopics         int           // Topics per connection
	PingInterval      time.Duration // Time between application PINGs
	PongTimeout       time.Duration // Time to wait for a PONG before warning
	DialTimeout       time.Duration // Timeout for a single connection attempt
	ReconnectBase     time.Duration // First reconnect delay
	ReconnectMaxSteps int           // Number of doublings before the delay plateaus
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Client:            DefaultClientConfig(),
		MaxTopics:         50,
		PingInterval:      5 * time.Minute,
		PongTimeout:       15 * time.Second,
		DialTimeout:       30 * time.Second,
		ReconnectBase:     1 * time.Second,
		ReconnectMaxSteps: 5,
	}
}

// withDefaults fills zero fields from DefaultManagerConfig.
func (c ManagerConfig) withDefaults() ManagerConfig {
	d := DefaultManagerConfig()
	if c.Client.URL == "" {
		c.Client.URL = d.Client.URL
	}
	if c.Client.HandshakeTimeout <= 0 {
		c.Client.HandshakeTimeout = d.Client.HandshakeTimeout
	}
	if c.Client.WriteTimeout <= 0 {
		c.Client.WriteTimeout = d.Client.WriteTimeout
	}
	if c.Client.BufferSize <= 0 {
		c.Client.BufferSize = d.Client.BufferSize
	}
	if c.MaxTopics <= 0 {
		c.MaxTopics = d.MaxTopics
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = d.PongTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = d.ReconnectBase
	}
	if c.ReconnectMaxSteps <= 0 {
		c.ReconnectMaxSteps = d.ReconnectMaxSteps
	}
	return c
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	LiveConnections int
	ListenedTopics  int
	PendingTopics   int

	ConnectionsOpened     int64
	ConnectionsClosed     int64
	ConnectionsFailed     int64
	MessagesReceived      int64
	MessagesFailedToParse int64
	ListenResponses       int64
	FailedListenResponses int64
	UnlistenResponses     int64
}
