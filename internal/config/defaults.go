package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPubSubURL         = "wss://pubsub-edge.twitch.tv"
	DefaultMaxTopics         = 50
	DefaultPingInterval      = 5 * time.Minute
	DefaultPongTimeout       = 15 * time.Second
	DefaultDialTimeout       = 30 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultClientBufferSize  = 1000
	DefaultReconnectBase     = 1 * time.Second
	DefaultReconnectMaxSteps = 5
	MaxReconnectSteps        = 16
	DefaultAPIBaseURL        = "https://api.twitch.tv/helix"
	DefaultAPITimeout        = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultAPIRateLimit      = 10.0
	DefaultAPIRateBurst      = 5
	DefaultUserCacheSize     = 1024
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
	DefaultBufferSize        = 10000
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
)

func (c *IngestConfig) applyDefaults() {
	// PubSub defaults
	p := &c.PubSub
	if p.URL == "" {
		p.URL = DefaultPubSubURL
	}
	if p.MaxTopics == 0 {
		p.MaxTopics = DefaultMaxTopics
	}
	if p.PingInterval == 0 {
		p.PingInterval = DefaultPingInterval
	}
	if p.PongTimeout == 0 {
		p.PongTimeout = DefaultPongTimeout
	}
	if p.DialTimeout == 0 {
		p.DialTimeout = DefaultDialTimeout
	}
	if p.HandshakeTimeout == 0 {
		p.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if p.WriteTimeout == 0 {
		p.WriteTimeout = DefaultWriteTimeout
	}
	if p.BufferSize == 0 {
		p.BufferSize = DefaultClientBufferSize
	}
	if p.ReconnectBase == 0 {
		p.ReconnectBase = DefaultReconnectBase
	}
	if p.ReconnectMaxSteps == 0 {
		p.ReconnectMaxSteps = DefaultReconnectMaxSteps
	}

	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = DefaultAPIRateLimit
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = DefaultAPIRateBurst
	}
	if c.API.UserCacheSize == 0 {
		c.API.UserCacheSize = DefaultUserCacheSize
	}

	// Archive defaults apply even when the archive is disabled.
	a := &c.Archive
	if a.Port == 0 {
		a.Port = DefaultDBPort
	}
	if a.SSLMode == "" {
		a.SSLMode = DefaultDBSSLMode
	}
	if a.MaxConns == 0 {
		a.MaxConns = DefaultMaxConns
	}
	if a.MinConns == 0 {
		a.MinConns = DefaultMinConns
	}
	if a.BatchSize == 0 {
		a.BatchSize = DefaultBatchSize
	}
	if a.FlushInterval == 0 {
		a.FlushInterval = DefaultFlushInterval
	}
	if a.BufferSize == 0 {
		a.BufferSize = DefaultBufferSize
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
