package config

import "time"

// IngestConfig is the root configuration for an ingest instance.
type IngestConfig struct {
	Account  AccountConfig   `yaml:"account"`
	PubSub   PubSubConfig    `yaml:"pubsub"`
	API      APIConfig       `yaml:"api"`
	Channels []ChannelConfig `yaml:"channels"`
	Archive  ArchiveConfig   `yaml:"archive"`
	Metrics  MetricsConfig   `yaml:"metrics"`
}

// AccountConfig identifies the user whose token authorizes LISTEN requests.
type AccountConfig struct {
	UserID    string `yaml:"user_id"`
	Login     string `yaml:"login"`
	ClientID  string `yaml:"client_id"`
	AuthToken string `yaml:"auth_token"`
	TokenPath string `yaml:"token_path"` // file holding the token, read when auth_token is empty
	Whispers  bool   `yaml:"whispers"`   // listen to the account's own whispers
}

// PubSubConfig holds WebSocket connection pool settings.
type PubSubConfig struct {
	URL               string        `yaml:"url"`
	MaxTopics         int           `yaml:"max_topics"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	PongTimeout       time.Duration `yaml:"pong_timeout"`
	DialTimeout       time.Duration `yaml:"dial_timeout"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	BufferSize        int           `yaml:"buffer_size"`
	ReconnectBase     time.Duration `yaml:"reconnect_base"`
	ReconnectMaxSteps int           `yaml:"reconnect_max_steps"`
}

// APIConfig holds REST API settings used to resolve channel logins.
type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	RateLimit     float64       `yaml:"rate_limit"` // requests per second
	RateBurst     int           `yaml:"rate_burst"`
	UserCacheSize int           `yaml:"user_cache_size"`
}

// ChannelConfig selects the topics to listen to for one channel.
// Either Login or ID must be set; a login is resolved through the API.
type ChannelConfig struct {
	Login         string `yaml:"login"`
	ID            string `yaml:"id"`
	Moderation    bool   `yaml:"moderation"`
	AutomodQueue  bool   `yaml:"automod_queue"`
	ChannelPoints bool   `yaml:"channel_points"`
}

// ArchiveConfig holds the optional PostgreSQL action archive.
// The archive is disabled when Host is empty.
type ArchiveConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	Name          string        `yaml:"name"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	SSLMode       string        `yaml:"ssl_mode"`
	MaxConns      int           `yaml:"max_conns"`
	MinConns      int           `yaml:"min_conns"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// Enabled reports whether an archive database is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Host != ""
}

// MetricsConfig holds the health and Prometheus endpoint settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
