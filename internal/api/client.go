package api

import (
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/rickgao/chat-pubsub/internal/auth"
	"github.com/rickgao/chat-pubsub/internal/version"
)

// Client provides access to the Helix REST API.
type Client struct {
	baseURL    string
	creds      auth.Provider
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration

	// limiter paces outgoing requests; nil means unlimited.
	limiter *rate.Limiter
	// users caches lookups by lowercased login; nil disables caching.
	users *lru.Cache[string, User]
}

// DefaultUserCacheSize is the number of users remembered by default.
const DefaultUserCacheSize = 1024

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. A nil creds sends
// unauthenticated requests.
func NewClient(baseURL string, creds auth.Provider, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   baseURL,
		creds:     creds,
		userAgent: version.UserAgent(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}
	c.users, _ = lru.New[string, User](DefaultUserCacheSize)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithRateLimit paces requests to rps with the given burst. A non-positive
// rps removes the limit.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithUserCache sets the user cache size. A non-positive size disables it.
func WithUserCache(size int) ClientOption {
	return func(c *Client) {
		if size <= 0 {
			c.users = nil
			return
		}
		c.users, _ = lru.New[string, User](size)
	}
}
