package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *IngestConfig) Validate() error {
	if c.Account.UserID == "" {
		return errors.New("account.user_id is required")
	}
	if c.Account.AuthToken == "" && c.Account.TokenPath == "" {
		return errors.New("account.auth_token or account.token_path is required")
	}

	if c.PubSub.MaxTopics < 1 || c.PubSub.MaxTopics > DefaultMaxTopics {
		return fmt.Errorf("pubsub.max_topics must be between 1 and %d, got %d", DefaultMaxTopics, c.PubSub.MaxTopics)
	}
	if c.PubSub.PongTimeout >= c.PubSub.PingInterval {
		return fmt.Errorf("pubsub.pong_timeout (%s) must be shorter than ping_interval (%s)",
			c.PubSub.PongTimeout, c.PubSub.PingInterval)
	}
	if c.PubSub.ReconnectMaxSteps < 0 || c.PubSub.ReconnectMaxSteps > MaxReconnectSteps {
		return fmt.Errorf("pubsub.reconnect_max_steps must be between 0 and %d, got %d",
			MaxReconnectSteps, c.PubSub.ReconnectMaxSteps)
	}

	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must be >= 0, got %g", c.API.RateLimit)
	}

	if len(c.Channels) == 0 && !c.Account.Whispers {
		return errors.New("at least one channel or account.whispers is required")
	}
	for i, ch := range c.Channels {
		if err := ch.validate(fmt.Sprintf("channels[%d]", i)); err != nil {
			return err
		}
	}

	if c.Archive.Enabled() {
		if err := c.Archive.validate("archive"); err != nil {
			return err
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (ch *ChannelConfig) validate(prefix string) error {
	if ch.Login == "" && ch.ID == "" {
		return fmt.Errorf("%s: login or id is required", prefix)
	}
	if !ch.Moderation && !ch.AutomodQueue && !ch.ChannelPoints {
		return fmt.Errorf("%s: no topics selected", prefix)
	}
	return nil
}

func (a *ArchiveConfig) validate(prefix string) error {
	if a.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if a.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if a.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if a.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if a.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if a.MinConns > a.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, a.MinConns, a.MaxConns)
	}
	if a.BatchSize < 1 {
		return fmt.Errorf("%s.batch_size must be >= 1", prefix)
	}
	if a.BufferSize < 1 {
		return fmt.Errorf("%s.buffer_size must be >= 1", prefix)
	}
	return nil
}
