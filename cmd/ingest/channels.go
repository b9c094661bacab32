package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rickgao/chat-pubsub/internal/config"
)

// userResolver maps lowercased logins to user ids.
type userResolver interface {
	ResolveUserIDs(ctx context.Context, logins []string) (map[string]string, error)
}

// listener is the part of connection.Manager used to subscribe channels.
type listener interface {
	ListenToWhispers() error
	ListenToChannelModerationActions(channelID string) error
	ListenToAutomodQueue(channelID string) error
	ListenToChannelPointRewards(channelID string)
}

// resolveChannels fills in the id of every channel configured by login.
// The resolver is only called when at least one channel lacks an id.
func resolveChannels(ctx context.Context, channels []config.ChannelConfig, r userResolver) ([]config.ChannelConfig, error) {
	var logins []string
	for _, ch := range channels {
		if ch.ID == "" {
			logins = append(logins, ch.Login)
		}
	}

	resolved := make([]config.ChannelConfig, len(channels))
	copy(resolved, channels)
	if len(logins) == 0 {
		return resolved, nil
	}

	ids, err := r.ResolveUserIDs(ctx, logins)
	if err != nil {
		return nil, fmt.Errorf("resolve channel logins: %w", err)
	}

	for i := range resolved {
		if resolved[i].ID == "" {
			resolved[i].ID = ids[strings.ToLower(resolved[i].Login)]
		}
	}
	return resolved, nil
}

// subscribe queues every configured topic on l. It returns the number of
// topics requested.
func subscribe(l listener, account config.AccountConfig, channels []config.ChannelConfig) (int, error) {
	n := 0
	if account.Whispers {
		if err := l.ListenToWhispers(); err != nil {
			return n, fmt.Errorf("listen to whispers: %w", err)
		}
		n++
	}

	for _, ch := range channels {
		if ch.Moderation {
			if err := l.ListenToChannelModerationActions(ch.ID); err != nil {
				return n, fmt.Errorf("listen to moderation actions in %s: %w", ch.ID, err)
			}
			n++
		}
		if ch.AutomodQueue {
			if err := l.ListenToAutomodQueue(ch.ID); err != nil {
				return n, fmt.Errorf("listen to automod queue in %s: %w", ch.ID, err)
			}
			n++
		}
		if ch.ChannelPoints {
			l.ListenToChannelPointRewards(ch.ID)
			n++
		}
	}
	return n, nil
}
