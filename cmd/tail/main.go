// tail connects to chat pub/sub and prints decoded actions to the console.
// Usage: go run ./cmd/tail --config configs/ingest.yaml [--verbose]
//
// Channels configured by login are resolved through the REST API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/chat-pubsub/internal/api"
	"github.com/rickgao/chat-pubsub/internal/auth"
	"github.com/rickgao/chat-pubsub/internal/config"
	"github.com/rickgao/chat-pubsub/internal/connection"
	"github.com/rickgao/chat-pubsub/internal/router"
)

func main() {
	configPath := flag.String("config", "configs/ingest.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full action JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	creds, err := auth.LoadCredentials(cfg.Account.UserID, cfg.Account.Login,
		cfg.Account.ClientID, cfg.Account.AuthToken, cfg.Account.TokenPath)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}
	provider := auth.Static(*creds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	apiClient := api.NewClient(cfg.API.BaseURL, provider, api.WithLogger(logger))

	sink := router.NewBufferedSink(1000)
	rtr := router.NewRouter(nil, logger)
	for _, category := range router.Categories {
		rtr.Register(category, sink)
	}

	connMgr := connection.NewManager(connection.DefaultManagerConfig(), provider, rtr,
		connection.WithLogger(logger))

	if cfg.Account.Whispers {
		if err := connMgr.ListenToWhispers(); err != nil {
			logger.Error("failed to listen to whispers", "error", err)
		}
	}
	for _, ch := range cfg.Channels {
		id := ch.ID
		if id == "" {
			ids, err := apiClient.ResolveUserIDs(ctx, []string{ch.Login})
			if err != nil {
				logger.Error("failed to resolve channel", "login", ch.Login, "error", err)
				continue
			}
			id = ids[strings.ToLower(ch.Login)]
		}

		if ch.Moderation {
			connMgr.ListenToChannelModerationActions(id)
		}
		if ch.AutomodQueue {
			connMgr.ListenToAutomodQueue(id)
		}
		if ch.ChannelPoints {
			connMgr.ListenToChannelPointRewards(id)
		}
	}

	logger.Info("starting connection manager")
	if err := connMgr.Start(ctx); err != nil {
		logger.Error("failed to start connection manager", "error", err)
		os.Exit(1)
	}

	// Console printer
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for {
			event, ok := sink.Buffer().Receive()
			if !ok {
				return
			}
			fmt.Println(format(event, *verbose))
		}
	}()

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				connStats := connMgr.Stats()
				routerStats := rtr.Stats()
				logger.Info("stats",
					"connections", connStats.LiveConnections,
					"listened", connStats.ListenedTopics,
					"pending", connStats.PendingTopics,
					"router_received", routerStats.MessagesReceived,
					"router_routed", routerStats.ActionsRouted,
					"decode_errors", routerStats.DecodeErrors,
					"queued", sink.Buffer().Len(),
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	connMgr.Stop(shutdownCtx)
	sink.Close()
	<-printed

	logger.Info("shutdown complete")
}
