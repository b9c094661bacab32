// ingest listens to chat pub/sub topics for the configured channels and
// archives the decoded actions.
// Usage: go run ./cmd/ingest --config configs/ingest.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/chat-pubsub/internal/api"
	"github.com/rickgao/chat-pubsub/internal/auth"
	"github.com/rickgao/chat-pubsub/internal/config"
	"github.com/rickgao/chat-pubsub/internal/connection"
	"github.com/rickgao/chat-pubsub/internal/database"
	"github.com/rickgao/chat-pubsub/internal/metrics"
	"github.com/rickgao/chat-pubsub/internal/router"
	"github.com/rickgao/chat-pubsub/internal/version"
	"github.com/rickgao/chat-pubsub/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/ingest.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", *logLevel)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ingest",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	creds, err := auth.LoadCredentials(
		cfg.Account.UserID,
		cfg.Account.Login,
		cfg.Account.ClientID,
		cfg.Account.AuthToken,
		cfg.Account.TokenPath,
	)
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
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	apiClient := api.NewClient(
		cfg.API.BaseURL,
		provider,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
		api.WithUserCache(cfg.API.UserCacheSize),
	)

	channels, err := resolveChannels(ctx, cfg.Channels, apiClient)
	if err != nil {
		logger.Error("failed to resolve channels", "error", err)
		os.Exit(1)
	}
	for _, ch := range channels {
		logger.Info("channel configured",
			"login", ch.Login,
			"id", ch.ID,
			"moderation", ch.Moderation,
			"automod_queue", ch.AutomodQueue,
			"channel_points", ch.ChannelPoints,
		)
	}

	rtr := router.NewRouter(m, logger)
	rtr.Register(router.CategoryModeration, logSink(logger))
	rtr.Register(router.CategoryWhisper, logSink(logger))
	rtr.Register(router.CategoryPointRedemption, logSink(logger))
	rtr.Register(router.CategoryAutomodQueue, logSink(logger))

	// Optional action archive
	var (
		pool         *pgxpool.Pool
		archiveSink  *router.BufferedSink
		actionWriter *writer.ActionWriter
	)
	if cfg.Archive.Enabled() {
		logger.Info("connecting to archive",
			"host", cfg.Archive.Host,
			"port", cfg.Archive.Port,
			"database", cfg.Archive.Name,
		)

		pool, err = database.Connect(ctx, cfg.Archive)
		if err != nil {
			logger.Error("failed to connect to archive", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to apply archive schema", "error", err)
			os.Exit(1)
		}

		archiveSink = router.NewBufferedSink(cfg.Archive.BufferSize)
		for _, category := range router.Categories {
			rtr.Register(category, archiveSink)
		}

		actionWriter = writer.NewActionWriter(writer.WriterConfig{
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
		}, archiveSink.Buffer(), pool, m, logger)
		if err := actionWriter.Start(ctx); err != nil {
			logger.Error("failed to start action writer", "error", err)
			os.Exit(1)
		}
	}

	mgr := connection.NewManager(
		managerConfig(cfg.PubSub),
		provider,
		rtr,
		connection.WithMetrics(m),
		connection.WithLogger(logger),
	)

	topics, err := subscribe(mgr, cfg.Account, channels)
	if err != nil {
		logger.Error("failed to subscribe", "error", err)
		os.Exit(1)
	}

	if err := mgr.Start(ctx); err != nil {
		logger.Error("failed to start connection manager", "error", err)
		os.Exit(1)
	}

	var archivePinger pinger
	if pool != nil {
		archivePinger = pool
	}
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHealthHandler(mgr, rtr, archivePinger, reg, cfg.Metrics.Path),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logStats(logger, mgr.Stats(), rtr.Stats())
			}
		}
	})

	logger.Info("ingest running",
		"topics", topics,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	if err := g.Wait(); err != nil {
		logger.Error("ingest failed", "error", err)
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := mgr.Stop(shutdownCtx); err != nil {
		logger.Warn("connection manager stop", "error", err)
	}
	if archiveSink != nil {
		archiveSink.Close()
		actionWriter.Stop(shutdownCtx)
	}

	logStats(logger, mgr.Stats(), rtr.Stats())
	logger.Info("ingest stopped")
}

// managerConfig maps the pubsub config section onto the connection manager.
func managerConfig(p config.PubSubConfig) connection.ManagerConfig {
	return connection.ManagerConfig{
		Client: connection.ClientConfig{
			URL:              p.URL,
			HandshakeTimeout: p.HandshakeTimeout,
			WriteTimeout:     p.WriteTimeout,
			BufferSize:       p.BufferSize,
		},
		MaxTopics:         p.MaxTopics,
		PingInterval:      p.PingInterval,
		PongTimeout:       p.PongTimeout,
		DialTimeout:       p.DialTimeout,
		ReconnectBase:     p.ReconnectBase,
		ReconnectMaxSteps: p.ReconnectMaxSteps,
	}
}

// logSink logs every routed action at debug level.
func logSink(logger *slog.Logger) router.Sink {
	return router.SinkFunc(func(e router.Event) {
		logger.Debug("action",
			"category", e.Category,
			"kind", e.Action.Kind(),
			"room", e.Action.Room(),
		)
	})
}

func logStats(logger *slog.Logger, ms connection.ManagerStats, rs router.RouterStats) {
	logger.Info("stats",
		"connections", ms.LiveConnections,
		"listened", ms.ListenedTopics,
		"pending", ms.PendingTopics,
		"messages", ms.MessagesReceived,
		"parse_failures", ms.MessagesFailedToParse,
		"routed", rs.ActionsRouted,
		"decode_errors", rs.DecodeErrors,
		"unknown_actions", rs.UnknownActions,
	)
}
