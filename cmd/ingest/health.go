package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/chat-pubsub/internal/connection"
	"github.com/rickgao/chat-pubsub/internal/router"
)

type managerStats interface {
	Stats() connection.ManagerStats
}

type routerStats interface {
	Stats() router.RouterStats
}

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// createHealthHandler creates the HTTP handler for health checks and metrics.
// archive may be nil when the archive is disabled.
func createHealthHandler(mgr managerStats, rtr routerStats, archive pinger, reg *prometheus.Registry, metricsPath string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		stats := mgr.Stats()
		health.Components["pubsub"] = map[string]any{
			"connections": stats.LiveConnections,
			"listened":    stats.ListenedTopics,
			"pending":     stats.PendingTopics,
		}
		if stats.LiveConnections == 0 && stats.PendingTopics > 0 {
			health.Status = "degraded"
		}

		rs := rtr.Stats()
		health.Components["router"] = map[string]any{
			"received":      rs.MessagesReceived,
			"routed":        rs.ActionsRouted,
			"decode_errors": rs.DecodeErrors,
		}

		if archive != nil {
			if err := archive.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["archive"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["archive"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return mux
}
