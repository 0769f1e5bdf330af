package route

import (
	"net/http"

	"camviewer/internal/config"
	"camviewer/internal/handler"
	"camviewer/internal/logger"
	"camviewer/internal/middleware"
	"camviewer/internal/repository"
	"camviewer/internal/service"
	"camviewer/internal/service/websocket"
)

// setupLogRoutes registers the log viewing and clearing endpoints.
func setupLogRoutes(mux *http.ServeMux, logger *logger.Logger) {
	for _, level := range []string{"info", "warning", "error"} {
		mux.HandleFunc("/logs/"+level, handler.ShowLogHandler(logger, level))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogHandler(logger, level))
	}
}

// SetupRelayRoutes registers the telemetry websocket, the history API and
// the log endpoints, and wraps the mux with the token middleware.
func SetupRelayRoutes(hub *websocket.HubService, relay *service.Relay, cfg *config.Config, logger *logger.Logger,
	sampleRepo repository.SampleRepository, statsRepo repository.StatsRepository) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", handler.RelayWebsocketHandler(hub, relay, logger))
	mux.HandleFunc("/health", handler.HealthHandler(hub, logger))

	// History API
	mux.HandleFunc("/api/stats/recent", handler.RecentStatsHandler(sampleRepo, statsRepo, logger))
	mux.HandleFunc("/api/stats/summary", handler.StatsSummaryHandler(statsRepo, logger))

	setupLogRoutes(mux, logger)

	return middleware.TokenMiddleware(cfg.RelayToken, mux)
}

// SetupViewerRoutes registers the control surface of the live viewer and
// wraps the mux with the token middleware.
func SetupViewerRoutes(viewer *service.Viewer, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/control/enabled", handler.SetEnabledHandler(viewer, logger))
	mux.HandleFunc("/api/control/mode", handler.SetModeHandler(viewer, logger))
	mux.HandleFunc("/api/control/reinitialize", handler.ReinitializeHandler(viewer, logger))
	mux.HandleFunc("/api/status", handler.StatusHandler(viewer, logger))
	mux.HandleFunc("/preview.jpg", handler.PreviewHandler(viewer, logger))

	setupLogRoutes(mux, logger)

	return middleware.TokenMiddleware(cfg.ViewerToken, mux)
}
