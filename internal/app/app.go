package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"camviewer/internal/config"
	"camviewer/internal/logger"
	"camviewer/internal/repository/sqlite"
	"camviewer/internal/route"
	"camviewer/internal/service"
	"camviewer/internal/service/source"
	"camviewer/internal/service/storage"
	"camviewer/internal/service/telemetry"
	"camviewer/internal/service/transform"
	"camviewer/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

// ViewerApp runs the live viewer and its control surface.
type ViewerApp struct {
	config *config.Config
	logger *logger.Logger
	viewer *service.Viewer
}

// NewViewerApp selects the capture source and builds the viewer. A missing
// camera is not an error: the viewer then shows the fallback pattern.
func NewViewerApp() (*ViewerApp, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	src, err := source.Select(cfg, source.ProbeCamera, log)
	if err != nil {
		if !errors.Is(err, source.ErrUnavailable) {
			return nil, err
		}
		log.Warning("%v, showing fallback pattern", err)
		src = nil
	}

	var reporter *telemetry.Reporter
	if cfg.TelemetryEnabled {
		reporter = telemetry.NewReporter(cfg, log)
	}

	viewer := service.NewViewer(cfg, log, transform.NewOpenCV(log), src, reporter)

	return &ViewerApp{
		config: cfg,
		logger: log,
		viewer: viewer,
	}, nil
}

// Run serves the control surface until ctx is cancelled, then tears the
// viewer down.
func (a *ViewerApp) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.viewer.Start(ctx)

	router := route.SetupViewerRoutes(a.viewer, a.config, a.logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", a.config.ViewerPort), Handler: router}

	fmt.Printf("🎥 Camera Viewer\n")
	fmt.Printf("📍 URL: http://localhost:%d/api/status\n", a.config.ViewerPort)
	fmt.Printf("🖼️  Preview: http://localhost:%d/preview.jpg\n", a.config.ViewerPort)
	fmt.Printf("📡 Telemetry: %s (enabled: %v)\n", a.config.TelemetryURL, a.config.TelemetryEnabled)
	if a.config.ViewerToken != "" {
		fmt.Printf("🔑 Token required\n")
	}

	serveErr := serve(ctx, server, a.logger)
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer closeCancel()
	return errors.Join(serveErr, a.viewer.Close(closeCtx))
}

// RelayApp runs the telemetry relay with sqlite persistence.
type RelayApp struct {
	config *config.Config
	logger *logger.Logger
	db     *sqlite.DB
	buffer *storage.SampleBuffer
	hub    *websocket.HubService
	relay  *service.Relay
	router http.Handler
}

// NewRelayApp opens the database and wires the relay services.
func NewRelayApp() (*RelayApp, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	sampleRepo := sqlite.NewSampleRepository(db)
	statsRepo := sqlite.NewStatsRepository(db)

	buffer := storage.NewSampleBuffer(cfg, log, sampleRepo, statsRepo)
	hub := websocket.NewHubService(cfg, log)
	relay := service.NewRelay(hub, buffer, log)

	return &RelayApp{
		config: cfg,
		logger: log,
		db:     db,
		buffer: buffer,
		hub:    hub,
		relay:  relay,
		router: route.SetupRelayRoutes(hub, relay, cfg, log, sampleRepo, statsRepo),
	}, nil
}

// Run serves the relay until ctx is cancelled. Buffered samples are flushed
// before the database is closed.
func (a *RelayApp) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.buffer.Run(ctx)
	}()

	server := &http.Server{Addr: fmt.Sprintf(":%d", a.config.RelayPort), Handler: a.router}

	fmt.Printf("🚀 Telemetry Relay\n")
	fmt.Printf("📍 URL: ws://localhost:%d/ws\n", a.config.RelayPort)
	fmt.Printf("💾 Database: %s\n", a.config.DatabasePath)
	if a.config.RelayToken != "" {
		fmt.Printf("🔑 Token required\n")
	}

	serveErr := serve(ctx, server, a.logger)
	cancel()
	wg.Wait()

	return errors.Join(serveErr, a.db.Close())
}

// serve runs server until ctx is cancelled or it fails to listen.
func serve(ctx context.Context, server *http.Server, logger *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("🛑 Shutting down %s", server.Addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
