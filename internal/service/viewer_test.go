package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"camviewer/internal/config"
	"camviewer/internal/frame"
	"camviewer/internal/logger"
	"camviewer/internal/service/source"
	"camviewer/internal/service/transform"
)

func testViewerConfig() *config.Config {
	return &config.Config{
		ProcessingEnabled: false,
		ProcessingMode:    "grayscale",
		RenderWidth:       160,
		RenderHeight:      120,
		RenderFPS:         100,
		RenderQueueSize:   8,
		FallbackWidth:     80,
		FallbackHeight:    60,
	}
}

var passthrough = transform.Func(func(f *frame.Frame, mode frame.Mode) (*frame.Frame, error) {
	return f.Clone(), nil
})

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestViewer_NoSourceShowsFallback(t *testing.T) {
	v := NewViewer(testViewerConfig(), logger.NewDiscard(), passthrough, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	v.Start(ctx)

	waitUntil(t, func() bool { return v.Status().Uploads == 1 })

	status := v.Status()
	if status.Source != "none" {
		t.Errorf("Expected source none, got %s", status.Source)
	}
	if status.Fallbacks != 1 {
		t.Errorf("Expected 1 fallback, got %d", status.Fallbacks)
	}
	waitUntil(t, func() bool { return v.Status().Texture.Width == 80 })
	if status := v.Status(); status.Texture.Height != 60 || status.Texture.Kind != "pixels" {
		t.Errorf("Expected 80x60 pixel texture, got %+v", status.Texture)
	}
	if status.TelemetryConnected {
		t.Error("Telemetry should be disconnected without a reporter")
	}

	cancel()
	if err := v.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestViewer_PatternSourceAndControls(t *testing.T) {
	cfg := testViewerConfig()
	src := source.NewPatternSource(32, 24, 100, logger.NewDiscard())
	v := NewViewer(cfg, logger.NewDiscard(), passthrough, src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	v.Start(ctx)

	waitUntil(t, func() bool { return v.Status().Frames >= 3 })
	if v.Status().Source != "pattern" {
		t.Errorf("Expected pattern source, got %s", v.Status().Source)
	}

	v.SetEnabled(true)
	mode, err := v.SetMode("edge")
	if err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	if mode != frame.ModeEdgeDetect {
		t.Errorf("Expected edge mode, got %v", mode)
	}
	status := v.Status()
	if !status.Enabled || status.Mode != "edge" {
		t.Errorf("Controls not applied: enabled=%v mode=%s", status.Enabled, status.Mode)
	}

	if _, err := v.SetMode("sepia"); err == nil {
		t.Error("Expected error for unknown mode")
	}
	if v.Status().Mode != "edge" {
		t.Error("Unknown mode must not change the current mode")
	}

	cancel()
	if err := v.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !v.Pipeline().Closed() {
		t.Error("Pipeline should be closed after viewer close")
	}
}

func TestViewer_PreviewIsJPEG(t *testing.T) {
	v := NewViewer(testViewerConfig(), logger.NewDiscard(), passthrough, nil, nil)
	// Render loop not started: Invoke runs on the caller
	v.Pipeline().ShowFallbackPattern(80, 60)
	v.Renderer().Tick()

	data, err := v.Preview(context.Background())
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Errorf("Preview is not a JPEG, starts with % x", data[:2])
	}

	if err := v.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestViewer_FPSIsDeliveredOnRenderContext(t *testing.T) {
	v := NewViewer(testViewerConfig(), logger.NewDiscard(), passthrough, nil, nil)

	v.onFPS(24.5)
	if v.FPS() != 0 {
		t.Error("FPS must not change before the render context runs")
	}
	v.Renderer().Tick()
	if v.FPS() != 24.5 {
		t.Errorf("Expected 24.5 fps after tick, got %v", v.FPS())
	}

	v.Close(context.Background())
}
