package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"camviewer/internal/config"
	"camviewer/internal/dto"
	"camviewer/internal/frame"
	"camviewer/internal/logger"
	"camviewer/internal/service"
	"camviewer/internal/service/transform"
)

func newTestViewer(t *testing.T) *service.Viewer {
	t.Helper()
	cfg := &config.Config{
		ProcessingEnabled: true,
		ProcessingMode:    "grayscale",
		RenderWidth:       64,
		RenderHeight:      48,
		RenderFPS:         60,
		RenderQueueSize:   4,
		FallbackWidth:     32,
		FallbackHeight:    24,
	}
	identity := transform.Func(func(f *frame.Frame, mode frame.Mode) (*frame.Frame, error) {
		return f.Clone(), nil
	})
	v := service.NewViewer(cfg, logger.NewDiscard(), identity, nil, nil)
	t.Cleanup(func() { v.Close(context.Background()) })
	return v
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) dto.ViewerStatus {
	t.Helper()
	var status dto.ViewerStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	return status
}

func TestSetEnabledHandler(t *testing.T) {
	viewer := newTestViewer(t)
	h := SetEnabledHandler(viewer, logger.NewDiscard())

	tests := []struct {
		name    string
		method  string
		target  string
		code    int
		enabled bool
	}{
		{"disable", http.MethodPost, "/api/control/enabled?value=false", http.StatusOK, false},
		{"disable again", http.MethodPost, "/api/control/enabled?value=false", http.StatusOK, false},
		{"enable", http.MethodPost, "/api/control/enabled?value=true", http.StatusOK, true},
		{"bad value", http.MethodPost, "/api/control/enabled?value=maybe", http.StatusBadRequest, true},
		{"wrong method", http.MethodGet, "/api/control/enabled?value=false", http.StatusMethodNotAllowed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(tt.method, tt.target, nil))

			if rec.Code != tt.code {
				t.Fatalf("Expected status %d, got %d", tt.code, rec.Code)
			}
			if viewer.Pipeline().State().Enabled != tt.enabled {
				t.Errorf("Expected enabled=%v", tt.enabled)
			}
			if tt.code == http.StatusOK && decodeStatus(t, rec).Enabled != tt.enabled {
				t.Error("Response does not reflect the new state")
			}
		})
	}
}

func TestSetModeHandler(t *testing.T) {
	viewer := newTestViewer(t)
	h := SetModeHandler(viewer, logger.NewDiscard())

	tests := []struct {
		name   string
		target string
		code   int
		mode   frame.Mode
	}{
		{"edge", "/api/control/mode?value=edge", http.StatusOK, frame.ModeEdgeDetect},
		{"blur", "/api/control/mode?value=blur", http.StatusOK, frame.ModeBlur},
		{"numeric", "/api/control/mode?value=3", http.StatusOK, frame.ModePassthrough},
		{"unknown", "/api/control/mode?value=sepia", http.StatusBadRequest, frame.ModePassthrough},
		{"missing", "/api/control/mode", http.StatusBadRequest, frame.ModePassthrough},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodPost, tt.target, nil))

			if rec.Code != tt.code {
				t.Fatalf("Expected status %d, got %d", tt.code, rec.Code)
			}
			if got := viewer.Pipeline().State().Mode; got != tt.mode {
				t.Errorf("Expected mode %v, got %v", tt.mode, got)
			}
		})
	}
}

func TestStatusHandler(t *testing.T) {
	viewer := newTestViewer(t)

	viewer.Pipeline().OnFrameAvailable(frame.New(16, 8))
	viewer.Renderer().Tick()

	rec := httptest.NewRecorder()
	StatusHandler(viewer, logger.NewDiscard())(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %s", ct)
	}
	status := decodeStatus(t, rec)
	if status.Frames != 1 || status.Uploads != 1 {
		t.Errorf("Expected 1 frame and 1 upload, got %d and %d", status.Frames, status.Uploads)
	}
	if status.Texture.Width != 16 || status.Texture.Height != 8 {
		t.Errorf("Expected 16x8 texture, got %dx%d", status.Texture.Width, status.Texture.Height)
	}
	if status.Mode != "grayscale" || !status.Enabled {
		t.Errorf("Unexpected state in status: %+v", status)
	}
}

func TestPreviewHandler(t *testing.T) {
	viewer := newTestViewer(t)
	viewer.Pipeline().ShowFallbackPattern(32, 24)
	viewer.Renderer().Tick()

	rec := httptest.NewRecorder()
	PreviewHandler(viewer, logger.NewDiscard())(rec, httptest.NewRequest(http.MethodGet, "/preview.jpg", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte{0xFF, 0xD8}) {
		t.Error("Body is not a JPEG")
	}
}

func TestReinitializeHandler(t *testing.T) {
	viewer := newTestViewer(t)

	rec := httptest.NewRecorder()
	ReinitializeHandler(viewer, logger.NewDiscard())(rec, httptest.NewRequest(http.MethodGet, "/api/control/reinitialize", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ReinitializeHandler(viewer, logger.NewDiscard())(rec, httptest.NewRequest(http.MethodPost, "/api/control/reinitialize", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}
