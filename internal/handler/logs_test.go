package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"camviewer/internal/config"
	"camviewer/internal/logger"
)

func newFileLogger(t *testing.T) (*logger.Logger, string) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "logs_handler_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })
	return logger.NewLogger(&config.Config{LogDirectory: tempDir}), tempDir
}

func TestShowLogHandler(t *testing.T) {
	log, _ := newFileLogger(t)
	log.Warning("camera unplugged")

	rec := httptest.NewRecorder()
	ShowLogHandler(log, "warning")(rec, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Expected text/plain, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "camera unplugged") {
		t.Errorf("Expected the warning in the body, got %q", rec.Body.String())
	}
}

func TestShowLogHandler_NotFound(t *testing.T) {
	log, dir := newFileLogger(t)
	if err := os.Remove(filepath.Join(dir, "error.log")); err != nil {
		t.Fatalf("Failed to remove error.log: %v", err)
	}

	tests := []struct {
		name   string
		logger *logger.Logger
		level  string
	}{
		{"missing file", log, "error"},
		{"unknown level", log, "debug"},
		{"no log directory", logger.NewDiscard(), "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ShowLogHandler(tt.logger, tt.level)(rec, httptest.NewRequest(http.MethodGet, "/logs/"+tt.level, nil))
			if rec.Code != http.StatusNotFound {
				t.Errorf("Expected 404, got %d", rec.Code)
			}
		})
	}
}

func TestClearLogHandler(t *testing.T) {
	log, dir := newFileLogger(t)
	log.Warning("stale warning")

	rec := httptest.NewRecorder()
	ClearLogHandler(log, "warning")(rec, httptest.NewRequest(http.MethodGet, "/logs/warning/clear", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ClearLogHandler(log, "warning")(rec, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	data, err := os.ReadFile(filepath.Join(dir, "warning.log"))
	if err != nil {
		t.Fatalf("Failed to read warning.log: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("Expected empty warning.log, got %q", string(data))
	}
}

func TestClearLogHandler_Errors(t *testing.T) {
	log, dir := newFileLogger(t)
	if err := os.Remove(filepath.Join(dir, "error.log")); err != nil {
		t.Fatalf("Failed to remove error.log: %v", err)
	}

	tests := []struct {
		name   string
		logger *logger.Logger
		level  string
		want   int
	}{
		{"missing file", log, "error", http.StatusNotFound},
		{"no log directory", logger.NewDiscard(), "info", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ClearLogHandler(tt.logger, tt.level)(rec, httptest.NewRequest(http.MethodPost, "/logs/"+tt.level+"/clear", nil))
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
