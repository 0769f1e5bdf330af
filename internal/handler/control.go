package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"camviewer/internal/logger"
	"camviewer/internal/service"
)

// SetEnabledHandler turns processing on or off: POST ?value=true|false.
func SetEnabledHandler(viewer *service.Viewer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		enabled, err := strconv.ParseBool(r.URL.Query().Get("value"))
		if err != nil {
			http.Error(w, "value must be true or false", http.StatusBadRequest)
			return
		}

		viewer.SetEnabled(enabled)
		writeJSON(w, viewer.Status(), logger)
	}
}

// SetModeHandler switches the processing mode: POST ?value=grayscale|edge|blur|passthrough.
func SetModeHandler(viewer *service.Viewer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if _, err := viewer.SetMode(r.URL.Query().Get("value")); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, viewer.Status(), logger)
	}
}

// StatusHandler returns the viewer counters as JSON.
func StatusHandler(viewer *service.Viewer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, viewer.Status(), logger)
	}
}

// PreviewHandler returns the rendered surface as a JPEG image.
func PreviewHandler(viewer *service.Viewer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := viewer.Preview(r.Context())
		if err != nil {
			logger.Error("Failed to render preview: %v", err)
			http.Error(w, "Preview unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(data)
	}
}

// ReinitializeHandler recovers the texture after a GPU resource failure.
func ReinitializeHandler(viewer *service.Viewer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := viewer.Reinitialize(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, viewer.Status(), logger)
	}
}

func writeJSON(w http.ResponseWriter, v any, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
