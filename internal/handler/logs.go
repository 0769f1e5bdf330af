package handler

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"camviewer/internal/logger"
)

// logFiles maps a level in the URL to the file the logger writes it to.
var logFiles = map[string]string{
	"info":    "info.log",
	"warning": "warning.log",
	"error":   "error.log",
}

// ShowLogHandler serves the log file of one level as text/plain.
func ShowLogHandler(logger *logger.Logger, level string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath, ok := logFilePath(logger, level)
		if !ok {
			http.Error(w, "Log files are disabled", http.StatusNotFound)
			return
		}

		if _, err := os.Stat(filePath); errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "Log file not found: "+filepath.Base(filePath), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, filePath)
	}
}

// ClearLogHandler truncates the log file of one level: POST only.
func ClearLogHandler(logger *logger.Logger, level string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		filePath, ok := logFilePath(logger, level)
		if !ok {
			http.Error(w, "Log files are disabled", http.StatusNotFound)
			return
		}

		if err := logger.CleanLogs(filepath.Base(filePath)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				http.Error(w, "Log file not found: "+filepath.Base(filePath), http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to clear log file", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"cleared": level}, logger)
	}
}

// logFilePath returns the file for level inside the logger's directory. It
// reports false for unknown levels and for loggers without a directory.
func logFilePath(logger *logger.Logger, level string) (string, bool) {
	name, ok := logFiles[level]
	if !ok || logger.Dir() == "" {
		return "", false
	}
	return filepath.Join(logger.Dir(), name), true
}
