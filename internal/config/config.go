package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ViewerPort  int
	RelayPort   int
	RelayToken  string
	ViewerToken string

	TelemetryURL     string
	TelemetryEnabled bool

	Source        string // auto, pixel, stream, file, pattern
	CameraDevice  string
	CaptureWidth  int
	CaptureHeight int
	CaptureFPS    int
	WatchPath     string // Plik z surowymi klatkami RGBA (źródło "file")

	ProcessingEnabled bool
	ProcessingMode    string

	RenderWidth     int
	RenderHeight    int
	RenderFPS       int
	RenderQueueSize int
	FallbackWidth   int
	FallbackHeight  int

	DatabasePath      string
	FlushInterval     time.Duration
	SampleBufferLimit int
	LogDirectory      string
}

// Load reads an optional .env file and then builds the Config from the environment.
func Load() *Config {
	// Brak pliku .env nie jest błędem
	_ = godotenv.Load()

	return &Config{
		ViewerPort:        getEnvAsInt("VIEWER_PORT", 8090),
		RelayPort:         getEnvAsInt("RELAY_PORT", 8080),
		RelayToken:        getEnv("RELAY_TOKEN", ""),
		ViewerToken:       getEnv("VIEWER_TOKEN", ""),
		TelemetryURL:      getEnv("TELEMETRY_URL", "ws://localhost:8080/ws"),
		TelemetryEnabled:  getEnvAsBool("TELEMETRY_ENABLED", true),
		Source:            strings.ToLower(getEnv("SOURCE", "auto")),
		CameraDevice:      getEnv("CAMERA_DEVICE", "0"),
		CaptureWidth:      getEnvAsInt("CAPTURE_WIDTH", 1280),
		CaptureHeight:     getEnvAsInt("CAPTURE_HEIGHT", 720),
		CaptureFPS:        getEnvAsInt("CAPTURE_FPS", 30),
		WatchPath:         getEnv("WATCH_PATH", ""),
		ProcessingEnabled: getEnvAsBool("PROCESSING_ENABLED", true),
		ProcessingMode:    getEnv("PROCESSING_MODE", "grayscale"),
		RenderWidth:       getEnvAsInt("RENDER_WIDTH", 1280),
		RenderHeight:      getEnvAsInt("RENDER_HEIGHT", 720),
		RenderFPS:         getEnvAsInt("RENDER_FPS", 60),
		RenderQueueSize:   getEnvAsInt("RENDER_QUEUE_SIZE", 8),
		FallbackWidth:     getEnvAsInt("FALLBACK_WIDTH", 800),
		FallbackHeight:    getEnvAsInt("FALLBACK_HEIGHT", 600),
		DatabasePath:      getEnv("DATABASE_PATH", filepath.Join(".", "data", "telemetry.db")),
		FlushInterval:     getEnvAsDuration("FLUSH_INTERVAL", 5*time.Second),
		SampleBufferLimit: getEnvAsInt("SAMPLE_BUFFER_LIMIT", 500),
		LogDirectory:      getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts either a Go duration ("1500ms") or a plain number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds := getEnvAsInt64(key, 0); seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
