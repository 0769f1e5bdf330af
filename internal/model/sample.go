package model

import "time"

// FrameSample is a persisted frame telemetry record.
type FrameSample struct {
	ID               int64     `json:"id"`
	Session          string    `json:"session"`
	Timestamp        time.Time `json:"timestamp"`
	Width            uint32    `json:"width"`
	Height           uint32    `json:"height"`
	FPS              float64   `json:"fps"`
	Mode             int32     `json:"mode"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}

// StatsSample is a persisted stats summary record.
type StatsSample struct {
	ID                    int64     `json:"id"`
	Session               string    `json:"session"`
	ReceivedAt            time.Time `json:"received_at"`
	AverageFPS            float64   `json:"average_fps"`
	MaxFPS                float64   `json:"max_fps"`
	MinFPS                float64   `json:"min_fps"`
	AverageProcessingTime float64   `json:"average_processing_time"`
	TotalFrames           uint64    `json:"total_frames"`
	UptimeMs              int64     `json:"uptime_ms"`
}

// StatsSummary aggregates every stored sample.
type StatsSummary struct {
	Sessions              int              `json:"sessions"`
	FrameSamples          int              `json:"frame_samples"`
	StatsSamples          int              `json:"stats_samples"`
	AverageFPS            float64          `json:"average_fps"`
	AverageProcessingTime float64          `json:"average_processing_time"`
	PerMode               map[string]int   `json:"per_mode"`
	LastSeen              map[string]int64 `json:"last_seen"`
}
