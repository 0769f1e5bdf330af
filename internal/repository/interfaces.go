package repository

import (
	"time"

	"camviewer/internal/model"
)

// SampleRepository defines the interface for frame telemetry records.
type SampleRepository interface {
	// Create operations
	InsertBatch(samples []model.FrameSample) error

	// Read operations
	Recent(limit int) ([]model.FrameSample, error)
	Count() (int, error)

	// Delete operations
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// StatsRepository defines the interface for stats summary records.
type StatsRepository interface {
	// Create operations
	InsertBatch(samples []model.StatsSample) error

	// Read operations
	Recent(limit int) ([]model.StatsSample, error)
	Summary() (*model.StatsSummary, error)
}
