package sqlite

import (
	"fmt"
	"time"

	"camviewer/internal/model"
)

// SampleRepository implements repository.SampleRepository for SQLite.
type SampleRepository struct {
	db *DB
}

// NewSampleRepository creates a new SQLite frame sample repository.
func NewSampleRepository(db *DB) *SampleRepository {
	return &SampleRepository{db: db}
}

// InsertBatch adds multiple frame samples in a single transaction.
// Timestamps are stored in UTC so text ordering matches time ordering.
func (r *SampleRepository) InsertBatch(samples []model.FrameSample) error {
	if len(samples) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO frame_samples (session, timestamp, width, height, fps, mode, processing_time_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.Exec(s.Session, s.Timestamp.UTC(), s.Width, s.Height, s.FPS, s.Mode, s.ProcessingTimeMs); err != nil {
			return fmt.Errorf("failed to insert frame sample: %w", err)
		}
	}

	return tx.Commit()
}

// Recent returns the newest samples first.
func (r *SampleRepository) Recent(limit int) ([]model.FrameSample, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Conn().Query(`
		SELECT id, session, timestamp, width, height, fps, mode, processing_time_ms
		FROM frame_samples ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query frame samples: %w", err)
	}
	defer rows.Close()

	var samples []model.FrameSample
	for rows.Next() {
		var s model.FrameSample
		if err := rows.Scan(&s.ID, &s.Session, &s.Timestamp, &s.Width, &s.Height, &s.FPS, &s.Mode, &s.ProcessingTimeMs); err != nil {
			return nil, fmt.Errorf("failed to scan frame sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Count returns the number of stored frame samples.
func (r *SampleRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM frame_samples`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count frame samples: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes samples captured before cutoff.
func (r *SampleRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM frame_samples WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete frame samples: %w", err)
	}
	return result.RowsAffected()
}
