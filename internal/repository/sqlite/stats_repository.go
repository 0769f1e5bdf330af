package sqlite

import (
	"fmt"
	"time"

	"camviewer/internal/frame"
	"camviewer/internal/model"
)

// StatsRepository implements repository.StatsRepository for SQLite.
type StatsRepository struct {
	db *DB
}

// NewStatsRepository creates a new SQLite stats repository.
func NewStatsRepository(db *DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// InsertBatch adds multiple stats records in a single transaction.
func (r *StatsRepository) InsertBatch(samples []model.StatsSample) error {
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
		INSERT INTO stats_samples (session, received_at, average_fps, max_fps, min_fps, average_processing_time, total_frames, uptime_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.Exec(s.Session, s.ReceivedAt.UTC(), s.AverageFPS, s.MaxFPS, s.MinFPS,
			s.AverageProcessingTime, int64(s.TotalFrames), s.UptimeMs); err != nil {
			return fmt.Errorf("failed to insert stats sample: %w", err)
		}
	}

	return tx.Commit()
}

// Recent returns the newest stats records first.
func (r *StatsRepository) Recent(limit int) ([]model.StatsSample, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Conn().Query(`
		SELECT id, session, received_at, average_fps, max_fps, min_fps, average_processing_time, total_frames, uptime_ms
		FROM stats_samples ORDER BY received_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats samples: %w", err)
	}
	defer rows.Close()

	var samples []model.StatsSample
	for rows.Next() {
		var s model.StatsSample
		var total int64
		if err := rows.Scan(&s.ID, &s.Session, &s.ReceivedAt, &s.AverageFPS, &s.MaxFPS, &s.MinFPS,
			&s.AverageProcessingTime, &total, &s.UptimeMs); err != nil {
			return nil, fmt.Errorf("failed to scan stats sample: %w", err)
		}
		s.TotalFrames = uint64(total)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Summary aggregates every stored frame sample.
func (r *StatsRepository) Summary() (*model.StatsSummary, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	summary := &model.StatsSummary{
		PerMode:  make(map[string]int),
		LastSeen: make(map[string]int64),
	}

	if err := r.db.Conn().QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT session), COALESCE(AVG(fps), 0), COALESCE(AVG(processing_time_ms), 0)
		FROM frame_samples
	`).Scan(&summary.FrameSamples, &summary.Sessions, &summary.AverageFPS, &summary.AverageProcessingTime); err != nil {
		return nil, fmt.Errorf("failed to summarize frame samples: %w", err)
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM stats_samples`).Scan(&summary.StatsSamples); err != nil {
		return nil, fmt.Errorf("failed to count stats samples: %w", err)
	}

	// Frames per processing mode
	rows, err := r.db.Conn().Query(`SELECT mode, COUNT(*) FROM frame_samples GROUP BY mode`)
	if err != nil {
		return nil, fmt.Errorf("failed to group by mode: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mode int32
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			return nil, err
		}
		summary.PerMode[frame.Mode(mode).String()] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Last activity per session
	sessionRows, err := r.db.Conn().Query(`
		SELECT f.session, f.timestamp FROM frame_samples f
		JOIN (SELECT session, MAX(timestamp) AS ts FROM frame_samples GROUP BY session) m
		ON f.session = m.session AND f.timestamp = m.ts
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to group by session: %w", err)
	}
	defer sessionRows.Close()

	for sessionRows.Next() {
		var session string
		var last time.Time
		if err := sessionRows.Scan(&session, &last); err != nil {
			return nil, err
		}
		summary.LastSeen[session] = last.UnixMilli()
	}

	return summary, sessionRows.Err()
}
