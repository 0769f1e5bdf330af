package storage

import (
	"context"
	"sync"
	"time"

	"camviewer/internal/config"
	"camviewer/internal/dto"
	"camviewer/internal/logger"
	"camviewer/internal/model"
	"camviewer/internal/repository"
)

const (
	// DefaultBufferLimit bounds the number of samples held between flushes.
	DefaultBufferLimit = 500
	// DefaultFlushInterval defines how often buffered samples are written.
	DefaultFlushInterval = 5 * time.Second
)

// SampleBuffer buffers telemetry samples in memory and periodically flushes them to the database.
type SampleBuffer struct {
	frames   []model.FrameSample
	stats    []model.StatsSample
	limit    int
	interval time.Duration
	dropped  int
	mu       sync.Mutex

	logger     *logger.Logger
	sampleRepo repository.SampleRepository
	statsRepo  repository.StatsRepository
	now        func() time.Time
}

// NewSampleBuffer creates a new SampleBuffer backed by the given repositories.
func NewSampleBuffer(config *config.Config, logger *logger.Logger, sampleRepo repository.SampleRepository, statsRepo repository.StatsRepository) *SampleBuffer {
	limit := config.SampleBufferLimit
	if limit <= 0 {
		limit = DefaultBufferLimit
	}
	interval := config.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}

	return &SampleBuffer{
		frames:     make([]model.FrameSample, 0),
		stats:      make([]model.StatsSample, 0),
		limit:      limit,
		interval:   interval,
		logger:     logger,
		sampleRepo: sampleRepo,
		statsRepo:  statsRepo,
		now:        time.Now,
	}
}

// Run starts a ticker loop that periodically flushes samples. The buffer is
// flushed one last time when ctx is cancelled.
func (s *SampleBuffer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// AddFrame appends a frame sample reported by session.
func (s *SampleBuffer) AddFrame(session string, data dto.FrameData) {
	ts := time.UnixMilli(data.Timestamp)
	if data.Timestamp <= 0 {
		ts = s.now()
	}

	s.add(func() {
		s.frames = append(s.frames, model.FrameSample{
			Session:          session,
			Timestamp:        ts,
			Width:            data.Width,
			Height:           data.Height,
			FPS:              data.FPS,
			Mode:             data.ProcessingMode,
			ProcessingTimeMs: data.ProcessingTime,
		})
	})
}

// AddStats appends a stats summary reported by session.
func (s *SampleBuffer) AddStats(session string, data dto.StatsData) {
	receivedAt := s.now()

	s.add(func() {
		s.stats = append(s.stats, model.StatsSample{
			Session:               session,
			ReceivedAt:            receivedAt,
			AverageFPS:            data.AverageFPS,
			MaxFPS:                data.MaxFPS,
			MinFPS:                data.MinFPS,
			AverageProcessingTime: data.AverageProcessingTime,
			TotalFrames:           data.TotalFrames,
			UptimeMs:              data.Uptime,
		})
	})
}

func (s *SampleBuffer) add(appendFn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames)+len(s.stats) >= s.limit {
		// Loguj tylko pierwszy odrzucony wpis do następnego zapisu
		if s.dropped == 0 {
			s.logger.Warning("Sample buffer full (%d), dropping samples until next flush", s.limit)
		}
		s.dropped++
		return
	}
	appendFn()
}

// Flush writes buffered samples to the repositories and resets the buffer.
// Samples that fail to be written are dropped.
func (s *SampleBuffer) Flush() {
	s.mu.Lock()
	frames := s.frames
	stats := s.stats
	dropped := s.dropped
	s.frames = make([]model.FrameSample, 0, len(frames))
	s.stats = make([]model.StatsSample, 0, len(stats))
	s.dropped = 0
	s.mu.Unlock()

	if len(frames) == 0 && len(stats) == 0 {
		return
	}

	if s.sampleRepo != nil && len(frames) > 0 {
		if err := s.sampleRepo.InsertBatch(frames); err != nil {
			s.logger.Error("Error saving %d frame samples to database: %v", len(frames), err)
			frames = nil
		}
	}
	if s.statsRepo != nil && len(stats) > 0 {
		if err := s.statsRepo.InsertBatch(stats); err != nil {
			s.logger.Error("Error saving %d stats samples to database: %v", len(stats), err)
			stats = nil
		}
	}

	if dropped > 0 {
		s.logger.Warning("Dropped %d samples since last flush", dropped)
	}
	s.logger.Info("💾 Flushed %d frame and %d stats samples", len(frames), len(stats))
}

// Pending returns the number of buffered samples.
func (s *SampleBuffer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames) + len(s.stats)
}
