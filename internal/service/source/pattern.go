package source

import (
	"context"
	"time"

	"camviewer/internal/frame"
	"camviewer/internal/logger"
)

// patternStep is how far the synthetic pattern scrolls per frame, in pixels.
const patternStep = 4

// PatternSource produces a scrolling test pattern without any camera.
type PatternSource struct {
	width, height uint32
	interval      time.Duration
	logger        *logger.Logger
}

// NewPatternSource creates a width x height pattern source at fps frames per second.
func NewPatternSource(width, height uint32, fps int, logger *logger.Logger) *PatternSource {
	if fps <= 0 {
		fps = 30
	}
	return &PatternSource{
		width:    width,
		height:   height,
		interval: time.Second / time.Duration(fps),
		logger:   logger,
	}
}

func (s *PatternSource) Kind() Kind { return KindPattern }

func (s *PatternSource) Run(ctx context.Context, c Consumer) error {
	s.logger.Info("🧪 Synthetic pattern source %dx%d every %v", s.width, s.height, s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	offset := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.OnFrameAvailable(frame.MovingPattern(s.width, s.height, offset))
			offset += patternStep
		}
	}
}

func (s *PatternSource) Close() error { return nil }
