package telemetry

import (
	"math"
	"sync"
	"time"

	"camviewer/internal/dto"
	"camviewer/internal/frame"
)

const (
	// StatsFPSCeiling and StatsFPSFloor bound the heuristic max/min FPS.
	StatsFPSCeiling = 30.0
	StatsFPSFloor   = 5.0
)

// Sample is one frame observation. It is immutable once built and passed by value.
type Sample struct {
	TimestampMs      int64
	Width            uint32
	Height           uint32
	FPS              float64
	Mode             frame.Mode
	ProcessingTimeMs int64
}

func (s Sample) data() dto.FrameData {
	return dto.FrameData{
		Timestamp:      s.TimestampMs,
		Width:          s.Width,
		Height:         s.Height,
		FPS:            s.FPS,
		ProcessingMode: int32(s.Mode),
		ProcessingTime: s.ProcessingTimeMs,
	}
}

// Window accumulates samples between two stats reports.
type Window struct {
	mu      sync.Mutex
	started time.Time
	count   int
	fpsSum  float64
	procSum float64
	total   uint64
}

// NewWindow creates a window whose uptime counts from started.
func NewWindow(started time.Time) *Window {
	return &Window{started: started}
}

// Add records one sample.
func (w *Window) Add(s Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.count++
	w.total++
	w.fpsSum += s.FPS
	w.procSum += float64(s.ProcessingTimeMs)
}

// Flush returns the summary of the samples added since the previous flush and
// starts a new window. ok is false when nothing was added.
func (w *Window) Flush(now time.Time) (stats dto.StatsData, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count == 0 {
		return dto.StatsData{}, false
	}
	avg := w.fpsSum / float64(w.count)
	stats = dto.StatsData{
		AverageFPS:            avg,
		MaxFPS:                math.Min(avg*1.2, StatsFPSCeiling),
		MinFPS:                math.Max(avg*0.8, StatsFPSFloor),
		AverageProcessingTime: w.procSum / float64(w.count),
		TotalFrames:           w.total,
		Uptime:                now.Sub(w.started).Milliseconds(),
	}
	w.count, w.fpsSum, w.procSum = 0, 0, 0
	return stats, true
}
