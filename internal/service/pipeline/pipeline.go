// Package pipeline moves frames from a capture source through the optional
// transform to the texture sink on the render context.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"camviewer/internal/config"
	"camviewer/internal/frame"
	"camviewer/internal/logger"
	"camviewer/internal/render"
	"camviewer/internal/service/transform"
)

// uploadKey groups pending uploads; only the newest pending one survives.
const uploadKey = "upload"

var ErrClosed = errors.New("pipeline closed")

// FrameCounter is the rate monitor as seen by the pipeline.
type FrameCounter interface {
	RecordFrame()
	FPS() float64
	Stop()
}

// Reporter is the telemetry sink. Implementations must not block.
type Reporter interface {
	ReportFrame(width, height uint32, fps float64, mode frame.Mode, processingTime time.Duration)
}

// State is the processing configuration applied to a frame. It is replaced
// as a whole, so a frame always sees a consistent enabled/mode pair.
type State struct {
	Enabled bool
	Mode    frame.Mode
}

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Frames            uint64
	Transformed       uint64
	TransformFailures uint64
	Uploads           uint64
	UploadFailures    uint64
	Superseded        uint64
	Rejected          uint64
	Fallbacks         uint64
	ExternalFrames    uint64
}

// Pipeline is the single path from "a frame became available" to "a frame
// is visible". OnFrameAvailable, SetEnabled and SetMode are safe from any
// goroutine; every sink call is marshaled onto the render context.
type Pipeline struct {
	transform transform.FrameTransform
	renderer  *render.Renderer
	sink      *render.TextureSink
	monitor   FrameCounter
	reporter  Reporter
	logger    *logger.Logger

	state atomic.Pointer[State]

	mu       sync.Mutex
	lastGood *frame.Frame
	fallback *frame.Frame

	fallbackWidth  uint32
	fallbackHeight uint32
	sourceFailing  atomic.Bool
	transformBad   atomic.Bool
	closed         atomic.Bool
	seq            atomic.Uint64

	frames            atomic.Uint64
	transformed       atomic.Uint64
	transformFailures atomic.Uint64
	uploads           atomic.Uint64
	uploadFailures    atomic.Uint64
	superseded        atomic.Uint64
	rejected          atomic.Uint64
	fallbacks         atomic.Uint64
	externalFrames    atomic.Uint64
}

// NewPipeline wires the stages together. reporter may be nil.
func NewPipeline(tr transform.FrameTransform, renderer *render.Renderer, sink *render.TextureSink,
	monitor FrameCounter, reporter Reporter, cfg *config.Config, logger *logger.Logger) *Pipeline {
	mode, err := frame.ParseMode(cfg.ProcessingMode)
	if err != nil {
		logger.Warning("%v, using %v", err, mode)
	}

	p := &Pipeline{
		transform:      tr,
		renderer:       renderer,
		sink:           sink,
		monitor:        monitor,
		reporter:       reporter,
		logger:         logger,
		fallbackWidth:  uint32(cfg.FallbackWidth),
		fallbackHeight: uint32(cfg.FallbackHeight),
	}
	p.state.Store(&State{Enabled: cfg.ProcessingEnabled, Mode: mode})

	logger.Info("🎬 Pipeline ready (processing %v, mode %v)", cfg.ProcessingEnabled, mode)
	return p
}

// OnFrameAvailable runs one frame through the pipeline. The pipeline takes
// ownership of f. Nil and zero-sized frames are ignored.
func (p *Pipeline) OnFrameAvailable(f *frame.Frame) {
	if p.closed.Load() {
		return
	}
	if err := f.Validate(); err != nil {
		if !f.Empty() {
			p.logger.Warning("Dropping malformed frame: %v", err)
		}
		return
	}
	f.Seq = p.seq.Add(1)

	// Stan czytany raz na klatkę
	st := *p.state.Load()

	out := f
	var processingTime time.Duration
	if st.Enabled {
		start := time.Now()
		result, err := p.transform.Apply(f, st.Mode)
		processingTime = time.Since(start)

		if err == nil {
			err = result.Validate()
		}
		if err != nil {
			p.transformFailures.Add(1)
			if !p.transformBad.Swap(true) {
				p.logger.Warning("Transform %v failed, showing unprocessed frames: %v", st.Mode, err)
			}
		} else {
			if p.transformBad.Swap(false) {
				p.logger.Info("Transform %v recovered", st.Mode)
			}
			p.transformed.Add(1)
			p.setLastGood(result)
			out = result
		}
	}

	p.forward(out)
	p.sourceFailing.Store(false)

	p.frames.Add(1)
	p.monitor.RecordFrame()

	if p.reporter != nil {
		p.reporter.ReportFrame(out.Width, out.Height, p.monitor.FPS(), st.Mode, processingTime)
	}
}

// SetEnabled switches processing on or off starting with the next frame.
func (p *Pipeline) SetEnabled(enabled bool) {
	if !p.update(func(s *State) { s.Enabled = enabled }) {
		return
	}
	if enabled {
		p.logger.Info("Processing enabled")
	} else {
		p.logger.Info("Processing disabled")
	}
}

// SetMode selects the transform mode starting with the next frame.
func (p *Pipeline) SetMode(mode frame.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown processing mode %d", int32(mode))
	}
	if p.update(func(s *State) { s.Mode = mode }) {
		p.logger.Info("Processing mode set to %v", mode)
	}
	return nil
}

// update applies fn to a copy of the state and swaps it in. It reports
// whether the state changed.
func (p *Pipeline) update(fn func(*State)) bool {
	for {
		old := p.state.Load()
		next := *old
		fn(&next)
		if next == *old {
			return false
		}
		if p.state.CompareAndSwap(old, &next) {
			return true
		}
	}
}

// State returns the current processing configuration.
func (p *Pipeline) State() State {
	return *p.state.Load()
}

// LastGoodFrame returns a copy of the last successfully transformed frame, or nil.
func (p *Pipeline) LastGoodFrame() *frame.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastGood.Clone()
}

func (p *Pipeline) setLastGood(f *frame.Frame) {
	c := f.Clone()
	p.mu.Lock()
	p.lastGood = c
	p.mu.Unlock()
}

// ShowFallbackPattern displays the procedural test pattern, bypassing the transform.
func (p *Pipeline) ShowFallbackPattern(width, height uint32) {
	if p.closed.Load() {
		return
	}
	if width == 0 || height == 0 {
		return
	}

	p.mu.Lock()
	if p.fallback == nil || p.fallback.Width != width || p.fallback.Height != height {
		p.fallback = frame.FallbackPattern(width, height)
	}
	// The cached pattern is never written after creation, so the sink may read it directly.
	pattern := p.fallback
	p.mu.Unlock()

	p.fallbacks.Add(1)
	p.forward(pattern)
}

// OnSourceError reports that the capture source failed. The fallback pattern
// is shown once per failure streak; the next real frame ends the streak.
func (p *Pipeline) OnSourceError(err error) {
	if p.closed.Load() {
		return
	}
	if p.sourceFailing.Swap(true) {
		return
	}
	p.logger.Warning("Capture source failed, showing fallback pattern: %v", err)
	p.ShowFallbackPattern(p.fallbackWidth, p.fallbackHeight)
}

// AttachExternalStream binds an externally updated image to the sink. Frames
// of that stream then arrive through OnExternalFrame and skip the transform.
func (p *Pipeline) AttachExternalStream(ctx context.Context, img render.ExternalImage, m render.Matrix) error {
	if p.closed.Load() {
		return ErrClosed
	}
	var bindErr error
	if err := p.renderer.Invoke(ctx, func() {
		bindErr = p.sink.BindExternalStream(img, m)
	}); err != nil {
		return err
	}
	if bindErr != nil {
		return bindErr
	}
	p.logger.Info("External stream attached")
	return nil
}

// OnExternalFrame records that the bound stream produced a new image.
func (p *Pipeline) OnExternalFrame(width, height uint32) {
	if p.closed.Load() {
		return
	}
	p.sourceFailing.Store(false)
	p.externalFrames.Add(1)
	p.frames.Add(1)
	p.monitor.RecordFrame()

	if p.reporter != nil {
		p.reporter.ReportFrame(width, height, p.monitor.FPS(), frame.ModePassthrough, 0)
	}
}

// forward hands f to the sink on the render context.
func (p *Pipeline) forward(f *frame.Frame) {
	superseded, err := p.renderer.PostLatest(uploadKey, func() {
		if p.closed.Load() {
			return
		}
		if err := p.sink.UploadPixels(f); err != nil {
			p.uploadFailures.Add(1)
			return
		}
		p.uploads.Add(1)
	})
	if superseded {
		p.superseded.Add(1)
	}
	if err != nil {
		p.rejected.Add(1)
	}
}

// Stats returns the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Frames:            p.frames.Load(),
		Transformed:       p.transformed.Load(),
		TransformFailures: p.transformFailures.Load(),
		Uploads:           p.uploads.Load(),
		UploadFailures:    p.uploadFailures.Load(),
		Superseded:        p.superseded.Load(),
		Rejected:          p.rejected.Load(),
		Fallbacks:         p.fallbacks.Load(),
		ExternalFrames:    p.externalFrames.Load(),
	}
}

// Closed reports whether teardown has begun.
func (p *Pipeline) Closed() bool {
	return p.closed.Load()
}

// Close tears the pipeline down: the rate monitor stops, then the external
// stream is released on the render context, then the transform is released.
// Later calls return nil without doing anything.
func (p *Pipeline) Close(ctx context.Context) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.monitor.Stop()

	var errs []error
	var releaseErr error
	if err := p.renderer.Invoke(ctx, func() {
		releaseErr = p.sink.ReleaseExternalStream()
	}); err != nil {
		errs = append(errs, fmt.Errorf("release external stream: %w", err))
	}
	if releaseErr != nil {
		errs = append(errs, fmt.Errorf("release external stream: %w", releaseErr))
	}

	if err := p.transform.Close(); err != nil {
		errs = append(errs, fmt.Errorf("release transform: %w", err))
	}

	p.logger.Info("🛑 Pipeline closed after %d frames", p.frames.Load())
	return errors.Join(errs...)
}
