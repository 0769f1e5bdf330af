package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"camviewer/internal/config"
	"camviewer/internal/dto"
	"camviewer/internal/frame"
	"camviewer/internal/logger"
	"camviewer/internal/render"
	"camviewer/internal/service/pipeline"
	"camviewer/internal/service/rate"
	"camviewer/internal/service/source"
	"camviewer/internal/service/telemetry"
	"camviewer/internal/service/transform"
)

// Viewer owns the live view: capture source, pipeline, render loop and
// telemetry reporter. The control surface talks to it.
type Viewer struct {
	source   source.Source
	pipeline *pipeline.Pipeline
	renderer *render.Renderer
	queue    *render.Queue
	device   *render.SoftwareDevice
	sink     *render.TextureSink
	monitor  *rate.Monitor
	reporter *telemetry.Reporter
	logger   *logger.Logger

	hudFPS atomic.Uint64 // math.Float64bits, written on the render context
	wg     sync.WaitGroup
}

// NewViewer builds the viewer around tr and src. reporter may be nil when
// telemetry is disabled; src may be nil, in which case only the fallback
// pattern is shown.
func NewViewer(cfg *config.Config, logger *logger.Logger, tr transform.FrameTransform, src source.Source, reporter *telemetry.Reporter) *Viewer {
	v := &Viewer{
		source:   src,
		queue:    render.NewQueue(cfg.RenderQueueSize),
		device:   render.NewSoftwareDevice(cfg.RenderWidth, cfg.RenderHeight),
		reporter: reporter,
		logger:   logger,
	}
	v.sink = render.NewTextureSink(v.device, logger)
	v.renderer = render.NewRenderer(v.queue, v.sink, cfg.RenderFPS, logger)
	v.monitor = rate.NewMonitor(rate.RealClock{}, rate.DefaultInterval, v.onFPS)

	var rep pipeline.Reporter
	if reporter != nil {
		rep = reporter
	}
	v.pipeline = pipeline.NewPipeline(tr, v.renderer, v.sink, v.monitor, rep, cfg, logger)
	return v
}

// onFPS runs on the monitor's timer goroutine; the value is handed to the
// render context, which owns the on-screen counter.
func (v *Viewer) onFPS(fps float64) {
	if err := v.renderer.Post(func() {
		v.hudFPS.Store(math.Float64bits(fps))
	}); err != nil && !errors.Is(err, render.ErrQueueClosed) {
		v.logger.Warning("FPS update dropped: %v", err)
	}
}

// Start launches the render loop, the telemetry reporter and the capture
// source. Everything stops when ctx is cancelled.
func (v *Viewer) Start(ctx context.Context) {
	v.renderer.MarkStarted()
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		v.renderer.Run(ctx)
	}()

	if v.reporter != nil {
		v.reporter.Start(ctx)
	}

	if v.source == nil {
		v.pipeline.OnSourceError(source.ErrUnavailable)
		return
	}

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		v.logger.Info("📷 Capture source %s started", v.source.Kind())
		err := v.source.Run(ctx, v.pipeline)
		if err != nil && !errors.Is(err, context.Canceled) {
			v.logger.Error("Capture source %s stopped: %v", v.source.Kind(), err)
			v.pipeline.OnSourceError(err)
		}
	}()
}

// SetEnabled turns the transform stage on or off.
func (v *Viewer) SetEnabled(enabled bool) {
	v.pipeline.SetEnabled(enabled)
}

// SetMode parses and applies a processing mode name.
func (v *Viewer) SetMode(name string) (frame.Mode, error) {
	mode, err := frame.ParseMode(name)
	if err != nil {
		return mode, err
	}
	return mode, v.pipeline.SetMode(mode)
}

// FPS returns the value last delivered to the render context.
func (v *Viewer) FPS() float64 {
	return math.Float64frombits(v.hudFPS.Load())
}

// Status returns a snapshot of the viewer counters.
func (v *Viewer) Status() dto.ViewerStatus {
	state := v.pipeline.State()
	stats := v.pipeline.Stats()
	sink := v.sink.Stats()

	status := dto.ViewerStatus{
		Enabled:           state.Enabled,
		Mode:              state.Mode.String(),
		FPS:               v.FPS(),
		Frames:            stats.Frames,
		Uploads:           stats.Uploads,
		Dropped:           stats.Superseded + stats.Rejected,
		TransformFailures: stats.TransformFailures,
		Fallbacks:         stats.Fallbacks,
		ExternalFrames:    stats.ExternalFrames,
		Source:            "none",
		Texture: dto.TextureStatus{
			Kind:     sink.Kind.String(),
			Width:    sink.Width,
			Height:   sink.Height,
			Failures: sink.Failures,
		},
		RenderTicks: v.renderer.Ticks(),
	}
	if v.source != nil {
		status.Source = string(v.source.Kind())
	}
	if v.reporter != nil {
		status.TelemetryConnected = v.reporter.Connected()
		status.Session = v.reporter.Session()
		status.TelemetryDropped = v.reporter.Dropped()
	}
	return status
}

// Preview encodes the rendered surface as JPEG on the render context.
func (v *Viewer) Preview(ctx context.Context) ([]byte, error) {
	var data []byte
	var encodeErr error
	if err := v.renderer.Invoke(ctx, func() {
		data, encodeErr = v.device.EncodeJPEG()
	}); err != nil {
		return nil, err
	}
	return data, encodeErr
}

// Reinitialize recovers the sink after a GPU resource failure.
func (v *Viewer) Reinitialize(ctx context.Context) error {
	return v.renderer.Invoke(ctx, v.sink.Reinitialize)
}

// Pipeline exposes the pipeline to composition code and tests.
func (v *Viewer) Pipeline() *pipeline.Pipeline {
	return v.pipeline
}

// Renderer exposes the render loop to composition code and tests.
func (v *Viewer) Renderer() *render.Renderer {
	return v.renderer
}

// Close tears the viewer down once the context passed to Start has been
// cancelled: it waits for the render loop and the source, then closes the
// pipeline (monitor, external stream, transform), the reporter and the texture.
func (v *Viewer) Close(ctx context.Context) error {
	v.wg.Wait()

	var errs []error
	if v.source != nil {
		errs = append(errs, v.source.Close())
	}
	errs = append(errs, v.pipeline.Close(ctx))
	if v.reporter != nil {
		errs = append(errs, v.reporter.Close())
	}

	v.queue.Close()
	var destroyErr error
	// Loop is gone, so this runs inline and drains what is left first
	if err := v.renderer.Invoke(ctx, func() { destroyErr = v.sink.Destroy() }); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, destroyErr)

	v.logger.Info("🛑 Viewer stopped")
	return errors.Join(errs...)
}
