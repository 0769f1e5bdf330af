package render

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"camviewer/internal/logger"
)

// Renderer is the render context: one goroutine, pinned to its OS thread,
// that drains the work queue and draws once per tick.
type Renderer struct {
	queue    *Queue
	sink     *TextureSink
	interval time.Duration
	logger   *logger.Logger

	// ctxMu is held by whichever goroutine currently acts as the render
	// context: the loop for each tick, or an inline Invoke caller.
	ctxMu   sync.Mutex
	started atomic.Bool
	running atomic.Bool
	done    chan struct{}
	ticks   atomic.Uint64
}

// NewRenderer creates a renderer drawing at fps frames per second.
func NewRenderer(queue *Queue, sink *TextureSink, fps int, logger *logger.Logger) *Renderer {
	if fps <= 0 {
		fps = 60
	}
	return &Renderer{
		queue:    queue,
		sink:     sink,
		interval: time.Second / time.Duration(fps),
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Run is the render loop. It returns when ctx is cancelled, after a final drain.
func (r *Renderer) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	r.started.Store(true)
	r.running.Store(true)
	r.logger.Info("🎬 Render loop started (%v per frame)", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	defer func() {
		r.ctxMu.Lock()
		r.running.Store(false)
		r.queue.Drain()
		close(r.done)
		r.ctxMu.Unlock()
		r.logger.Info("🛑 Render loop stopped after %d ticks", r.ticks.Load())
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Tick drains pending work and draws one frame. Render context only.
func (r *Renderer) Tick() {
	r.ctxMu.Lock()
	defer r.ctxMu.Unlock()
	r.queue.Drain()
	// Draw failures are logged by the sink; the loop keeps going.
	_ = r.sink.Draw()
	r.ticks.Add(1)
}

// Invoke runs fn on the render context and waits for it. Once Run has been
// started fn goes through the queue; before that, and after the loop has
// stopped, the caller becomes the render context and fn runs inline.
func (r *Renderer) Invoke(ctx context.Context, fn func()) error {
	if !r.loopActive() {
		r.runInline(fn)
		return nil
	}

	finished := make(chan struct{})
	if err := r.queue.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		if r.stopped() {
			// Queue closed during teardown, the loop is gone
			r.runInline(fn)
			return nil
		}
		return err
	}

	select {
	case <-finished:
		return nil
	case <-r.done:
		// The final drain of Run may already have run it
		r.ctxMu.Lock()
		r.queue.Drain()
		r.ctxMu.Unlock()
		<-finished
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarkStarted tells Invoke that Run is about to start on another goroutine.
// Callers that spawn Run call it first, so no Invoke slips in inline while
// the loop is ticking.
func (r *Renderer) MarkStarted() {
	r.started.Store(true)
}

func (r *Renderer) runInline(fn func()) {
	r.ctxMu.Lock()
	defer r.ctxMu.Unlock()
	r.queue.Drain()
	fn()
}

func (r *Renderer) loopActive() bool {
	return r.started.Load() && !r.stopped()
}

func (r *Renderer) stopped() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Post queues job for the next tick.
func (r *Renderer) Post(job Job) error {
	return r.queue.Post(job)
}

// PostLatest queues job under key, replacing a pending job with the same key.
func (r *Renderer) PostLatest(key string, job Job) (bool, error) {
	return r.queue.PostLatest(key, job)
}

// Running reports whether the render loop is active.
func (r *Renderer) Running() bool {
	return r.running.Load()
}

// Ticks returns the number of rendered frames.
func (r *Renderer) Ticks() uint64 {
	return r.ticks.Load()
}
