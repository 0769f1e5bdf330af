// Package rate measures frames per second over a one-second window.
package rate

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the reporting cadence.
const DefaultInterval = time.Second

// Clock allows for deterministic testing.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Sample is the window currently being accumulated.
type Sample struct {
	FrameCount        uint64
	WindowStartTimeMs int64
}

// Monitor counts frames from any goroutine and publishes the rate to a
// callback from its own timer goroutine. It starts on construction.
type Monitor struct {
	clock    Clock
	callback func(fps float64)

	frames atomic.Uint64
	fps    atomic.Uint64 // math.Float64bits

	mu          sync.Mutex
	windowStart time.Time
	stopped     bool

	ticker   *time.Ticker
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewMonitor starts a monitor ticking every interval. callback may be nil.
func NewMonitor(clock Clock, interval time.Duration, callback func(fps float64)) *Monitor {
	if clock == nil {
		clock = RealClock{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	m := &Monitor{
		clock:       clock,
		callback:    callback,
		windowStart: clock.Now(),
		ticker:      time.NewTicker(interval),
		done:        make(chan struct{}),
	}

	m.wg.Add(1)
	go m.run()
	return m
}

func (m *Monitor) run() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case <-m.ticker.C:
			m.Tick()
		}
	}
}

// RecordFrame counts one frame. Safe from any goroutine.
func (m *Monitor) RecordFrame() {
	m.frames.Add(1)
}

// Tick closes the current window and publishes its rate. A tick with no
// elapsed time is skipped and leaves the window open.
func (m *Monitor) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	now := m.clock.Now()
	elapsedMs := now.Sub(m.windowStart).Milliseconds()
	if elapsedMs <= 0 {
		return
	}

	frames := m.frames.Swap(0)
	m.windowStart = now

	fps := float64(frames) * 1000 / float64(elapsedMs)
	m.fps.Store(math.Float64bits(fps))

	// Held under mu so that nothing is published once Stop has returned.
	if m.callback != nil {
		m.callback(fps)
	}
}

// Stop cancels the periodic tick. It is idempotent and must not be called
// from the callback.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()

		m.ticker.Stop()
		close(m.done)
		m.wg.Wait()
	})
}

// Stopped reports whether Stop has been called.
func (m *Monitor) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// FPS returns the most recently published rate.
func (m *Monitor) FPS() float64 {
	return math.Float64frombits(m.fps.Load())
}

// Sample returns the window being accumulated.
func (m *Monitor) Sample() Sample {
	m.mu.Lock()
	start := m.windowStart
	m.mu.Unlock()
	return Sample{
		FrameCount:        m.frames.Load(),
		WindowStartTimeMs: start.UnixMilli(),
	}
}
