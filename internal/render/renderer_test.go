package render

import (
	"context"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"camviewer/internal/frame"
	"camviewer/internal/logger"
)

// guardDevice records how many goroutines were inside the render context at once.
type guardDevice struct {
	*fakeDevice
	active    atomic.Int32
	maxActive atomic.Int32
}

func (g *guardDevice) enter() {
	n := g.active.Add(1)
	for {
		m := g.maxActive.Load()
		if n <= m || g.maxActive.CompareAndSwap(m, n) {
			return
		}
	}
}

func (g *guardDevice) leave() { g.active.Add(-1) }

func (g *guardDevice) Clear(c color.RGBA) {
	g.enter()
	defer g.leave()
	time.Sleep(100 * time.Microsecond)
	g.fakeDevice.Clear(c)
}

func TestRenderer_InlineInvokesAreSerialized(t *testing.T) {
	dev := &guardDevice{fakeDevice: newFakeDevice()}
	sink := NewTextureSink(dev, logger.NewDiscard())
	r := NewRenderer(NewQueue(16), sink, 60, logger.NewDiscard())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(size uint32) {
			defer wg.Done()
			err := r.Invoke(context.Background(), func() {
				dev.enter()
				defer dev.leave()
				if err := sink.UploadPixels(frame.New(size, size)); err != nil {
					t.Errorf("UploadPixels failed: %v", err)
				}
				time.Sleep(200 * time.Microsecond)
			})
			if err != nil {
				t.Errorf("Invoke failed: %v", err)
			}
		}(uint32(4 + i))
	}
	wg.Wait()

	if got := dev.maxActive.Load(); got != 1 {
		t.Errorf("Expected one render-context caller at a time, got %d", got)
	}
}

func TestRenderer_InvokeDoesNotOverlapTicks(t *testing.T) {
	dev := &guardDevice{fakeDevice: newFakeDevice()}
	sink := NewTextureSink(dev, logger.NewDiscard())
	r := NewRenderer(NewQueue(16), sink, 1000, logger.NewDiscard())

	ctx, cancel := context.WithCancel(context.Background())
	var loop sync.WaitGroup
	r.MarkStarted()
	loop.Add(1)
	go func() {
		defer loop.Done()
		r.Run(ctx)
	}()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				err := r.Invoke(context.Background(), func() {
					dev.enter()
					defer dev.leave()
					if err := sink.UploadPixels(frame.New(8, 8)); err != nil {
						t.Errorf("UploadPixels failed: %v", err)
					}
				})
				if err != nil {
					t.Errorf("Invoke failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	cancel()
	loop.Wait()

	if got := dev.maxActive.Load(); got != 1 {
		t.Errorf("Invoke ran alongside a render tick, max callers %d", got)
	}
	if r.Ticks() == 0 {
		t.Error("Expected the loop to tick")
	}
}

func TestRenderer_InvokeAfterStopRunsInline(t *testing.T) {
	sink, _ := newTestSink()
	r := NewRenderer(NewQueue(4), sink, 200, logger.NewDiscard())

	ctx, cancel := context.WithCancel(context.Background())
	r.MarkStarted()
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	cancel()
	<-done

	called := false
	if err := r.Invoke(context.Background(), func() { called = true }); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !called {
		t.Error("Invoke after stop should run inline")
	}
}
