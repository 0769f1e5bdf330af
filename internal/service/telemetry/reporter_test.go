package telemetry

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"camviewer/internal/config"
	"camviewer/internal/dto"
	"camviewer/internal/frame"
	"camviewer/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type rawEnvelope struct {
	Type    string          `json:"type"`
	Session string          `json:"session"`
	Data    json.RawMessage `json:"data"`
}

// newRelayStub starts a websocket server that forwards every received message to the returned channel.
func newRelayStub(t *testing.T) (*httptest.Server, chan rawEnvelope) {
	t.Helper()
	received := make(chan rawEnvelope, 256)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env rawEnvelope
			if err := json.Unmarshal(msg, &env); err == nil {
				received <- env
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, received
}

func newTestReporter(url string) *Reporter {
	r := NewReporter(&config.Config{TelemetryURL: url}, logger.NewDiscard())
	r.reconnectDelay = 20 * time.Millisecond
	r.statsInterval = 50 * time.Millisecond
	return r
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReporter_SendsFrameAndStats(t *testing.T) {
	srv, received := newRelayStub(t)
	r := newTestReporter("ws" + strings.TrimPrefix(srv.URL, "http"))
	r.Start(context.Background())
	defer r.Close()

	waitFor(t, r.Connected)
	r.ReportFrame(640, 480, 24.5, frame.ModeEdgeDetect, 12*time.Millisecond)

	var gotFrame, gotStats bool
	timeout := time.After(3 * time.Second)
	for !gotFrame || !gotStats {
		select {
		case env := <-received:
			if _, err := uuid.Parse(env.Session); err != nil {
				t.Errorf("Session is not a uuid: %q", env.Session)
			}
			switch env.Type {
			case dto.MessageTypeFrame:
				var fd dto.FrameData
				if err := json.Unmarshal(env.Data, &fd); err != nil {
					t.Fatalf("Bad frame data: %v", err)
				}
				if fd.Width != 640 || fd.Height != 480 || fd.ProcessingMode != 1 || fd.ProcessingTime != 12 {
					t.Errorf("Unexpected frame data %+v", fd)
				}
				gotFrame = true
			case dto.MessageTypeStats:
				var sd dto.StatsData
				if err := json.Unmarshal(env.Data, &sd); err != nil {
					t.Fatalf("Bad stats data: %v", err)
				}
				if sd.TotalFrames != 1 || math.Abs(sd.AverageFPS-24.5) > 1e-9 {
					t.Errorf("Unexpected stats %+v", sd)
				}
				gotStats = true
			}
		case <-timeout:
			t.Fatalf("Timed out (frame=%v stats=%v)", gotFrame, gotStats)
		}
	}
}

func TestReporter_NeverBlocksWithoutConnection(t *testing.T) {
	r := newTestReporter("ws://127.0.0.1:1/ws")
	r.Start(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			r.ReportFrame(64, 48, 30, frame.ModeGrayscale, time.Millisecond)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ReportFrame blocked without a connection")
	}

	if r.Connected() {
		t.Error("Reporter should not be connected")
	}
	if r.Sent() != 0 {
		t.Errorf("Nothing should be sent, got %d", r.Sent())
	}
	r.Close()
	r.Close()
}

func TestReporter_NeverBlocksOnStalledRelay(t *testing.T) {
	// Relay accepts the connection and never reads from it
	stop := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-stop
	}))
	defer srv.Close()
	defer close(stop)

	r := newTestReporter("ws" + strings.TrimPrefix(srv.URL, "http"))
	r.Start(context.Background())
	defer r.Close()

	waitFor(t, r.Connected)

	var slowest time.Duration
	pushed := 0
	for r.Dropped() == 0 && pushed < 500000 {
		start := time.Now()
		r.ReportFrame(1920, 1080, 30, frame.ModeEdgeDetect, 5*time.Millisecond)
		if d := time.Since(start); d > slowest {
			slowest = d
		}
		pushed++
	}

	if pushed <= outboxSize {
		t.Errorf("Expected more than %d frames before a drop, got %d", outboxSize, pushed)
	}
	if r.Dropped() == 0 {
		t.Fatalf("Expected dropped messages after %d frames to a stalled relay", pushed)
	}
	if slowest > 250*time.Millisecond {
		t.Errorf("ReportFrame blocked for %v", slowest)
	}
}

func TestReporter_CloseWithoutStart(t *testing.T) {
	r := newTestReporter("ws://127.0.0.1:1/ws")
	if err := r.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestReporter_ReconnectsAfterDrop(t *testing.T) {
	var accepted atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Pierwsze połączenie zrywamy od razu
		if accepted.Add(1) == 1 {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	r := newTestReporter("ws" + strings.TrimPrefix(srv.URL, "http"))
	r.Start(context.Background())
	defer r.Close()

	waitFor(t, func() bool { return accepted.Load() >= 2 && r.Connected() })
}

func TestWindow_StatsBand(t *testing.T) {
	start := time.Unix(1000, 0)
	tests := []struct {
		name    string
		fps     []float64
		wantAvg float64
		wantMax float64
		wantMin float64
	}{
		{"normal", []float64{20, 20}, 20, 24, 16},
		{"fast clamps max", []float64{30, 30}, 30, 30, 24},
		{"slow clamps min", []float64{4, 6}, 5, 6, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWindow(start)
			for _, f := range tt.fps {
				w.Add(Sample{FPS: f, ProcessingTimeMs: 10})
			}
			stats, ok := w.Flush(start.Add(2 * time.Second))
			if !ok {
				t.Fatal("Expected stats")
			}
			if math.Abs(stats.AverageFPS-tt.wantAvg) > 1e-9 ||
				math.Abs(stats.MaxFPS-tt.wantMax) > 1e-9 ||
				math.Abs(stats.MinFPS-tt.wantMin) > 1e-9 {
				t.Errorf("Got avg=%v max=%v min=%v", stats.AverageFPS, stats.MaxFPS, stats.MinFPS)
			}
			if stats.Uptime != 2000 {
				t.Errorf("Expected uptime 2000ms, got %d", stats.Uptime)
			}
			if stats.AverageProcessingTime != 10 {
				t.Errorf("Expected processing time 10, got %v", stats.AverageProcessingTime)
			}
		})
	}
}

func TestWindow_EmptyAndTotal(t *testing.T) {
	w := NewWindow(time.Now())
	if _, ok := w.Flush(time.Now()); ok {
		t.Error("Empty window should not produce stats")
	}

	w.Add(Sample{FPS: 10})
	w.Flush(time.Now())
	w.Add(Sample{FPS: 10})
	w.Add(Sample{FPS: 10})
	stats, _ := w.Flush(time.Now())
	if stats.TotalFrames != 3 {
		t.Errorf("TotalFrames should be cumulative, got %d", stats.TotalFrames)
	}
}
