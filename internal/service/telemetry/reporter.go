// Package telemetry reports frame and stats samples to the relay over a
// websocket. Nothing in here ever blocks or fails the frame pipeline.
package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"camviewer/internal/config"
	"camviewer/internal/dto"
	"camviewer/internal/frame"
	"camviewer/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	outboxSize     = 64
	writeTimeout   = 2 * time.Second
	reconnectDelay = 3 * time.Second
	statsInterval  = time.Second
)

// Reporter is a best-effort telemetry sink. ReportFrame never blocks: when the
// connection is down, or the outbox is full, the message is dropped.
type Reporter struct {
	url     string
	session string
	dialer  *websocket.Dialer
	logger  *logger.Logger

	window *Window
	outbox chan []byte

	connected atomic.Bool
	sent      atomic.Uint64
	dropped   atomic.Uint64

	reconnectDelay time.Duration
	statsInterval  time.Duration

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// NewReporter creates a reporter for cfg.TelemetryURL. Nothing is dialed
// until Start.
func NewReporter(cfg *config.Config, logger *logger.Logger) *Reporter {
	return &Reporter{
		url:            cfg.TelemetryURL,
		session:        uuid.New().String(),
		dialer:         &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		logger:         logger,
		window:         NewWindow(time.Now()),
		outbox:         make(chan []byte, outboxSize),
		reconnectDelay: reconnectDelay,
		statsInterval:  statsInterval,
	}
}

// Start runs the connection and stats loops until ctx is cancelled or Close is called.
func (r *Reporter) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		ctx, r.cancel = context.WithCancel(ctx)

		r.wg.Add(2)
		go r.connectionLoop(ctx)
		go r.statsLoop(ctx)

		r.logger.Info("📡 Telemetry reporter started (session %s, %s)", r.session, r.url)
	})
}

// ReportFrame queues a frame sample and feeds the stats window.
func (r *Reporter) ReportFrame(width, height uint32, fps float64, mode frame.Mode, processingTime time.Duration) {
	s := Sample{
		TimestampMs:      time.Now().UnixMilli(),
		Width:            width,
		Height:           height,
		FPS:              fps,
		Mode:             mode,
		ProcessingTimeMs: processingTime.Milliseconds(),
	}
	r.Report(s)
}

// Report queues s. Safe from any goroutine.
func (r *Reporter) Report(s Sample) {
	r.window.Add(s)
	if !r.connected.Load() {
		return
	}
	r.enqueue(dto.MessageTypeFrame, s.data())
}

// Connected reports whether the websocket is currently up.
func (r *Reporter) Connected() bool {
	return r.connected.Load()
}

// Session is the id attached to every message of this reporter.
func (r *Reporter) Session() string {
	return r.session
}

// Sent and Dropped count outgoing messages.
func (r *Reporter) Sent() uint64    { return r.sent.Load() }
func (r *Reporter) Dropped() uint64 { return r.dropped.Load() }

// Close stops both loops and closes the connection.
func (r *Reporter) Close() error {
	r.closeOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
		r.logger.Info("📡 Telemetry reporter stopped (%d sent, %d dropped)", r.sent.Load(), r.dropped.Load())
	})
	return nil
}

func (r *Reporter) enqueue(kind string, data any) {
	msg, err := json.Marshal(dto.Envelope{Type: kind, Session: r.session, Data: data})
	if err != nil {
		r.logger.Error("Failed to marshal %s message: %v", kind, err)
		return
	}
	select {
	case r.outbox <- msg:
	default:
		r.dropped.Add(1)
	}
}

func (r *Reporter) statsLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			stats, ok := r.window.Flush(now)
			if ok && r.connected.Load() {
				r.enqueue(dto.MessageTypeStats, stats)
			}
		}
	}
}

func (r *Reporter) connectionLoop(ctx context.Context) {
	defer r.wg.Done()

	failures := 0
	for {
		conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Tylko pierwszy błąd z serii, reszta by zasypała log
			if failures == 0 {
				r.logger.Warning("Telemetry connection to %s failed: %v", r.url, err)
			}
			failures++
		} else {
			failures = 0
			r.logger.Info("📡 Telemetry connected to %s", r.url)
			r.serve(ctx, conn)
			r.logger.Warning("Telemetry disconnected from %s", r.url)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.reconnectDelay):
		}
	}
}

// serve pumps the outbox into conn until the connection breaks or ctx ends.
func (r *Reporter) serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	// Stale messages from a previous connection are not worth sending.
	r.drainOutbox()
	r.connected.Store(true)
	defer r.connected.Store(false)

	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
				time.Now().Add(writeTimeout))
			return
		case err := <-readErr:
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Warning("Telemetry read error: %v", err)
			}
			return
		case msg := <-r.outbox:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				r.dropped.Add(1)
				r.logger.Warning("Telemetry write error: %v", err)
				return
			}
			r.sent.Add(1)
		}
	}
}

func (r *Reporter) drainOutbox() {
	for {
		select {
		case <-r.outbox:
			r.dropped.Add(1)
		default:
			return
		}
	}
}
