package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"camviewer/internal/dto"
	"camviewer/internal/logger"
	"camviewer/internal/service/storage"
	"camviewer/internal/service/websocket"

	gws "github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// anonymousSession tags messages from producers that did not send a session id.
const anonymousSession = "anonymous"

var ErrInvalidMessage = errors.New("invalid telemetry message")

// Relay routes telemetry from producers to viewers and into storage.
type Relay struct {
	hub    *websocket.HubService
	buffer *storage.SampleBuffer
	logger *logger.Logger

	frames  atomic.Uint64
	stats   atomic.Uint64
	invalid atomic.Uint64
}

// NewRelay creates a Relay. buffer may be nil when persistence is disabled.
func NewRelay(hub *websocket.HubService, buffer *storage.SampleBuffer, logger *logger.Logger) *Relay {
	return &Relay{
		hub:    hub,
		buffer: buffer,
		logger: logger,
	}
}

// HandleMessage processes one message received from conn. Unknown or
// malformed messages are logged and ignored.
func (r *Relay) HandleMessage(conn *gws.Conn, message []byte) error {
	if !gjson.ValidBytes(message) {
		r.invalid.Add(1)
		r.logger.Warning("Invalid JSON message ignored (%d bytes)", len(message))
		return ErrInvalidMessage
	}

	fields := gjson.GetManyBytes(message, "type", "session", "data")
	kind, session, data := fields[0].String(), fields[1].String(), fields[2]
	if session == "" {
		session = anonymousSession
	}

	switch kind {
	case dto.MessageTypeFrame:
		var frame dto.FrameData
		if err := decodeData(data, &frame); err != nil {
			r.invalid.Add(1)
			r.logger.Warning("Malformed frame message from %s: %v", session, err)
			return err
		}
		r.frames.Add(1)
		r.forward(conn, kind, message)
		if r.buffer != nil {
			r.buffer.AddFrame(session, frame)
		}

	case dto.MessageTypeStats:
		var stats dto.StatsData
		if err := decodeData(data, &stats); err != nil {
			r.invalid.Add(1)
			r.logger.Warning("Malformed stats message from %s: %v", session, err)
			return err
		}
		r.stats.Add(1)
		r.forward(conn, kind, message)
		if r.buffer != nil {
			r.buffer.AddStats(session, stats)
		}

	default:
		r.invalid.Add(1)
		r.logger.Warning("Unknown message type %q ignored", kind)
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, kind)
	}

	return nil
}

func (r *Relay) forward(conn *gws.Conn, kind string, message []byte) {
	if conn != nil {
		r.hub.MarkProducer(conn)
	}
	r.hub.Broadcast(kind, message, conn)
}

func decodeData(data gjson.Result, v any) error {
	if !data.IsObject() {
		return fmt.Errorf("%w: missing data object", ErrInvalidMessage)
	}
	return json.Unmarshal([]byte(data.Raw), v)
}

// Counts returns received frame, stats and rejected message counts.
func (r *Relay) Counts() (frames, stats, invalid uint64) {
	return r.frames.Load(), r.stats.Load(), r.invalid.Load()
}
