package websocket

import (
	"context"
	"sync"
	"time"

	"camviewer/internal/config"
	"camviewer/internal/logger"

	"github.com/gorilla/websocket"
)

const writeWait = 2 * time.Second

type registration struct {
	conn *websocket.Conn
	ack  chan struct{}
}

type envelope struct {
	kind string
	data []byte
	from *websocket.Conn
}

// HubService fans telemetry out to every connected viewer. Producers (clients
// that have sent frame or stats messages) never receive broadcasts, and a new
// client is sent the latest remembered message of each kind.
type HubService struct {
	clients    map[*websocket.Conn]bool // true = producer
	broadcast  chan envelope
	register   chan registration
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger

	// Owned by the Run goroutine
	latest map[string][]byte
	kinds  []string
}

func NewHubService(config *config.Config, logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan envelope, 64),
		register:   make(chan registration),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
		latest:     make(map[string][]byte),
	}
}

// Run serves register, unregister and broadcast requests until ctx is
// cancelled, then closes every remaining connection.
func (h *HubService) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.mutex.Lock()
		for client := range h.clients {
			client.Close()
			delete(h.clients, client)
		}
		h.mutex.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case reg := <-h.register:
			h.mutex.Lock()
			h.clients[reg.conn] = false
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client connected. Total: %d", total)
			h.replay(reg.conn)
			close(reg.ack)

		case client := <-h.unregister:
			h.mutex.Lock()
			if producer, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
				if producer {
					h.logger.Info("📴 Producer disconnected")
				}
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client disconnected. Total: %d", total)

		case msg := <-h.broadcast:
			// Stored and fanned out in one step, so a client registered
			// around it gets the message once, by replay or by broadcast.
			if msg.kind != "" {
				h.remember(msg.kind, msg.data)
			}
			h.mutex.Lock()
			for client, producer := range h.clients {
				if client == msg.from || producer {
					continue
				}
				if err := h.write(client, msg.data); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *HubService) replay(client *websocket.Conn) {
	for _, kind := range h.kinds {
		if err := h.write(client, h.latest[kind]); err != nil {
			h.logger.Warning("Failed to replay latest %s message: %v", kind, err)
			return
		}
	}
}

func (h *HubService) write(client *websocket.Conn, data []byte) error {
	client.SetWriteDeadline(time.Now().Add(writeWait))
	return client.WriteMessage(websocket.TextMessage, data)
}

// Register adds client and waits until the latest messages have been
// replayed to it. It returns false if the hub has stopped.
func (h *HubService) Register(client *websocket.Conn) bool {
	reg := registration{conn: client, ack: make(chan struct{})}
	select {
	case h.register <- reg:
	case <-h.done:
		return false
	}
	select {
	case <-reg.ack:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes and closes client.
func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast forwards message to every viewer except from. A non-empty kind
// also makes it the latest message of that kind, replayed to new clients.
// A full broadcast queue drops the message.
func (h *HubService) Broadcast(kind string, message []byte, from *websocket.Conn) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.broadcast <- envelope{kind: kind, data: message, from: from}:
		return true
	case <-h.done:
		return false
	default:
		h.logger.Warning("Broadcast queue full, message dropped")
		return false
	}
}

// remember stores message as the latest of its kind. Replay follows the
// order in which kinds were first seen.
func (h *HubService) remember(kind string, message []byte) {
	if _, ok := h.latest[kind]; !ok {
		h.kinds = append(h.kinds, kind)
	}
	h.latest[kind] = message
}

// MarkProducer flags client as a producer; broadcasts skip it from now on.
func (h *HubService) MarkProducer(client *websocket.Conn) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	producer, ok := h.clients[client]
	if !ok || producer {
		return false
	}
	h.clients[client] = true
	h.logger.Info("📹 Producer identified")
	return true
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// GetProducerCount returns the number of connected producers.
func (h *HubService) GetProducerCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	count := 0
	for _, producer := range h.clients {
		if producer {
			count++
		}
	}
	return count
}
