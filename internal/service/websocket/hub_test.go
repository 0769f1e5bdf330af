package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"camviewer/internal/config"
	"camviewer/internal/logger"

	"github.com/gorilla/websocket"
)

// newHubServer runs a hub behind a websocket endpoint and hands every
// server-side connection to the returned channel once it is registered.
func newHubServer(t *testing.T) (*HubService, *httptest.Server, chan *websocket.Conn, context.CancelFunc) {
	t.Helper()

	hub := NewHubService(&config.Config{}, logger.NewDiscard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	conns := make(chan *websocket.Conn, 8)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if !hub.Register(conn) {
			conn.Close()
			return
		}
		defer hub.Unregister(conn)
		conns <- conn

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv, conns, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Failed to dial hub: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	return string(msg)
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, msg, err := conn.ReadMessage(); err == nil {
		t.Fatalf("Expected no message, got %s", msg)
	}
}

func TestHub_BroadcastSkipsSenderAndProducers(t *testing.T) {
	hub, srv, conns, _ := newHubServer(t)

	producer := dial(t, srv)
	serverProducer := <-conns
	otherProducer := dial(t, srv)
	serverOther := <-conns
	viewer1 := dial(t, srv)
	<-conns
	viewer2 := dial(t, srv)
	<-conns

	if !hub.MarkProducer(serverProducer) {
		t.Fatal("First MarkProducer should report a change")
	}
	if hub.MarkProducer(serverProducer) {
		t.Error("Second MarkProducer should be a no-op")
	}
	hub.MarkProducer(serverOther)

	if got := hub.GetProducerCount(); got != 2 {
		t.Errorf("Expected 2 producers, got %d", got)
	}

	hub.Broadcast("", []byte(`{"type":"frame"}`), serverProducer)

	if got := readText(t, viewer1); got != `{"type":"frame"}` {
		t.Errorf("Viewer 1 got %s", got)
	}
	if got := readText(t, viewer2); got != `{"type":"frame"}` {
		t.Errorf("Viewer 2 got %s", got)
	}
	expectSilence(t, producer)
	expectSilence(t, otherProducer)
}

func TestHub_RegisterReplaysLatest(t *testing.T) {
	hub, srv, conns, _ := newHubServer(t)

	first := dial(t, srv)
	<-conns

	hub.Broadcast("frame", []byte("frame-1"), nil)
	hub.Broadcast("stats", []byte("stats-1"), nil)
	hub.Broadcast("frame", []byte("frame-2"), nil)
	for _, want := range []string{"frame-1", "stats-1", "frame-2"} {
		if got := readText(t, first); got != want {
			t.Fatalf("Expected %s, got %s", want, got)
		}
	}

	client := dial(t, srv)
	<-conns

	// Kolejność rodzajów jak przy pierwszym zapamiętaniu
	if got := readText(t, client); got != "frame-2" {
		t.Errorf("Expected latest frame first, got %s", got)
	}
	if got := readText(t, client); got != "stats-1" {
		t.Errorf("Expected latest stats second, got %s", got)
	}
	expectSilence(t, client)
}

func TestHub_RegisterDuringBroadcastDeliversOnce(t *testing.T) {
	hub, srv, conns, _ := newHubServer(t)

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		for i := 0; i < 40; i++ {
			hub.Broadcast("frame", []byte(fmt.Sprintf("frame-%d", i)), nil)
			time.Sleep(time.Millisecond)
		}
	}()

	client := dial(t, srv)
	<-conns
	<-sent
	hub.Broadcast("", []byte("end"), nil)

	seen := make(map[string]bool)
	for {
		msg := readText(t, client)
		if msg == "end" {
			break
		}
		if seen[msg] {
			t.Fatalf("Message %s delivered twice", msg)
		}
		seen[msg] = true
	}
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, srv, conns, _ := newHubServer(t)

	client := dial(t, srv)
	<-conns
	if hub.GetClientCount() != 1 {
		t.Fatalf("Expected 1 client, got %d", hub.GetClientCount())
	}

	client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Client was not unregistered, count %d", hub.GetClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, srv, conns, cancel := newHubServer(t)

	client := dial(t, srv)
	<-conns

	cancel()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := client.ReadMessage(); err == nil {
		t.Fatal("Expected connection to be closed after hub stop")
	}
	if hub.Register(nil) {
		t.Error("Register should fail after the hub stopped")
	}
	if hub.Broadcast("frame", []byte("late"), nil) {
		t.Error("Broadcast should fail after the hub stopped")
	}
}
