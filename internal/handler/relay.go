package handler

import (
	"net/http"

	"camviewer/internal/dto"
	"camviewer/internal/logger"
	"camviewer/internal/service"
	"camviewer/internal/service/websocket"

	gws "github.com/gorilla/websocket"
)

// welcomeMessage is sent to every client right after the upgrade.
const welcomeMessage = "Connected to camviewer relay"

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = gws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RelayWebsocketHandler accepts producers and viewers on the same endpoint.
// Every client is registered in the hub; whatever a client sends goes to the relay.
func RelayWebsocketHandler(hub *websocket.HubService, relay *service.Relay, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		if err := connection.WriteJSON(dto.Envelope{Type: dto.MessageTypeInfo, Data: welcomeMessage}); err != nil {
			logger.Error("Failed to send welcome message: %v", err)
			connection.Close()
			return
		}

		if !hub.Register(connection) {
			connection.Close()
			return
		}
		defer hub.Unregister(connection)

		logger.Info("Client connected from %s", r.RemoteAddr)

		for {
			_, message, err := connection.ReadMessage()
			if err != nil {
				if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
					logger.Info("Client disconnected normally")
				} else {
					logger.Error("Client disconnected with error: %v", err)
				}
				break
			}

			// Błędne wiadomości są logowane w relay i pomijane
			_ = relay.HandleMessage(connection, message)
		}
	}
}

// HealthHandler reports relay liveness and connected client counts.
func HealthHandler(hub *websocket.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":    "ok",
			"clients":   hub.GetClientCount(),
			"producers": hub.GetProducerCount(),
		}, logger)
	}
}
