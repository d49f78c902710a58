package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/spikeline/tournament-server/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the frontend origin once it is deployed.
		return true
	},
}

type WebSocketHandler struct {
	hub    *realtime.Hub
	logger *slog.Logger
}

func NewWebSocketHandler(hub *realtime.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

// ServeWs subscribes the client to one change-notification topic. Clients
// connect to /ws/{topic} and re-pull the REST endpoints on every event.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	switch topic {
	case realtime.TopicTeams, realtime.TopicMatches, realtime.TopicSettings:
	default:
		http.Error(w, "unknown topic", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("topic", topic), slog.Any("error", err))
		return
	}

	client := &realtime.Client{
		Hub:   h.hub,
		Conn:  conn,
		Send:  make(chan []byte, 256),
		Topic: topic,
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("websocket client subscribed", slog.String("topic", topic))
}
