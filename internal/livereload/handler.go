package livereload

import (
	"net/http"

	"github.com/dreschagin/devserve/pkg/logger"
	"github.com/gorilla/websocket"
)

// Handler upgrades /_devserve/reload requests to reload websockets.
type Handler struct {
	hub      *Hub
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, log *logger.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The server already hands out wildcard CORS; the reload
			// socket is just as open.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("reload websocket upgrade failed", err, "remote_addr", r.RemoteAddr)
		return
	}

	client := NewClient(h.hub, conn, h.logger)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
