package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/reqtrail/reqtrail/internal/pkg/logger"
	"github.com/reqtrail/reqtrail/internal/service"
)

// StreamHandler pushes every newly captured record to websocket subscribers.
type StreamHandler struct {
	svc      *service.HistoryService
	upgrader websocket.Upgrader
}

func NewStreamHandler(svc *service.HistoryService) *StreamHandler {
	return &StreamHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *StreamHandler) Tail(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch, cancel := h.svc.Subscribe()
	defer cancel()

	// Read pump: we expect no client messages, but reading is how we learn
	// the peer went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for rec := range ch {
		if err := conn.WriteJSON(rec); err != nil {
			return
		}
	}
}
