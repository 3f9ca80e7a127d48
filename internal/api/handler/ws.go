package handler

import (
	"log"
	"net/http"

	"cinematch/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the HTTP connection and hands it to the hub.
// The connection starts unauthenticated; the client presents its token
// in-band with an "authenticate" event.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("handler: websocket upgrade failed: %v", err)
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn)
	client.Run()
}
