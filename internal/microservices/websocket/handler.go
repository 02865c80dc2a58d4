package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// HTTP upgrade handler to WebSocket connections

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// dashboards are first-party and served from other origins in development
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeHTTP upgrades the request, greets the client with WELCOME and starts its pumps.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.closed.Load() {
		http.Error(w, "broker is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response
		b.logger.Warn("websocket_upgrade_failed", "remote_addr", r.RemoteAddr, "error", err.Error())
		return
	}

	client := NewClient(uuid.NewString(), conn, b)
	b.hub.Register(client)
	client.sendFrame(NewFrame(TypeWelcome, WelcomeData{ConnectionID: client.ID}))

	go client.WritePump()
	go client.ReadPump()
}

// WSHandler mounts the broker on a gin route.
func WSHandler(b *Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		b.ServeHTTP(c.Writer, c.Request)
	}
}
