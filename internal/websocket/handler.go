package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the connection and blocks until it closes. initial, when non-nil, is
// queued before any hub traffic.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID string, initial []byte) {
	client := NewClient(hub, c, sessionID)
	if initial != nil {
		client.Send <- initial
	}
	hub.Register(client)

	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
