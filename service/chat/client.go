package chat

import (
	"github.com/gorilla/websocket"
)

// Client is one authenticated WebSocket session. A single user may hold
// several at once (devices, tabs); each keeps its own outbound queue
// drained by a single writer goroutine.
type Client struct {
	ConnID   string // unique within this gateway
	Username string // fixed at upgrade time, identity already verified
	WS       *websocket.Conn
	Send     chan []byte // outbound queue, consumed by writePump
}

func NewClient(connID, username string, ws *websocket.Conn, sendQueueSize int) *Client {
	return &Client{
		ConnID:   connID,
		Username: username,
		WS:       ws,
		Send:     make(chan []byte, sendQueueSize),
	}
}
