// Package transport implements the Socket Session Loop (§4.G): the
// WebSocket upgrade handshake, the per-connection authenticate → accept →
// admit → read-loop → teardown lifecycle, and the adapter that lets a
// *gorilla/websocket.Conn satisfy the room package's Socket contract.
package transport

import (
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client adapts a *websocket.Conn to room.Socket. It is only ever written
// to from the owning Participant's single writer goroutine, so no mutex is
// needed around WriteMessage; gorilla/websocket allows Close and
// WriteControl to run concurrently with that.
type Client struct {
	conn *websocket.Conn
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// WriteMessage implements room.Socket.
func (c *Client) WriteMessage(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close implements room.Socket, sending a close control frame before
// tearing down the underlying TCP connection.
func (c *Client) Close(code int, reason string) error {
	closeMsg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
	return c.conn.Close()
}
