// Package wsapi adapts a gorilla/websocket connection to the
// signaling.Conn contract and exposes the HTTP handler that upgrades
// incoming requests at /api/ws/webrtc into a rtcsession.Session (spec
// §6.3, SPEC_FULL.md C6). Grounded on the teacher's
// websocket/websocket.go Upgrader/CheckOrigin pattern and webrtc/sfu.go's
// SfuWebsocketHandler.
package wsapi

import (
	"context"

	"github.com/gorilla/websocket"
)

// wsConn adapts *websocket.Conn to signaling.Conn. The upgrade already
// happened by the time one of these is constructed, so Accept is a
// no-op; gorilla requires a single writer, which rtcsession.Session
// already guarantees via its write pump.
type wsConn struct {
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) Accept(ctx context.Context) error {
	return nil
}

func (c *wsConn) ReceiveText(ctx context.Context) (string, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *wsConn) SendText(ctx context.Context, data string) error {
	return c.conn.WriteMessage(websocket.TextMessage, []byte(data))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
