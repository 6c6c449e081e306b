package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/coder/websocket"
)

// ErrClosedByBackend is returned by Conn.Read once the backend has closed
// the connection.
var ErrClosedByBackend = errors.New("BACKEND_CLOSED: backend closed the connection")

// readLimit bounds one backend message; full snapshots exceed the
// websocket default.
const readLimit = 1 << 20

// Conn is one duplex message connection to the backend.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, payload []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer opens backend connections with coder/websocket.
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(readLimit)
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		if websocket.CloseStatus(err) != -1 {
			return nil, fmt.Errorf("%w: %v", ErrClosedByBackend, err)
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Write(ctx context.Context, payload []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

func (c *wsConn) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "session closed")
	if err != nil && websocket.CloseStatus(err) != -1 {
		return nil
	}
	return err
}
