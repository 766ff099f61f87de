package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/cardbattle/session-server/internal/wire"
)

// WSConn is a Conn over a WebSocket. Each text message may carry any number
// of frames, or part of one.
type WSConn struct {
	conn        *websocket.Conn
	remote      string
	readTimeout time.Duration
}

// NewWSConn wraps c and lifts its read limit to wire.MaxBufferSize so a
// message is never refused that a Decoder would still accept.
func NewWSConn(c *websocket.Conn, remote string, readTimeout time.Duration) *WSConn {
	c.SetReadLimit(wire.MaxBufferSize)
	return &WSConn{conn: c, remote: remote, readTimeout: readTimeout}
}

// AcceptWS upgrades an HTTP request.
func AcceptWS(w http.ResponseWriter, r *http.Request, readTimeout time.Duration, opts *websocket.AcceptOptions) (*WSConn, error) {
	c, err := websocket.Accept(w, r, opts)
	if err != nil {
		return nil, err
	}
	return NewWSConn(c, r.RemoteAddr, readTimeout), nil
}

// DialWS connects to a ws:// or wss:// URL. Failures are wrapped in *DialError.
func DialWS(ctx context.Context, url string, readTimeout time.Duration) (*WSConn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, &DialError{Addr: url, Err: err}
	}
	return NewWSConn(c, url, readTimeout), nil
}

func (w *WSConn) Read(ctx context.Context) ([]byte, error) {
	if w.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.readTimeout)
		defer cancel()
	}
	_, data, err := w.conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ws read: %w", err)
	}
	return data, nil
}

func (w *WSConn) Write(ctx context.Context, p []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := w.conn.Write(ctx, websocket.MessageText, p); err != nil {
		return fmt.Errorf("ws write: %w", err)
	}
	return nil
}

func (w *WSConn) Close(reason string) error {
	return w.conn.Close(websocket.StatusNormalClosure, reason)
}

func (w *WSConn) RemoteAddr() string { return w.remote }
