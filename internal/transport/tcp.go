package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

const readChunk = 4096

// TCPConn is a Conn over a raw stream socket.
type TCPConn struct {
	conn         net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
	buf          []byte
}

func NewTCPConn(c net.Conn, readTimeout time.Duration) *TCPConn {
	return &TCPConn{
		conn:         c,
		readTimeout:  readTimeout,
		writeTimeout: 5 * time.Second,
		buf:          make([]byte, readChunk),
	}
}

// DialTCP connects to addr. Failures are wrapped in *DialError.
func DialTCP(ctx context.Context, addr string, readTimeout time.Duration) (*TCPConn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &DialError{Addr: addr, Err: err}
	}
	return NewTCPConn(c, readTimeout), nil
}

func (t *TCPConn) Read(ctx context.Context) ([]byte, error) {
	deadline := time.Time{}
	if t.readTimeout > 0 {
		deadline = time.Now().Add(t.readTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	// unblock the read if ctx is cancelled mid-flight
	stop := context.AfterFunc(ctx, func() { _ = t.conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stop()

	n, err := t.conn.Read(t.buf)
	if n > 0 {
		out := make([]byte, n)
		copy(out, t.buf[:n])
		return out, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("tcp read: %w", err)
	}
	return nil, nil
}

func (t *TCPConn) Write(ctx context.Context, p []byte) error {
	deadline := time.Now().Add(t.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if _, err := t.conn.Write(p); err != nil {
		return fmt.Errorf("tcp write: %w", err)
	}
	return nil
}

func (t *TCPConn) Close(string) error { return t.conn.Close() }

func (t *TCPConn) RemoteAddr() string { return t.conn.RemoteAddr().String() }
