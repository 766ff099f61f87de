// Package transport adapts byte streams (raw TCP, WebSocket) to one
// connection interface and classifies why a connection ended.
package transport

import "context"

// Conn is a bidirectional byte stream. Read returns whatever bytes are
// available; message boundaries are not preserved and framing is left to the
// wire decoder.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, p []byte) error
	Close(reason string) error
	RemoteAddr() string
}
