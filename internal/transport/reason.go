package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/coder/websocket"
)

// DisconnectReason is the coarse cause of a lost connection. Each value is
// surfaced as its own notification so callers can react differently.
type DisconnectReason int

const (
	ReasonOther DisconnectReason = iota
	ReasonTimeout
	ReasonRemoteClose
	ReasonConnectFailed
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonRemoteClose:
		return "remote_close"
	case ReasonConnectFailed:
		return "connect_failed"
	default:
		return "other"
	}
}

// DialError marks a failure to establish a connection.
type DialError struct {
	Addr string
	Err  error
}

func (e *DialError) Error() string { return fmt.Sprintf("dial %s: %v", e.Addr, e.Err) }
func (e *DialError) Unwrap() error { return e.Err }

func Classify(err error) DisconnectReason {
	if err == nil {
		return ReasonOther
	}

	var dialErr *DialError
	if errors.As(err, &dialErr) {
		return ReasonConnectFailed
	}

	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		websocket.CloseStatus(err) != -1 {
		return ReasonRemoteClose
	}
	return ReasonOther
}
