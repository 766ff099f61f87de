// Package ws serves the game protocol over WebSocket. Frames are carried
// in text messages exactly as on the raw TCP port.
package ws

import (
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/cardbattle/session-server/internal/transport"
)

type Options struct {
	ReadTimeout    time.Duration
	OriginPatterns []string
}

func Handler(handle transport.Handler, opts Options, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := transport.AcceptWS(w, r, opts.ReadTimeout, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
			return
		}
		defer conn.Close("bye")

		// the request context ends when the handler returns, so the peer
		// is served synchronously
		handle(r.Context(), conn)
	}
}
