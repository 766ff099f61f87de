// Package peer runs the server side of one client connection: the
// connect-key handshake, the reader feeding the hub, and the writer draining
// the connection's outbox.
package peer

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cardbattle/session-server/internal/hub"
	"github.com/cardbattle/session-server/internal/transport"
	"github.com/cardbattle/session-server/internal/wire"
	"github.com/cardbattle/session-server/pkg/types"
)

var (
	ErrBadKey         = errors.New("connect key rejected")
	ErrNoHandshake    = errors.New("first frame was not a connect request")
	ErrHubUnavailable = errors.New("hub unavailable")
)

// Hub is the part of the dispatch loop a connection talks to.
type Hub interface {
	Enqueue(ctx context.Context, m hub.HubMsg) error
	Submit(ctx context.Context, connID string, f wire.Frame) error
}

type Options struct {
	ConnectKey       string
	HandshakeTimeout time.Duration
	OutboxSize       int
	RateLimit        float64 // frames per second, 0 disables
	RateBurst        int
}

type Server struct {
	hub  Hub
	opts Options
	log  *zap.Logger
}

func NewServer(h Hub, opts Options, log *zap.Logger) *Server {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 5 * time.Second
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = 32
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{hub: h, opts: opts, log: log}
}

// Handle is a transport.Handler.
func (s *Server) Handle(ctx context.Context, c transport.Conn) {
	reason, err := s.Serve(ctx, c)
	s.log.Debug("connection ended",
		zap.String("remote", c.RemoteAddr()),
		zap.Stringer("reason", reason),
		zap.Error(err))
}

// Serve runs one connection to completion and reports why it ended.
func (s *Server) Serve(ctx context.Context, c transport.Conn) (transport.DisconnectReason, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.Close("bye")

	dec := wire.NewDecoder(s.log.With(zap.String("remote", c.RemoteAddr())))
	if err := s.handshake(ctx, c, dec); err != nil {
		return transport.Classify(err), err
	}

	connID := uuid.NewString()
	log := s.log.With(zap.String("conn", connID), zap.String("remote", c.RemoteAddr()))

	if err := c.Write(ctx, wire.MustEncode(types.MsgConnect, types.OK("connected", types.ConnectAccepted{PlayerID: connID}))); err != nil {
		return transport.Classify(err), err
	}

	out := make(chan []byte, s.opts.OutboxSize)
	if err := s.hub.Enqueue(ctx, hub.Attach{ConnID: connID, Outbox: out}); err != nil {
		return transport.ReasonOther, fmt.Errorf("%w: %w", ErrHubUnavailable, err)
	}
	log.Info("peer connected")

	go s.writer(ctx, cancel, c, out, log)

	err := s.reader(ctx, connID, c, dec, log)
	reason := transport.Classify(err)

	detachCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer stop()
	if derr := s.hub.Enqueue(detachCtx, hub.Detach{ConnID: connID, Reason: reason.String()}); derr != nil {
		log.Debug("detach not delivered", zap.Error(derr))
	}
	log.Info("peer disconnected", zap.Stringer("reason", reason), zap.Error(err))
	return reason, err
}

// handshake waits for a Connect frame carrying the shared key.
func (s *Server) handshake(ctx context.Context, c transport.Conn, dec *wire.Decoder) error {
	hctx, cancel := context.WithTimeout(ctx, s.opts.HandshakeTimeout)
	defer cancel()

	for {
		f, ok, err := dec.Next()
		if err != nil {
			continue
		}
		if ok {
			return s.checkKey(hctx, c, f)
		}
		data, err := c.Read(hctx)
		if err != nil {
			return err
		}
		dec.Feed(data)
	}
}

func (s *Server) checkKey(ctx context.Context, c transport.Conn, f wire.Frame) error {
	if f.Type != types.MsgConnect {
		_ = c.Write(ctx, wire.MustEncode(types.MsgConnect, types.Fail(types.CodeUnauthorized, ErrNoHandshake.Error())))
		return ErrNoHandshake
	}
	var req types.ConnectRequest
	if err := f.Unmarshal(&req); err != nil || subtle.ConstantTimeCompare([]byte(req.Key), []byte(s.opts.ConnectKey)) != 1 {
		_ = c.Write(ctx, wire.MustEncode(types.MsgConnect, types.Fail(types.CodeUnauthorized, ErrBadKey.Error())))
		s.log.Warn("connect key rejected", zap.String("remote", c.RemoteAddr()))
		return ErrBadKey
	}
	return nil
}

func (s *Server) reader(ctx context.Context, connID string, c transport.Conn, dec *wire.Decoder, log *zap.Logger) error {
	var limiter *rate.Limiter
	if s.opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.RateBurst)
	}

	for {
		for {
			f, ok, err := dec.Next()
			if err != nil {
				log.Debug("frame dropped", zap.Error(err))
				continue
			}
			if !ok {
				break
			}
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
			}
			if err := s.hub.Submit(ctx, connID, f); err != nil {
				return err
			}
		}

		data, err := c.Read(ctx)
		if err != nil {
			return err
		}
		dec.Feed(data)
	}
}

// writer drains the outbox. The hub closes the outbox when it drops the
// peer, which ends the connection.
func (s *Server) writer(ctx context.Context, cancel context.CancelFunc, c transport.Conn, out <-chan []byte, log *zap.Logger) {
	defer cancel()
	defer c.Close("outbox closed")
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-out:
			if !ok {
				return
			}
			if err := c.Write(ctx, b); err != nil {
				log.Warn("write failed", zap.Error(err))
				return
			}
		}
	}
}
