package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler serves one accepted connection until it ends.
type Handler func(ctx context.Context, c Conn)

// ListenTCP accepts connections on addr and serves each on its own goroutine.
// It returns once ctx is cancelled and every handler has returned.
func ListenTCP(ctx context.Context, addr string, readTimeout time.Duration, handle Handler, log *zap.Logger) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return ServeTCP(ctx, ln, readTimeout, handle, log)
}

func ServeTCP(ctx context.Context, ln net.Listener, readTimeout time.Duration, handle Handler, log *zap.Logger) error {
	log.Info("tcp listener up", zap.String("addr", ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn("accept failed", zap.Error(err))
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := NewTCPConn(c, readTimeout)
			closeOnDone := context.AfterFunc(ctx, func() { _ = conn.Close("server shutting down") })
			defer closeOnDone()
			handle(ctx, conn)
		}()
	}
}
