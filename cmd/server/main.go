package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cardbattle/session-server/internal/config"
	"github.com/cardbattle/session-server/internal/engine"
	"github.com/cardbattle/session-server/internal/history"
	"github.com/cardbattle/session-server/internal/httpapi"
	"github.com/cardbattle/session-server/internal/hub"
	"github.com/cardbattle/session-server/internal/logging"
	"github.com/cardbattle/session-server/internal/peer"
	"github.com/cardbattle/session-server/internal/session"
	"github.com/cardbattle/session-server/internal/transport"
	"github.com/cardbattle/session-server/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	rules, err := engine.LoadRules(cfg.RulesPath)
	if err != nil {
		return err
	}
	rng, err := engine.NewRand()
	if err != nil {
		return err
	}
	sessions := session.NewManager(rules, session.Options{Quorum: cfg.Quorum, HandSize: cfg.HandSize}, rng, log.Named("session"))

	var recorder history.Recorder = history.Nop{}
	if cfg.DatabaseURL != "" {
		store, openErr := history.Open(cfg.DatabaseURL)
		if openErr != nil {
			return openErr
		}
		async := history.NewAsync(store, cfg.QueueCapacity, log.Named("history"))
		recorder = async
		defer func() { err = multierr.Combine(err, async.Close(), store.Close()) }()
		log.Info("match history enabled")
	}

	var turns session.TurnPolicy = session.ManualTurns{}
	if cfg.AutoPassTurn {
		turns = session.AlternateTurns{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	h := hub.NewHub(gctx, hub.Config{
		Options: hub.Options{
			TickInterval:  cfg.TickInterval,
			BatchSize:     cfg.BatchSize,
			HighWater:     cfg.HighWater,
			QueueCapacity: cfg.QueueCapacity,
		},
		Sessions: sessions,
		Turns:    turns,
		Recorder: recorder,
		Logger:   log.Named("hub"),
	})
	peers := peer.NewServer(h, peer.Options{
		ConnectKey:       cfg.ConnectKey,
		HandshakeTimeout: cfg.HandshakeTimeout,
		OutboxSize:       cfg.OutboxSize,
		RateLimit:        cfg.RateLimit,
		RateBurst:        cfg.RateBurst,
	}, log.Named("peer"))

	wsHandler := ws.Handler(peers.Handle, ws.Options{ReadTimeout: cfg.ReadTimeout}, log.Named("ws"))
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.SetupRoutes(h, wsHandler, log.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		return transport.ListenTCP(gctx, cfg.TCPAddr, cfg.ReadTimeout, peers.Handle, log.Named("tcp"))
	})
	g.Go(func() error {
		log.Info("http listener up", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		h.Shutdown()
		return err
	})

	log.Info("server started",
		zap.String("tcp", cfg.TCPAddr),
		zap.String("http", cfg.HTTPAddr),
		zap.Int("quorum", cfg.Quorum),
		zap.Bool("auto_pass_turn", cfg.AutoPassTurn))
	err = g.Wait()
	log.Info("server stopped", zap.Error(err))
	return err
}
