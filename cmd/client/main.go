// Command client is a headless player: it connects, readies up and plays
// its whole hand whenever it holds the turn. It surrenders once the hand is
// empty.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/cardbattle/session-server/internal/client"
	"github.com/cardbattle/session-server/internal/config"
	"github.com/cardbattle/session-server/internal/engine"
	"github.com/cardbattle/session-server/internal/logging"
	"github.com/cardbattle/session-server/internal/transport"
	"github.com/cardbattle/session-server/pkg/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// no read deadline: the server may be quiet for a whole opponent turn
	dial := client.TCPDialer(cfg.ServerAddr, 0)
	if strings.HasPrefix(cfg.ServerAddr, "ws://") || strings.HasPrefix(cfg.ServerAddr, "wss://") {
		dial = client.WSDialer(cfg.ServerAddr, 0)
	}
	c := client.New(dial, client.Options{
		ConnectKey:        cfg.ConnectKey,
		ReconnectInterval: cfg.ReconnectInterval,
		ReconnectAttempts: cfg.ReconnectAttempts,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}, log)
	defer c.Close()

	if err := c.Connect(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.Events():
			done, err := react(ctx, c, ev, log)
			if done || err != nil {
				return err
			}
		}
	}
}

func react(ctx context.Context, c *client.Client, ev client.Event, log *zap.Logger) (done bool, err error) {
	switch e := ev.(type) {
	case client.Connected:
		log.Info("connected, waiting for an opponent", zap.String("player", e.PlayerID))
		return false, c.StartCardGame(ctx)

	case client.HandDealt:
		log.Info("hand", zap.String("message", e.Message), zap.Strings("cards", cardNames(e.Cards)))

	case client.TurnChanged:
		log.Info("turn", zap.String("message", e.Message))
		if !e.MyTurn {
			return false, nil
		}
		hand := c.Hand()
		if len(hand) == 0 {
			log.Info("hand empty, surrendering")
			return false, c.Surrender(ctx)
		}
		return false, c.PlayCards(ctx, engine.CardIDs(hand)...)

	case client.DamageResolved:
		bonds := make([]string, 0, len(e.Result.Bonds))
		for _, b := range e.Result.Bonds {
			bonds = append(bonds, b.Name)
		}
		log.Info("damage",
			zap.String("as", string(e.Result.Type)),
			zap.Int("total", e.Result.TotalDamage),
			zap.Strings("bonds", bonds))

	case client.Ack:
		if e.Type == types.MsgSurrenderCardGame {
			log.Info("left the game")
			return true, nil
		}

	case client.RequestFailed:
		log.Warn("request failed", zap.String("channel", string(e.Channel)), zap.Error(e.Err))

	case client.Reconnecting:
		log.Info("reconnecting", zap.Int("attempt", e.Attempt))

	case client.Disconnected:
		if e.Reason == transport.ReasonConnectFailed {
			return true, e.Err
		}
		log.Warn("disconnected", zap.Stringer("reason", e.Reason), zap.Error(e.Err))
		c.Reconnect(ctx)
	}
	return false, nil
}

func cardNames(cards []engine.Card) []string {
	names := make([]string, len(cards))
	for i, card := range cards {
		names[i] = fmt.Sprintf("%s(%d)", card.Type, card.Damage)
	}
	return names
}
