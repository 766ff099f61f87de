package client

import (
	"context"
	"time"

	"github.com/cardbattle/session-server/internal/engine"
	"github.com/cardbattle/session-server/internal/wire"
	"github.com/cardbattle/session-server/pkg/types"
)

func (c *Client) send(ctx context.Context, msgType string, payload any) error {
	b, err := wire.Encode(msgType, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.Write(ctx, b)
}

func (c *Client) StartCardGame(ctx context.Context) error {
	return c.send(ctx, types.MsgStartCardGame, nil)
}

func (c *Client) Surrender(ctx context.Context) error {
	return c.send(ctx, types.MsgSurrenderCardGame, nil)
}

func (c *Client) Ping(ctx context.Context, now time.Time) error {
	return c.send(ctx, types.MsgPing, types.Ping{Timestamp: now.UnixMilli()})
}

// PlayCards removes the cards from the local hand and submits them. The
// hand is left untouched if any id is unknown or it is not our turn. If the
// server rejects the play it resends the hand, which replaces the local one.
func (c *Client) PlayCards(ctx context.Context, ids ...string) error {
	c.mu.Lock()
	if c.round != roundCurrent {
		c.mu.Unlock()
		return ErrNotYourTurn
	}
	for _, id := range ids {
		if !c.hand.Has(id) {
			c.mu.Unlock()
			return ErrUnknownCard
		}
	}
	cards := c.hand.Remove(ids...)
	c.mu.Unlock()

	if err := c.send(ctx, types.MsgPlayCards, cards); err != nil {
		c.mu.Lock()
		c.hand.Add(cards...)
		c.mu.Unlock()
		return err
	}
	return nil
}

// CompCards submits cards for composition. The server answers with the
// whole resulting hand, so nothing is removed locally.
func (c *Client) CompCards(ctx context.Context, ids ...string) error {
	c.mu.Lock()
	cards := make([]engine.Card, 0, len(ids))
	for _, id := range ids {
		card, ok := c.hand[id]
		if !ok {
			c.mu.Unlock()
			return ErrUnknownCard
		}
		cards = append(cards, card)
	}
	c.mu.Unlock()
	return c.send(ctx, types.MsgCompCards, cards)
}
