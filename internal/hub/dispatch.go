package hub

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/cardbattle/session-server/internal/engine"
	"github.com/cardbattle/session-server/internal/session"
	"github.com/cardbattle/session-server/internal/wire"
	"github.com/cardbattle/session-server/pkg/types"
)

func (h *Hub) dispatch(connID string, f wire.Frame) {
	if _, ok := h.peers[connID]; !ok {
		h.log.Debug("frame from detached peer", zap.String("conn", connID), zap.String("type", f.Type))
		return
	}

	var (
		events []session.Event
		err    error
	)
	switch f.Type {
	case types.MsgStartCardGame:
		events, err = h.sessions.Ready(connID)

	case types.MsgPlayCards, types.MsgCompCards, types.MsgCompCard:
		h.dispatchCards(connID, f.Type)
		return

	case types.MsgSurrenderCardGame:
		events, err = h.sessions.Surrender(connID)

	case types.MsgPing:
		h.send(connID, types.MsgPong, json.RawMessage(f.Payload))
		return

	default:
		h.log.Warn("unknown message type", zap.String("conn", connID), zap.String("type", f.Type))
		return
	}

	if err != nil {
		h.log.Debug("request rejected", zap.String("conn", connID), zap.String("type", f.Type), zap.Error(err))
		h.send(connID, f.Type, types.Fail(session.CodeFor(err), err.Error()))
		return
	}
	h.apply(events)
}

// dispatchCards runs a play or compose against the payload staged for it.
// A request whose payload was overwritten by a later one is answered with
// ErrSuperseded under its own type.
func (h *Hub) dispatchCards(connID, action string) {
	data, ok := h.pending.Take(connID, action)
	if !ok {
		h.reject(connID, action, types.CodeConflict, ErrSuperseded)
		return
	}
	var cards []engine.Card
	if err := (wire.Frame{Type: action, Payload: data.Payload}).Unmarshal(&cards); err != nil {
		h.log.Warn("bad card payload", zap.String("conn", connID), zap.Error(err))
		h.reject(connID, action, types.CodeBadRequest, errBadCards)
		return
	}

	var (
		events []session.Event
		err    error
	)
	if action == types.MsgPlayCards {
		events, err = h.sessions.Play(connID, cards)
	} else {
		events, err = h.sessions.Compose(connID, cards)
	}
	if err != nil {
		h.reject(connID, action, session.CodeFor(err), err)
		return
	}
	h.apply(events)
}

// reject answers a card request with code. A rejected play is followed by
// the authoritative hand, since the client drops played cards before the
// server has accepted them.
func (h *Hub) reject(connID, action string, code int, err error) {
	h.log.Debug("card request rejected",
		zap.String("conn", connID),
		zap.String("type", action),
		zap.Int("code", code),
		zap.Error(err))
	h.send(connID, action, types.Fail(code, err.Error()))
	if action == types.MsgPlayCards {
		h.apply(h.sessions.HandSync(connID))
	}
}

// apply carries out the consequences of a state transition.
func (h *Hub) apply(events []session.Event) {
	for _, ev := range events {
		switch e := ev.(type) {
		case session.Send:
			h.send(e.To, e.Type, e.Payload)

		case session.RoomOpened:
			if err := h.recorder.RoomOpened(h.ctx, e.Room); err != nil {
				h.log.Warn("history: room opened", zap.String("room", e.Room.ID), zap.Error(err))
			}

		case session.RoomClosed:
			if err := h.recorder.RoomClosed(h.ctx, e.RoomID); err != nil {
				h.log.Warn("history: room closed", zap.String("room", e.RoomID), zap.Error(err))
			}

		case session.DamageDealt:
			if err := h.recorder.DamageDealt(h.ctx, e.RoomID, e.Actor, e.Result); err != nil {
				h.log.Warn("history: damage", zap.String("room", e.RoomID), zap.Error(err))
			}
			h.afterPlay(e.RoomID, e.Actor)
		}
	}
}

func (h *Hub) afterPlay(roomID, actor string) {
	room, ok := h.sessions.Room(roomID)
	if !ok {
		return
	}
	next, ok := h.turns.AfterPlay(room, actor)
	if !ok {
		return
	}
	events, err := h.sessions.AdvanceTurn(roomID, next)
	if err != nil {
		h.log.Warn("turn policy produced invalid holder", zap.String("room", roomID), zap.String("next", next), zap.Error(err))
		return
	}
	h.apply(events)
}

// send encodes and queues one frame. A peer whose outbox is full is marked
// for removal rather than blocking the loop.
func (h *Hub) send(connID, msgType string, payload any) {
	out, ok := h.peers[connID]
	if !ok || h.isDropped(connID) {
		return
	}
	b, err := wire.Encode(msgType, payload)
	if err != nil {
		h.log.Error("encode outbound frame", zap.String("type", msgType), zap.Error(err))
		return
	}
	select {
	case out <- b:
	default:
		h.log.Warn("peer outbox full, dropping peer", zap.String("conn", connID))
		h.dropped = append(h.dropped, connID)
	}
}

func (h *Hub) isDropped(connID string) bool {
	for _, id := range h.dropped {
		if id == connID {
			return true
		}
	}
	return false
}
