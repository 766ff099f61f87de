package session

import (
	"github.com/cardbattle/session-server/internal/engine"
	"github.com/cardbattle/session-server/pkg/types"
)

// Event is one consequence of a state transition. The owner of the Manager
// is responsible for carrying it out: sending frames, recording history,
// consulting the turn policy.
type Event interface{ isEvent() }

// Send addresses one frame to one player.
type Send struct {
	To      string
	Type    string
	Payload any
}

func (Send) isEvent() {}

type RoomOpened struct {
	Room types.RoomSnapshot
}

func (RoomOpened) isEvent() {}

type RoomClosed struct {
	RoomID string
}

func (RoomClosed) isEvent() {}

// DamageDealt is emitted once per play, carrying the Attacker copy.
type DamageDealt struct {
	RoomID string
	Actor  string
	Result engine.DamageResult
}

func (DamageDealt) isEvent() {}

func send(to, msgType string, payload any) Send {
	return Send{To: to, Type: msgType, Payload: payload}
}
