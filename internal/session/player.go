package session

import "github.com/cardbattle/session-server/internal/engine"

type State string

const (
	StateConnected    State = "Connected"
	StateReadyPending State = "ReadyPending"
	StateInRoom       State = "InRoom"
	StateSurrendered  State = "Surrendered"
	StateDisconnected State = "Disconnected"
)

// Turn tokens are relative to the player holding them.
const (
	RoundCurrent = "current"
	RoundOther   = "other"
)

type Player struct {
	ID     string
	State  State
	RoomID string
	Round  string
	Hand   engine.Hand
}

func (p *Player) IsMyTurn() bool { return p.Round == RoundCurrent }

// Room pairs its occupants with the remainder of the deck they were dealt from.
type Room struct {
	ID      string
	Players []string
	Deck    []engine.CardType
}

func (r *Room) has(id string) bool {
	for _, p := range r.Players {
		if p == id {
			return true
		}
	}
	return false
}

func (r *Room) remove(id string) {
	for i, p := range r.Players {
		if p == id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return
		}
	}
}
