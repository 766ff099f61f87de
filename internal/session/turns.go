package session

import "github.com/cardbattle/session-server/pkg/types"

// TurnPolicy produces the "turn changed" signal after a play. Returning
// ok=false leaves the turn where it is until someone calls AdvanceTurn.
type TurnPolicy interface {
	AfterPlay(room types.RoomSnapshot, actor string) (next string, ok bool)
}

// AlternateTurns passes the turn to the next occupant in seat order.
type AlternateTurns struct{}

func (AlternateTurns) AfterPlay(room types.RoomSnapshot, actor string) (string, bool) {
	if len(room.Players) < 2 {
		return "", false
	}
	for i, pid := range room.Players {
		if pid == actor {
			return room.Players[(i+1)%len(room.Players)], true
		}
	}
	return "", false
}

// ManualTurns never advances on its own.
type ManualTurns struct{}

func (ManualTurns) AfterPlay(types.RoomSnapshot, string) (string, bool) { return "", false }
