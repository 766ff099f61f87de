// Package history keeps an append-only ledger of rooms and damage events.
// Nothing is read back into live sessions.
package history

import (
	"context"

	"github.com/cardbattle/session-server/internal/engine"
	"github.com/cardbattle/session-server/pkg/types"
)

type Recorder interface {
	RoomOpened(ctx context.Context, room types.RoomSnapshot) error
	RoomClosed(ctx context.Context, roomID string) error
	DamageDealt(ctx context.Context, roomID, actor string, result engine.DamageResult) error
}

// Nop discards everything. Used when no database is configured.
type Nop struct{}

func (Nop) RoomOpened(context.Context, types.RoomSnapshot) error { return nil }
func (Nop) RoomClosed(context.Context, string) error             { return nil }
func (Nop) DamageDealt(context.Context, string, string, engine.DamageResult) error {
	return nil
}
