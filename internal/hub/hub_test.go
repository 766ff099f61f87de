package hub

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cardbattle/session-server/internal/engine"
	"github.com/cardbattle/session-server/internal/history"
	"github.com/cardbattle/session-server/internal/session"
	"github.com/cardbattle/session-server/internal/wire"
	"github.com/cardbattle/session-server/pkg/types"
)

type spyRecorder struct {
	opened, closed, damage int
}

func (s *spyRecorder) RoomOpened(context.Context, types.RoomSnapshot) error {
	s.opened++
	return nil
}

func (s *spyRecorder) RoomClosed(context.Context, string) error {
	s.closed++
	return nil
}

func (s *spyRecorder) DamageDealt(context.Context, string, string, engine.DamageResult) error {
	s.damage++
	return nil
}

// newTestHub builds a hub whose loop is not running; tests drive it with flush.
func newTestHub(t *testing.T, turns session.TurnPolicy, rec history.Recorder) *Hub {
	t.Helper()
	rules, err := engine.DefaultRules()
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	m := session.NewManager(rules, session.Options{Quorum: 2, HandSize: 5}, rand.New(rand.NewPCG(3, 4)), log)
	h := newHub(context.Background(), Config{
		Options:  Options{BatchSize: 10, HighWater: 20, QueueCapacity: 64},
		Sessions: m,
		Turns:    turns,
		Recorder: rec,
		Logger:   log,
	})
	t.Cleanup(h.cancel)
	return h
}

func flush(h *Hub) {
	for len(h.inbox) > 0 {
		h.tick()
	}
}

func attach(t *testing.T, h *Hub, id string, size int) chan []byte {
	t.Helper()
	out := make(chan []byte, size)
	require.NoError(t, h.Enqueue(context.Background(), Attach{ConnID: id, Outbox: out}))
	return out
}

func submit(t *testing.T, h *Hub, id, msgType string, payload any) {
	t.Helper()
	var f wire.Frame
	require.NoError(t, json.Unmarshal(wire.MustEncode(msgType, payload), &f))
	require.NoError(t, h.Submit(context.Background(), id, f))
}

func received(out chan []byte) []wire.Frame {
	var frames []wire.Frame
	for {
		select {
		case b, ok := <-out:
			if !ok {
				return frames
			}
			var f wire.Frame
			if err := json.Unmarshal(b, &f); err == nil {
				frames = append(frames, f)
			}
		default:
			return frames
		}
	}
}

func ofType(frames []wire.Frame, msgType string) []wire.Frame {
	var out []wire.Frame
	for _, f := range frames {
		if f.Type == msgType {
			out = append(out, f)
		}
	}
	return out
}

func decode[T any](t *testing.T, f wire.Frame) types.Response[T] {
	t.Helper()
	var r types.Response[T]
	require.NoError(t, f.Unmarshal(&r))
	return r
}

type table struct {
	outs  map[string]chan []byte
	hands map[string][]engine.Card
	turn  string
}

// startGame attaches a and b, readies both and returns what each was dealt.
func startGame(t *testing.T, h *Hub) table {
	t.Helper()
	tb := table{outs: map[string]chan []byte{}, hands: map[string][]engine.Card{}}
	for _, id := range []string{"a", "b"} {
		tb.outs[id] = attach(t, h, id, 32)
	}
	submit(t, h, "a", types.MsgStartCardGame, nil)
	submit(t, h, "b", types.MsgStartCardGame, nil)
	flush(h)

	for id, out := range tb.outs {
		frames := received(out)
		deals := ofType(frames, types.MsgInitPlayerCards)
		require.Len(t, deals, 1, "player %s", id)
		tb.hands[id] = decode[[]engine.Card](t, deals[0]).Data

		notes := ofType(frames, types.MsgTurnNotification)
		require.Len(t, notes, 1)
		if decode[any](t, notes[0]).Message == types.TurnMessageYours {
			require.Empty(t, tb.turn, "both players were given the turn")
			tb.turn = id
		}
	}
	require.NotEmpty(t, tb.turn)
	return tb
}

func other(id string) string {
	if id == "a" {
		return "b"
	}
	return "a"
}

func TestHub_RoomFormation(t *testing.T) {
	rec := &spyRecorder{}
	h := newTestHub(t, nil, rec)
	tb := startGame(t, h)

	seen := map[string]bool{}
	for _, hand := range tb.hands {
		assert.Len(t, hand, 5)
		for _, c := range hand {
			assert.False(t, seen[c.CardID], "card %s dealt twice", c.CardID)
			seen[c.CardID] = true
		}
	}
	assert.Equal(t, 1, rec.opened)

	stats := make(chan types.Stats, 1)
	h.inbox <- GetStats{Reply: stats}
	flush(h)
	s := <-stats
	assert.Equal(t, 2, s.Peers)
	require.Len(t, s.Rooms, 1)
	assert.Equal(t, tb.turn, s.Rooms[0].Current)
}

func TestHub_PlayBroadcastsBothPerspectivesAndPassesTurn(t *testing.T) {
	rec := &spyRecorder{}
	h := newTestHub(t, session.AlternateTurns{}, rec)
	tb := startGame(t, h)
	actor, target := tb.turn, other(tb.turn)

	submit(t, h, actor, types.MsgPlayCards, tb.hands[actor][:3])
	flush(h)

	actorFrames := received(tb.outs[actor])
	targetFrames := received(tb.outs[target])

	atk := ofType(actorFrames, types.MsgDamageResult)
	rcv := ofType(targetFrames, types.MsgDamageResult)
	require.Len(t, atk, 1)
	require.Len(t, rcv, 1)
	atkRes := decode[engine.DamageResult](t, atk[0])
	rcvRes := decode[engine.DamageResult](t, rcv[0])
	assert.Equal(t, types.CodeOK, atkRes.Code)
	assert.Equal(t, engine.Attacker, atkRes.Data.Type)
	assert.Equal(t, engine.Receiver, rcvRes.Data.Type)
	assert.Equal(t, atkRes.Data.TotalDamage, rcvRes.Data.TotalDamage)
	assert.Len(t, atkRes.Data.ProcessedCards, 3)
	assert.Equal(t, 1, rec.damage)

	// turn passed to the target
	notes := ofType(targetFrames, types.MsgTurnNotification)
	require.Len(t, notes, 1)
	assert.Equal(t, types.TurnMessageYours, decode[any](t, notes[0]).Message)

	// the old holder may no longer play
	submit(t, h, actor, types.MsgPlayCards, tb.hands[actor][3:])
	flush(h)
	frames := received(tb.outs[actor])
	rejected := ofType(frames, types.MsgPlayCards)
	require.Len(t, rejected, 1)
	assert.Equal(t, types.CodeNotYourTurn, decode[any](t, rejected[0]).Code)

	// the rejected cards are still held and the hand is resent
	resync := ofType(frames, types.MsgInitPlayerCards)
	require.Len(t, resync, 1)
	assert.ElementsMatch(t, tb.hands[actor][3:], decode[[]engine.Card](t, resync[0]).Data)
}

func TestHub_PendingPayloadConsumedOnce(t *testing.T) {
	h := newTestHub(t, session.ManualTurns{}, nil)
	tb := startGame(t, h)
	actor := tb.turn

	// two plays staged before a tick: the second overwrites the first, the
	// payload is dispatched once and the other request is answered 409
	submit(t, h, actor, types.MsgPlayCards, tb.hands[actor][:1])
	submit(t, h, actor, types.MsgPlayCards, tb.hands[actor][1:3])
	flush(h)

	frames := received(tb.outs[actor])
	results := ofType(frames, types.MsgDamageResult)
	require.Len(t, results, 1)
	assert.Len(t, decode[engine.DamageResult](t, results[0]).Data.ProcessedCards, 2)

	conflicts := ofType(frames, types.MsgPlayCards)
	require.Len(t, conflicts, 1)
	resp := decode[any](t, conflicts[0])
	assert.Equal(t, types.CodeConflict, resp.Code)
	assert.Equal(t, ErrSuperseded.Error(), resp.Message)

	resync := ofType(frames, types.MsgInitPlayerCards)
	require.Len(t, resync, 1)
	held := append([]engine.Card{tb.hands[actor][0]}, tb.hands[actor][3:]...)
	assert.ElementsMatch(t, held, decode[[]engine.Card](t, resync[0]).Data)

	_, ok := h.pending.Take(actor, types.MsgPlayCards)
	assert.False(t, ok)
}

func TestHub_PlayOverwrittenByComposeIsAnswered(t *testing.T) {
	h := newTestHub(t, session.ManualTurns{}, nil)
	tb := startGame(t, h)
	actor := tb.turn

	submit(t, h, actor, types.MsgPlayCards, tb.hands[actor][:1])
	submit(t, h, actor, types.MsgCompCards, tb.hands[actor][1:3])
	flush(h)

	frames := received(tb.outs[actor])
	assert.Empty(t, ofType(frames, types.MsgDamageResult))

	plays := ofType(frames, types.MsgPlayCards)
	require.Len(t, plays, 1)
	assert.Equal(t, types.CodeConflict, decode[any](t, plays[0]).Code)

	// the play's resync shows the full hand, then the compose result follows
	hands := ofType(frames, types.MsgInitPlayerCards)
	require.Len(t, hands, 2)
	assert.ElementsMatch(t, tb.hands[actor], decode[[]engine.Card](t, hands[0]).Data)
	assert.Equal(t, types.CodeOK, decode[[]engine.Card](t, hands[1]).Code)
	assert.Empty(t, ofType(frames, types.MsgCompCards), "the compose itself succeeded")
}

func TestHub_ComposeResyncsHand(t *testing.T) {
	h := newTestHub(t, nil, nil)
	tb := startGame(t, h)
	actor := tb.turn

	submit(t, h, actor, types.MsgCompCards, tb.hands[actor])
	flush(h)

	resync := ofType(received(tb.outs[actor]), types.MsgInitPlayerCards)
	require.Len(t, resync, 1)
	resp := decode[[]engine.Card](t, resync[0])
	assert.Equal(t, types.CodeOK, resp.Code)
	assert.LessOrEqual(t, len(resp.Data), len(tb.hands[actor]))
}

func TestHub_BadPayloadAndUnknownType(t *testing.T) {
	h := newTestHub(t, nil, nil)
	tb := startGame(t, h)
	actor := tb.turn

	f := wire.Frame{Type: types.MsgPlayCards, Payload: `{"not":"an array"}`}
	require.NoError(t, h.Submit(context.Background(), actor, f))
	require.NoError(t, h.Submit(context.Background(), actor, wire.Frame{Type: "Teleport"}))
	flush(h)

	frames := received(tb.outs[actor])
	bad := ofType(frames, types.MsgPlayCards)
	require.Len(t, bad, 1)
	assert.Equal(t, types.CodeBadRequest, decode[any](t, bad[0]).Code)
	assert.Empty(t, ofType(frames, "Teleport"))
}

func TestHub_PingPong(t *testing.T) {
	h := newTestHub(t, nil, nil)
	out := attach(t, h, "a", 4)
	submit(t, h, "a", types.MsgPing, types.Ping{Timestamp: 42})
	flush(h)

	pongs := ofType(received(out), types.MsgPong)
	require.Len(t, pongs, 1)
	var p types.Pong
	require.NoError(t, pongs[0].Unmarshal(&p))
	assert.Equal(t, int64(42), p.Timestamp)
}

func TestHub_SurrenderAndDetachCloseRoom(t *testing.T) {
	rec := &spyRecorder{}
	h := newTestHub(t, nil, rec)
	tb := startGame(t, h)

	submit(t, h, "a", types.MsgSurrenderCardGame, nil)
	flush(h)
	acks := ofType(received(tb.outs["a"]), types.MsgSurrenderCardGame)
	require.Len(t, acks, 1)
	assert.Equal(t, types.CodeOK, decode[any](t, acks[0]).Code)
	assert.Equal(t, 0, rec.closed)

	require.NoError(t, h.Enqueue(context.Background(), Detach{ConnID: "b", Reason: "test"}))
	flush(h)
	assert.Equal(t, 1, rec.closed)

	_, open := <-tb.outs["b"]
	assert.False(t, open, "detached outbox should be closed")
}

func TestHub_SlowPeerDropped(t *testing.T) {
	h := newTestHub(t, nil, nil)
	slow := attach(t, h, "slow", 1)
	fast := attach(t, h, "fast", 32)
	flush(h)

	submit(t, h, "slow", types.MsgStartCardGame, nil)
	submit(t, h, "fast", types.MsgStartCardGame, nil)
	flush(h)

	// the single-slot outbox overflowed during the deal
	frames := received(slow)
	assert.Len(t, frames, 1)
	_, open := <-slow
	assert.False(t, open)

	stats := make(chan types.Stats, 1)
	h.inbox <- GetStats{Reply: stats}
	flush(h)
	s := <-stats
	assert.Equal(t, 1, s.Peers)
	assert.NotEmpty(t, received(fast))
}

func TestHub_ExternalTurnChange(t *testing.T) {
	h := newTestHub(t, session.ManualTurns{}, nil)
	tb := startGame(t, h)

	stats := make(chan types.Stats, 1)
	h.inbox <- GetStats{Reply: stats}
	flush(h)
	roomID := (<-stats).Rooms[0].ID

	target := other(tb.turn)
	require.NoError(t, h.AdvanceTurn(context.Background(), roomID, target))
	flush(h)

	notes := ofType(received(tb.outs[target]), types.MsgTurnNotification)
	require.Len(t, notes, 1)
	assert.Equal(t, types.TurnMessageYours, decode[any](t, notes[0]).Message)
}

func TestDrainLimit(t *testing.T) {
	cases := []struct {
		name                     string
		backlog, batch, high, want int
	}{
		{name: "empty", backlog: 0, batch: 10, high: 20, want: 0},
		{name: "under batch", backlog: 4, batch: 10, high: 20, want: 4},
		{name: "capped", backlog: 15, batch: 10, high: 20, want: 10},
		{name: "at high water", backlog: 20, batch: 10, high: 20, want: 10},
		{name: "over high water drains all", backlog: 35, batch: 10, high: 20, want: 35},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, drainLimit(tc.backlog, tc.batch, tc.high))
		})
	}
}

func TestHub_TickHonoursBatchAndHighWater(t *testing.T) {
	h := newTestHub(t, nil, nil)
	fill := func(n int) {
		for i := 0; i < n; i++ {
			h.inbox <- Detach{ConnID: "ghost"}
		}
	}

	// 15 queued with a batch of 10: five are left for the next tick
	fill(15)
	assert.False(t, h.tick())
	assert.Len(t, h.inbox, 5)

	// topped up to 25, past the high water mark of 20: one tick drains it all
	fill(20)
	require.Len(t, h.inbox, 25)
	assert.False(t, h.tick())
	assert.Empty(t, h.inbox)
}

func TestHub_LoopDrainsAndStops(t *testing.T) {
	rules, err := engine.DefaultRules()
	require.NoError(t, err)
	m := session.NewManager(rules, session.Options{}, rand.New(rand.NewPCG(1, 2)), zaptest.NewLogger(t))
	h := NewHub(context.Background(), Config{
		Options:  Options{TickInterval: time.Millisecond},
		Sessions: m,
		Logger:   zaptest.NewLogger(t),
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out := make(chan []byte, 4)
	require.NoError(t, h.Enqueue(ctx, Attach{ConnID: "a", Outbox: out}))

	s, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Peers)

	h.Shutdown()
	_, open := <-out
	assert.False(t, open)
	assert.ErrorIs(t, h.Enqueue(ctx, Detach{ConnID: "a"}), ErrHubClosed)
}

func TestPendingSlots(t *testing.T) {
	p := newPendingSlots()
	p.Put("c", PendingCardData{Action: types.MsgPlayCards, Payload: "1"})
	p.Put("c", PendingCardData{Action: types.MsgCompCards, Payload: "2"})

	// the play was overwritten; its slot now belongs to the compose
	_, ok := p.Take("c", types.MsgPlayCards)
	assert.False(t, ok)

	got, ok := p.Take("c", types.MsgCompCards)
	require.True(t, ok)
	assert.Equal(t, PendingCardData{Action: types.MsgCompCards, Payload: "2"}, got)

	_, ok = p.Take("c", types.MsgCompCards)
	assert.False(t, ok)

	p.Put("d", PendingCardData{Action: types.MsgPlayCards})
	p.Drop("d")
	_, ok = p.Take("d", types.MsgPlayCards)
	assert.False(t, ok)
}
