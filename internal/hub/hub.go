package hub

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cardbattle/session-server/internal/history"
	"github.com/cardbattle/session-server/internal/session"
	"github.com/cardbattle/session-server/internal/wire"
	"github.com/cardbattle/session-server/pkg/types"
)

var (
	ErrHubClosed  = errors.New("hub closed")
	ErrSuperseded = errors.New("superseded by a later card request")

	errBadCards = errors.New("invalid card payload")
)

type HubMsg interface{ isHubMsg() }

// Attach registers a connection and the outbox its writer drains.
type Attach struct {
	ConnID string
	Outbox chan []byte
}

// Detach unregisters a connection. Reason is informational.
type Detach struct {
	ConnID string
	Reason string
}

// Inbound is one decoded request frame. Play and compose frames arrive with
// their payload already staged in the pending slot.
type Inbound struct {
	ConnID string
	Frame  wire.Frame
}

// TurnChanged is the external signal that hands a room's turn to PlayerID.
type TurnChanged struct {
	RoomID   string
	PlayerID string
}

type GetStats struct {
	Reply chan types.Stats
}

type ShutdownHub struct{}

func (Attach) isHubMsg()      {}
func (Detach) isHubMsg()      {}
func (Inbound) isHubMsg()     {}
func (TurnChanged) isHubMsg() {}
func (GetStats) isHubMsg()    {}
func (ShutdownHub) isHubMsg() {}

type Options struct {
	TickInterval  time.Duration
	BatchSize     int // per-tick cap
	HighWater     int // backlog above which a tick drains everything
	QueueCapacity int
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = 20 * time.Millisecond
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.HighWater < o.BatchSize {
		o.HighWater = 2 * o.BatchSize
	}
	if o.QueueCapacity < o.HighWater {
		o.QueueCapacity = 256
	}
	return o
}

// Hub is the single owner of all session state: peers, the ready-set, rooms
// and hands. Everything reaches it through inbox, which is drained by one
// goroutine on a fixed tick.
type Hub struct {
	inbox    chan HubMsg
	opts     Options
	log      *zap.Logger
	sessions *session.Manager
	turns    session.TurnPolicy
	recorder history.Recorder
	pending  *pendingSlots

	peers   map[string]chan []byte
	dropped []string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type Config struct {
	Options  Options
	Sessions *session.Manager
	Turns    session.TurnPolicy
	Recorder history.Recorder
	Logger   *zap.Logger
}

// NewHub starts the dispatch loop; it runs until parent is cancelled or
// Shutdown is called.
func NewHub(parent context.Context, cfg Config) *Hub {
	h := newHub(parent, cfg)
	go h.loop()
	return h
}

func newHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	opts := cfg.Options.withDefaults()
	if cfg.Turns == nil {
		cfg.Turns = session.ManualTurns{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = history.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:    make(chan HubMsg, opts.QueueCapacity),
		opts:     opts,
		log:      cfg.Logger,
		sessions: cfg.Sessions,
		turns:    cfg.Turns,
		recorder: cfg.Recorder,
		pending:  newPendingSlots(),
		peers:    make(map[string]chan []byte),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the loop has exited.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Enqueue blocks until the message fits in the inbox. A full inbox is the
// backpressure signal: the calling reader stops reading its connection.
func (h *Hub) Enqueue(ctx context.Context, m HubMsg) error {
	if h.ctx.Err() != nil {
		return ErrHubClosed
	}
	select {
	case h.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return ErrHubClosed
	}
}

// Submit routes a decoded frame from connID into the queue, staging play and
// compose payloads first.
func (h *Hub) Submit(ctx context.Context, connID string, f wire.Frame) error {
	switch f.Type {
	case types.MsgPlayCards, types.MsgCompCards, types.MsgCompCard:
		h.pending.Put(connID, PendingCardData{Action: f.Type, Payload: f.Payload})
		f.Payload = ""
	}
	return h.Enqueue(ctx, Inbound{ConnID: connID, Frame: f})
}

// AdvanceTurn delivers an external turn-changed signal.
func (h *Hub) AdvanceTurn(ctx context.Context, roomID, playerID string) error {
	return h.Enqueue(ctx, TurnChanged{RoomID: roomID, PlayerID: playerID})
}

func (h *Hub) Stats(ctx context.Context) (types.Stats, error) {
	reply := make(chan types.Stats, 1)
	if err := h.Enqueue(ctx, GetStats{Reply: reply}); err != nil {
		return types.Stats{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return types.Stats{}, ctx.Err()
	case <-h.done:
		return types.Stats{}, ErrHubClosed
	}
}

func (h *Hub) Shutdown() {
	h.cancel()
	<-h.done
}

func (h *Hub) loop() {
	defer close(h.done)
	ticker := time.NewTicker(h.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return
		case <-ticker.C:
			if stop := h.tick(); stop {
				h.shutdown()
				return
			}
		}
	}
}

// drainLimit is how many queued messages one tick processes.
func drainLimit(backlog, batch, highWater int) int {
	if backlog > highWater {
		return backlog
	}
	return min(backlog, batch)
}

func (h *Hub) tick() (stop bool) {
	backlog := len(h.inbox)
	n := drainLimit(backlog, h.opts.BatchSize, h.opts.HighWater)
	if n > h.opts.BatchSize {
		h.log.Debug("backlog over high water, draining all", zap.Int("backlog", backlog))
	}
	for i := 0; i < n; i++ {
		if h.handle(<-h.inbox) {
			return true
		}
		h.reapDropped()
	}
	return false
}

func (h *Hub) handle(m HubMsg) (stop bool) {
	switch msg := m.(type) {
	case Attach:
		if err := h.sessions.Connect(msg.ConnID); err != nil {
			h.log.Warn("attach rejected", zap.String("conn", msg.ConnID), zap.Error(err))
			close(msg.Outbox)
			break
		}
		h.peers[msg.ConnID] = msg.Outbox
		h.log.Debug("peer attached", zap.String("conn", msg.ConnID), zap.Int("peers", len(h.peers)))

	case Detach:
		h.detach(msg.ConnID, msg.Reason)

	case Inbound:
		h.dispatch(msg.ConnID, msg.Frame)

	case TurnChanged:
		events, err := h.sessions.AdvanceTurn(msg.RoomID, msg.PlayerID)
		if err != nil {
			h.log.Warn("turn change ignored", zap.String("room", msg.RoomID), zap.String("player", msg.PlayerID), zap.Error(err))
			break
		}
		h.apply(events)

	case GetStats:
		msg.Reply <- types.Stats{
			Peers:   len(h.peers),
			Ready:   h.sessions.Waiting(),
			Rooms:   h.sessions.Rooms(),
			Backlog: len(h.inbox),
		}

	case ShutdownHub:
		return true
	}
	return false
}

func (h *Hub) detach(connID, reason string) {
	out, ok := h.peers[connID]
	if !ok {
		return
	}
	close(out)
	delete(h.peers, connID)
	h.pending.Drop(connID)
	h.log.Info("peer detached", zap.String("conn", connID), zap.String("reason", reason))
	h.apply(h.sessions.Disconnect(connID))
}

// reapDropped disconnects peers whose outbox overflowed while sending.
func (h *Hub) reapDropped() {
	for len(h.dropped) > 0 {
		id := h.dropped[0]
		h.dropped = h.dropped[1:]
		h.detach(id, "slow consumer")
	}
}

func (h *Hub) shutdown() {
	for id, out := range h.peers {
		close(out)
		delete(h.peers, id)
	}
	h.cancel()
	h.log.Info("hub stopped")
}
