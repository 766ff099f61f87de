package session

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cardbattle/session-server/internal/engine"
	"github.com/cardbattle/session-server/pkg/types"
)

var (
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrAlreadyConnected = errors.New("player already connected")
	ErrAlreadyReady     = errors.New("already waiting for a game")
	ErrAlreadyInRoom    = errors.New("already in a room")
	ErrNotInRoom        = errors.New("not in a room")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrRoomNotFound     = errors.New("room not found")
	ErrNotOccupant      = errors.New("player is not in that room")
)

// CodeFor maps a state machine error to the response code sent back to the client.
func CodeFor(err error) int {
	switch {
	case err == nil:
		return types.CodeOK
	case errors.Is(err, ErrNotYourTurn):
		return types.CodeNotYourTurn
	case errors.Is(err, ErrUnknownPlayer),
		errors.Is(err, ErrAlreadyReady),
		errors.Is(err, ErrAlreadyInRoom),
		errors.Is(err, ErrNotInRoom),
		errors.Is(err, ErrRoomNotFound),
		errors.Is(err, ErrNotOccupant):
		return types.CodeConflict
	default:
		return types.CodeInternal
	}
}

type Options struct {
	Quorum   int
	HandSize int
}

func (o Options) withDefaults() Options {
	if o.Quorum < 2 {
		o.Quorum = 2
	}
	if o.HandSize <= 0 {
		o.HandSize = 5
	}
	return o
}

// Manager is the session and room state machine. It is not safe for
// concurrent use; one goroutine owns it and applies the returned events.
type Manager struct {
	opts   Options
	rules  engine.Rules
	damage *engine.DamageEngine
	rng    *rand.Rand
	log    *zap.Logger
	newID  func() string

	players map[string]*Player
	ready   []string
	rooms   map[string]*Room
}

func NewManager(rules engine.Rules, opts Options, rng *rand.Rand, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		opts:    opts.withDefaults(),
		rules:   rules,
		damage:  engine.NewDamageEngine(engine.NewBondResolver(rules.Bonds)),
		rng:     rng,
		log:     log,
		newID:   uuid.NewString,
		players: make(map[string]*Player),
		rooms:   make(map[string]*Room),
	}
}

func (m *Manager) Connect(id string) error {
	if _, ok := m.players[id]; ok {
		return ErrAlreadyConnected
	}
	m.players[id] = &Player{ID: id, State: StateConnected, Hand: engine.Hand{}}
	return nil
}

// Ready adds the player to the ready-set and forms a room once the quorum is met.
func (m *Manager) Ready(id string) ([]Event, error) {
	p, ok := m.players[id]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	switch p.State {
	case StateReadyPending:
		return nil, ErrAlreadyReady
	case StateInRoom:
		return nil, ErrAlreadyInRoom
	}

	p.State = StateReadyPending
	m.ready = append(m.ready, id)
	m.log.Debug("player ready", zap.String("player", id), zap.Int("ready", len(m.ready)))

	events := []Event{send(id, types.MsgStartCardGame, types.OK[any]("waiting for opponent", nil))}
	if len(m.ready) >= m.opts.Quorum {
		events = append(events, m.formRoom()...)
	}
	return events, nil
}

func (m *Manager) formRoom() []Event {
	seats := m.ready[:m.opts.Quorum]
	m.ready = slices.Clone(m.ready[m.opts.Quorum:])

	room := &Room{ID: m.newID(), Players: slices.Clone(seats)}
	hands, rest := m.rules.Deal(m.rng, len(room.Players), m.opts.HandSize)
	room.Deck = rest
	m.rooms[room.ID] = room

	first := room.Players[m.rng.IntN(len(room.Players))]

	var events []Event
	for i, pid := range room.Players {
		p := m.players[pid]
		p.State = StateInRoom
		p.RoomID = room.ID
		p.Hand = engine.NewHand(hands[i]...)
		events = append(events, send(pid, types.MsgInitPlayerCards, types.OK("cards dealt", p.Hand.Cards())))
	}
	events = append(events, m.setTurn(room, first)...)
	events = append(events, RoomOpened{Room: m.snapshot(room)})

	m.log.Info("room formed",
		zap.String("room", room.ID),
		zap.Strings("players", room.Players),
		zap.String("first", first),
		zap.Int("deck_left", len(room.Deck)))
	return events
}

// setTurn hands the turn to holder and tells every occupant from their own side.
func (m *Manager) setTurn(room *Room, holder string) []Event {
	events := make([]Event, 0, len(room.Players))
	for _, pid := range room.Players {
		p := m.players[pid]
		msg := types.TurnMessageOpponent
		p.Round = RoundOther
		if pid == holder {
			p.Round = RoundCurrent
			msg = types.TurnMessageYours
		}
		events = append(events, send(pid, types.MsgTurnNotification, types.OK[any](msg, nil)))
	}
	return events
}

func (m *Manager) seated(id string) (*Player, *Room, error) {
	p, ok := m.players[id]
	if !ok {
		return nil, nil, ErrUnknownPlayer
	}
	if p.State != StateInRoom {
		return nil, nil, ErrNotInRoom
	}
	room, ok := m.rooms[p.RoomID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrRoomNotFound, p.RoomID)
	}
	return p, room, nil
}

// Play scores the played cards and sends the result to every occupant, tagged
// Attacker for the actor and Receiver for everyone else. Played cards leave the hand.
func (m *Manager) Play(id string, cards []engine.Card) ([]Event, error) {
	p, room, err := m.seated(id)
	if err != nil {
		return nil, err
	}
	if !p.IsMyTurn() {
		return nil, ErrNotYourTurn
	}

	p.Hand.Remove(engine.CardIDs(cards)...)
	result := m.damage.ComputeDamage(cards, engine.Attacker)

	events := make([]Event, 0, len(room.Players)+1)
	for _, pid := range room.Players {
		view := result.As(engine.Receiver)
		if pid == id {
			view = result
		}
		events = append(events, send(pid, types.MsgDamageResult, types.OK("damage resolved", view)))
	}
	events = append(events, DamageDealt{RoomID: room.ID, Actor: id, Result: result})

	m.log.Debug("cards played",
		zap.String("room", room.ID),
		zap.String("player", id),
		zap.Int("cards", len(cards)),
		zap.Int("damage", result.TotalDamage),
		zap.Int("bonds", len(result.Bonds)))
	return events, nil
}

// Compose merges held cards through bonds and resyncs the actor's hand.
// Submitted cards that are not in the hand are ignored.
func (m *Manager) Compose(id string, cards []engine.Card) ([]Event, error) {
	p, room, err := m.seated(id)
	if err != nil {
		return nil, err
	}
	if !p.IsMyTurn() {
		return nil, ErrNotYourTurn
	}

	held := make([]engine.Card, 0, len(cards))
	for _, c := range cards {
		if owned, ok := p.Hand[c.CardID]; ok {
			held = append(held, owned)
		}
	}

	comp := m.damage.Compose(held)
	p.Hand.Remove(engine.CardIDs(comp.Consumed)...)
	p.Hand.Add(comp.Produced...)

	m.log.Debug("cards composed",
		zap.String("room", room.ID),
		zap.String("player", id),
		zap.Int("bonds", len(comp.Bonds)),
		zap.Int("hand", len(p.Hand)))

	msg := "composed"
	if len(comp.Bonds) == 0 {
		msg = "no bond formed"
	}
	return []Event{send(id, types.MsgInitPlayerCards, types.OK(msg, p.Hand.Cards()))}, nil
}

// HandSync resends a seated player's hand as it stands. Players outside a
// room get nothing.
func (m *Manager) HandSync(id string) []Event {
	p, ok := m.players[id]
	if !ok || p.State != StateInRoom {
		return nil
	}
	return []Event{send(id, types.MsgInitPlayerCards, types.OK("hand resync", p.Hand.Cards()))}
}

// Surrender takes the player out of their room or the ready-set.
func (m *Manager) Surrender(id string) ([]Event, error) {
	p, ok := m.players[id]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if p.State != StateInRoom && p.State != StateReadyPending {
		return nil, ErrNotInRoom
	}
	events := m.leave(p, StateSurrendered)
	return append([]Event{send(id, types.MsgSurrenderCardGame, types.OK[any]("left game", nil))}, events...), nil
}

// Disconnect forgets the player entirely.
func (m *Manager) Disconnect(id string) []Event {
	p, ok := m.players[id]
	if !ok {
		return nil
	}
	events := m.leave(p, StateDisconnected)
	delete(m.players, id)
	return events
}

// leave removes the player from the ready-set and their room. A room left
// empty is deleted. The remaining occupant is not awarded anything.
func (m *Manager) leave(p *Player, to State) []Event {
	m.ready = slices.DeleteFunc(m.ready, func(id string) bool { return id == p.ID })

	var events []Event
	if room, ok := m.rooms[p.RoomID]; ok {
		room.remove(p.ID)
		if len(room.Players) == 0 {
			delete(m.rooms, room.ID)
			events = append(events, RoomClosed{RoomID: room.ID})
			m.log.Info("room closed", zap.String("room", room.ID))
		}
	}

	m.log.Debug("player left", zap.String("player", p.ID), zap.String("state", string(to)))
	p.State = to
	p.RoomID = ""
	p.Round = ""
	p.Hand = engine.Hand{}
	return events
}

// AdvanceTurn consumes an external "turn changed" signal for a room.
func (m *Manager) AdvanceTurn(roomID, holder string) ([]Event, error) {
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	if !room.has(holder) {
		return nil, ErrNotOccupant
	}
	return m.setTurn(room, holder), nil
}

// Player returns a copy of the player's current record.
func (m *Manager) Player(id string) (Player, bool) {
	p, ok := m.players[id]
	if !ok {
		return Player{}, false
	}
	cp := *p
	cp.Hand = engine.NewHand(p.Hand.Cards()...)
	return cp, true
}

func (m *Manager) Room(id string) (types.RoomSnapshot, bool) {
	room, ok := m.rooms[id]
	if !ok {
		return types.RoomSnapshot{}, false
	}
	return m.snapshot(room), true
}

// Waiting lists the ready-set in arrival order.
func (m *Manager) Waiting() []string { return slices.Clone(m.ready) }

func (m *Manager) Rooms() []types.RoomSnapshot {
	out := make([]types.RoomSnapshot, 0, len(m.rooms))
	for _, room := range m.rooms {
		out = append(out, m.snapshot(room))
	}
	slices.SortFunc(out, func(a, b types.RoomSnapshot) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (m *Manager) snapshot(room *Room) types.RoomSnapshot {
	snap := types.RoomSnapshot{
		ID:        room.ID,
		Players:   slices.Clone(room.Players),
		HandSizes: make(map[string]int, len(room.Players)),
		DeckLeft:  len(room.Deck),
	}
	for _, pid := range room.Players {
		p := m.players[pid]
		snap.HandSizes[pid] = len(p.Hand)
		if p.IsMyTurn() {
			snap.Current = pid
		}
	}
	return snap
}
