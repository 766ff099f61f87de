package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cardbattle/session-server/internal/engine"
	"github.com/cardbattle/session-server/pkg/types"
)

var (
	ErrQueueFull = errors.New("history: queue full")
	ErrClosed    = errors.New("history: recorder closed")
)

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Async hands writes to a single background worker so the session loop never
// waits on the database. When the queue is full the write is dropped.
type Async struct {
	inner   Recorder
	log     *zap.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	jobs   chan job
	done   chan struct{}
}

func NewAsync(inner Recorder, size int, log *zap.Logger) *Async {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Async{
		inner:   inner,
		log:     log,
		timeout: 5 * time.Second,
		jobs:    make(chan job, size),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for j := range a.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := j.run(ctx); err != nil {
			a.log.Warn("history write failed", zap.String("op", j.name), zap.Error(err))
		}
		cancel()
	}
}

func (a *Async) enqueue(name string, fn func(ctx context.Context) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.jobs <- job{name: name, run: fn}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Async) RoomOpened(_ context.Context, room types.RoomSnapshot) error {
	return a.enqueue("room_opened", func(ctx context.Context) error {
		return a.inner.RoomOpened(ctx, room)
	})
}

func (a *Async) RoomClosed(_ context.Context, roomID string) error {
	return a.enqueue("room_closed", func(ctx context.Context) error {
		return a.inner.RoomClosed(ctx, roomID)
	})
}

func (a *Async) DamageDealt(_ context.Context, roomID, actor string, result engine.DamageResult) error {
	return a.enqueue("damage_dealt", func(ctx context.Context) error {
		return a.inner.DamageDealt(ctx, roomID, actor, result)
	})
}

// Close stops accepting writes and waits for queued ones to finish.
func (a *Async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.jobs)
	}
	a.mu.Unlock()
	<-a.done
	return nil
}
