// Package client is the player-side connection manager. It owns one server
// connection at a time, reconnects on demand at a fixed interval, tracks the
// local hand and turn token, and reports everything else as Events.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/cardbattle/session-server/internal/engine"
	"github.com/cardbattle/session-server/internal/transport"
	"github.com/cardbattle/session-server/internal/wire"
	"github.com/cardbattle/session-server/pkg/types"
)

var (
	ErrBusy         = errors.New("already connected or connecting")
	ErrNotConnected = errors.New("not connected")
	ErrClosed       = errors.New("client closed")
	ErrNotYourTurn  = errors.New("not your turn")
	ErrUnknownCard  = errors.New("card not in hand")
)

// Turn tokens as the server frames them for this player.
const (
	roundCurrent = "current"
	roundOther   = "other"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Dialer opens a raw transport to the server.
type Dialer func(ctx context.Context) (transport.Conn, error)

func TCPDialer(addr string, readTimeout time.Duration) Dialer {
	return func(ctx context.Context) (transport.Conn, error) {
		c, err := transport.DialTCP(ctx, addr, readTimeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func WSDialer(url string, readTimeout time.Duration) Dialer {
	return func(ctx context.Context) (transport.Conn, error) {
		c, err := transport.DialWS(ctx, url, readTimeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

type Options struct {
	ConnectKey        string
	ReconnectInterval time.Duration
	ReconnectAttempts uint
	HeartbeatInterval time.Duration // 0 disables pings
	HandshakeTimeout  time.Duration
	EventBuffer       int
}

func (o Options) withDefaults() Options {
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = 2 * time.Second
	}
	if o.ReconnectAttempts == 0 {
		o.ReconnectAttempts = 5
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 5 * time.Second
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 64
	}
	return o
}

type Client struct {
	dial   Dialer
	opts   Options
	log    *zap.Logger
	events chan Event

	writeMu sync.Mutex

	mu       sync.Mutex
	state    State
	conn     transport.Conn
	cancel   context.CancelFunc
	playerID string
	round    string
	hand     engine.Hand
}

func New(dial Dialer, opts Options, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()
	return &Client{
		dial:   dial,
		opts:   opts,
		log:    log,
		events: make(chan Event, opts.EventBuffer),
		hand:   engine.NewHand(),
	}
}

// Events never closes. Events are dropped when the buffer is full.
func (c *Client) Events() <-chan Event { return c.events }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

func (c *Client) IsMyTurn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round == roundCurrent
}

func (c *Client) Hand() []engine.Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hand.Cards()
}

// Connect dials and blocks until the handshake succeeds or every attempt
// has failed.
func (c *Client) Connect(ctx context.Context) error {
	if !c.begin() {
		return ErrBusy
	}
	return c.connect(ctx)
}

// Reconnect starts a background connect. It is a no-op returning false when
// a connection is already up or being established.
func (c *Client) Reconnect(ctx context.Context) bool {
	if !c.begin() {
		return false
	}
	go func() { _ = c.connect(ctx) }()
	return true
}

func (c *Client) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected {
		return false
	}
	c.state = StateConnecting
	return true
}

type link struct {
	conn     transport.Conn
	dec      *wire.Decoder
	playerID string
}

func (c *Client) connect(ctx context.Context) error {
	attempt := 0
	op := func() (link, error) {
		attempt++
		if attempt > 1 {
			c.emit(Reconnecting{Attempt: attempt})
		}
		l, err := c.open(ctx)
		if err != nil {
			c.log.Debug("connect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			var reqErr *RequestError
			if errors.As(err, &reqErr) {
				return link{}, backoff.Permanent(err)
			}
			return link{}, err
		}
		return l, nil
	}

	l, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.opts.ReconnectInterval)),
		backoff.WithMaxTries(c.opts.ReconnectAttempts),
	)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()

		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			c.emit(RequestFailed{Err: reqErr, Channel: ChannelFor(reqErr.RequestType)})
		}
		c.log.Warn("connect failed", zap.Int("attempts", attempt), zap.Error(err))
		c.emit(Disconnected{Reason: transport.ReasonConnectFailed, Err: err})
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.state = StateConnected
	c.conn = l.conn
	c.cancel = cancel
	c.playerID = l.playerID
	c.round = ""
	c.mu.Unlock()

	c.log.Info("connected", zap.String("player", l.playerID), zap.String("remote", l.conn.RemoteAddr()))
	c.emit(Connected{PlayerID: l.playerID})

	go c.readLoop(runCtx, l)
	if c.opts.HeartbeatInterval > 0 {
		go c.heartbeat(runCtx)
	}
	return nil
}

// open dials and performs the connect-key handshake.
func (c *Client) open(ctx context.Context) (link, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return link{}, err
	}

	hctx, cancel := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	defer cancel()

	fail := func(err error) (link, error) {
		_ = conn.Close("handshake failed")
		return link{}, err
	}
	if err := conn.Write(hctx, wire.MustEncode(types.MsgConnect, types.ConnectRequest{Key: c.opts.ConnectKey})); err != nil {
		return fail(err)
	}

	dec := wire.NewDecoder(c.log)
	for {
		f, ok, err := dec.Next()
		if err != nil {
			continue
		}
		if !ok {
			data, err := conn.Read(hctx)
			if err != nil {
				return fail(err)
			}
			dec.Feed(data)
			continue
		}
		if f.Type != types.MsgConnect {
			c.log.Debug("frame before connect response", zap.String("type", f.Type))
			continue
		}
		var resp types.Response[types.ConnectAccepted]
		if err := f.Unmarshal(&resp); err != nil {
			return fail(fmt.Errorf("connect response: %w", err))
		}
		if !resp.Succeeded() {
			return fail(&RequestError{Message: resp.Message, Code: resp.Code, RequestType: types.MsgConnect})
		}
		return link{conn: conn, dec: dec, playerID: resp.Data.PlayerID}, nil
	}
}

func (c *Client) readLoop(ctx context.Context, l link) {
	var err error
	for err == nil {
		for {
			f, ok, derr := l.dec.Next()
			if derr != nil {
				c.log.Warn("dropping malformed frame", zap.Error(derr))
				continue
			}
			if !ok {
				break
			}
			c.handle(f)
		}
		var data []byte
		data, err = l.conn.Read(ctx)
		l.dec.Feed(data)
	}

	c.mu.Lock()
	current := c.conn == l.conn
	if current {
		c.state = StateDisconnected
		c.conn = nil
		c.round = ""
		c.cancel()
	}
	c.mu.Unlock()
	if !current {
		return
	}

	_ = l.conn.Close("read failed")
	reason := transport.Classify(err)
	c.log.Info("disconnected", zap.Stringer("reason", reason), zap.Error(err))
	c.emit(Disconnected{Reason: reason, Err: err})
}

func (c *Client) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := c.Ping(ctx, now); err != nil {
				c.log.Debug("heartbeat stopped", zap.Error(err))
				return
			}
		}
	}
}

// Close drops the current connection without reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	conn, cancel := c.conn, c.cancel
	c.conn = nil
	c.state = StateDisconnected
	c.round = ""
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	cancel()
	err := conn.Close("client closed")
	c.emit(Disconnected{Reason: transport.ReasonOther, Err: ErrClosed})
	return err
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn("event buffer full, dropping event", zap.String("event", fmt.Sprintf("%T", ev)))
	}
}
