package client

import (
	"fmt"

	"github.com/cardbattle/session-server/internal/engine"
	"github.com/cardbattle/session-server/internal/transport"
	"github.com/cardbattle/session-server/pkg/types"
)

// Event is a notification for the presentation layer.
type Event interface{ isEvent() }

type Connected struct{ PlayerID string }

// Disconnected carries the classified reason so callers can choose between
// retrying and surfacing the failure.
type Disconnected struct {
	Reason transport.DisconnectReason
	Err    error
}

type Reconnecting struct{ Attempt int }

type HandDealt struct {
	Cards   []engine.Card
	Message string
}

type DamageResolved struct{ Result engine.DamageResult }

type TurnChanged struct {
	Message string
	MyTurn  bool
}

type RequestFailed struct {
	Err     *RequestError
	Channel ErrorChannel
}

// Ack is a successful response that carries no state, e.g. StartCardGame.
type Ack struct {
	Type    string
	Message string
}

func (Connected) isEvent()      {}
func (Disconnected) isEvent()   {}
func (Reconnecting) isEvent()   {}
func (HandDealt) isEvent()      {}
func (DamageResolved) isEvent() {}
func (TurnChanged) isEvent()    {}
func (RequestFailed) isEvent()  {}
func (Ack) isEvent()            {}

type ErrorChannel string

const (
	InitCardsError  ErrorChannel = "InitCardsError"
	CardDamageError ErrorChannel = "CardDamageError"
	TurnError       ErrorChannel = "TurnError"
	NetworkError    ErrorChannel = "NetworkError"
)

// ChannelFor maps the request type a failure was reported under to the
// channel that surfaces it.
func ChannelFor(requestType string) ErrorChannel {
	switch requestType {
	case types.MsgInitPlayerCards, types.MsgStartCardGame:
		return InitCardsError
	case types.MsgDamageResult, types.MsgPlayCards, types.MsgCompCards, types.MsgCompCard:
		return CardDamageError
	case types.MsgTurnNotification, types.MsgSurrenderCardGame:
		return TurnError
	default:
		return NetworkError
	}
}

// RequestError is a non-200 response.
type RequestError struct {
	Message     string
	Code        int
	RequestType string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s failed with %d: %s", e.RequestType, e.Code, e.Message)
}
