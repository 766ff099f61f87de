package client

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/cardbattle/session-server/internal/engine"
	"github.com/cardbattle/session-server/internal/wire"
	"github.com/cardbattle/session-server/pkg/types"
)

func (c *Client) handle(f wire.Frame) {
	switch f.Type {
	case types.MsgInitPlayerCards:
		resp, ok := decodeResponse[[]engine.Card](c, f)
		if !ok {
			return
		}
		c.mu.Lock()
		c.hand = engine.NewHand(resp.Data...)
		c.mu.Unlock()
		c.emit(HandDealt{Cards: resp.Data, Message: resp.Message})

	case types.MsgDamageResult:
		resp, ok := decodeResponse[engine.DamageResult](c, f)
		if !ok {
			return
		}
		c.emit(DamageResolved{Result: resp.Data})

	case types.MsgTurnNotification:
		resp, ok := decodeResponse[json.RawMessage](c, f)
		if !ok {
			return
		}
		mine := resp.Message == types.TurnMessageYours
		c.mu.Lock()
		if mine {
			c.round = roundCurrent
		} else {
			c.round = roundOther
		}
		c.mu.Unlock()
		c.emit(TurnChanged{Message: resp.Message, MyTurn: mine})

	case types.MsgPong:
		var pong types.Pong
		if err := f.Unmarshal(&pong); err == nil {
			c.log.Debug("pong", zap.Int64("ts", pong.Timestamp))
		}

	case types.MsgStartCardGame, types.MsgSurrenderCardGame,
		types.MsgPlayCards, types.MsgCompCards, types.MsgCompCard, types.MsgConnect:
		resp, ok := decodeResponse[json.RawMessage](c, f)
		if !ok {
			return
		}
		c.emit(Ack{Type: f.Type, Message: resp.Message})

	default:
		c.log.Warn("unknown message type", zap.String("type", f.Type))
	}
}

// decodeResponse unwraps the envelope, turning non-200 codes into a
// RequestFailed event.
func decodeResponse[T any](c *Client, f wire.Frame) (types.Response[T], bool) {
	var resp types.Response[T]
	if err := f.Unmarshal(&resp); err != nil {
		c.log.Warn("bad response payload", zap.String("type", f.Type), zap.Error(err))
		return resp, false
	}
	if !resp.Succeeded() {
		reqErr := &RequestError{Message: resp.Message, Code: resp.Code, RequestType: f.Type}
		c.log.Debug("request failed", zap.Error(reqErr))
		c.emit(RequestFailed{Err: reqErr, Channel: ChannelFor(f.Type)})
		return resp, false
	}
	return resp, true
}
