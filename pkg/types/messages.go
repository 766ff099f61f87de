package types

// Frame type tags.
//
// Client to server:
//
//	Connect            {Key}             first frame on every connection
//	StartCardGame      (no payload)      join the ready-set
//	PlayCards          [Card...]         staged, dispatched as a play
//	CompCards/CompCard [Card...]         staged, dispatched as a compose
//	SurrenderCardGame  (no payload)      leave the current room
//	Ping               {Timestamp}
//
// Server to client:
//
//	InitPlayerCards    Response[[]Card]  initial deal and hand resync
//	DamageResult       Response[DamageResult]
//	TurnNotification   Response[any]     "your turn" / "opponent's turn"
//	Pong               {Timestamp}
//
// Failed requests are answered under the request's own tag with a non-200 Code.
const (
	MsgConnect           = "Connect"
	MsgStartCardGame     = "StartCardGame"
	MsgPlayCards         = "PlayCards"
	MsgCompCards         = "CompCards"
	MsgCompCard          = "CompCard"
	MsgSurrenderCardGame = "SurrenderCardGame"
	MsgPing              = "Ping"

	MsgInitPlayerCards  = "InitPlayerCards"
	MsgDamageResult     = "DamageResult"
	MsgTurnNotification = "TurnNotification"
	MsgPong             = "Pong"
)

// Response codes. CodeOK is the only success value clients recognise.
const (
	CodeOK           = 200
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeNotYourTurn  = 403
	CodeConflict     = 409
	CodeInternal     = 500
)

const (
	TurnMessageYours    = "your turn"
	TurnMessageOpponent = "opponent's turn"
)

// Response is the envelope every structured server reply is wrapped in.
type Response[T any] struct {
	Code    int    `json:"Code"`
	Message string `json:"Message"`
	Data    T      `json:"Data,omitempty"`
}

func OK[T any](message string, data T) Response[T] {
	return Response[T]{Code: CodeOK, Message: message, Data: data}
}

func Fail(code int, message string) Response[any] {
	return Response[any]{Code: code, Message: message}
}

func (r Response[T]) Succeeded() bool { return r.Code == CodeOK }

type ConnectRequest struct {
	Key string `json:"Key"`
}

type ConnectAccepted struct {
	PlayerID string `json:"PlayerID"`
}

type Ping struct {
	Timestamp int64 `json:"Timestamp"`
}

type Pong = Ping
