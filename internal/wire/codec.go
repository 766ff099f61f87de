// Package wire frames messages as back-to-back JSON objects on a byte stream.
//
// A frame is {"type": "...", "payload": "..."} where payload is itself JSON
// text carried as a string. There is no length prefix; the decoder finds the
// end of each object by tracking brace depth outside string literals.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxBufferSize bounds how much unframed input a Decoder will hold.
const MaxBufferSize = 1 << 20

var (
	ErrBufferOverflow = errors.New("wire: frame buffer exceeded limit")
	ErrMalformedFrame = errors.New("wire: malformed frame")
	ErrEmptyPayload   = errors.New("wire: frame has no payload")
)

type Frame struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// Encode marshals payload to JSON and wraps it in a frame of the given type.
// A nil payload produces an empty payload string.
func Encode(msgType string, payload any) ([]byte, error) {
	f := Frame{Type: msgType}
	if payload != nil {
		var body []byte
		switch p := payload.(type) {
		case json.RawMessage:
			body = p
		default:
			b, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
			}
			body = b
		}
		f.Payload = string(body)
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", msgType, err)
	}
	return b, nil
}

// MustEncode is Encode for payloads that are known to marshal.
func MustEncode(msgType string, payload any) []byte {
	b, err := Encode(msgType, payload)
	if err != nil {
		panic(err)
	}
	return b
}

// Unmarshal decodes the frame's payload into v.
func (f Frame) Unmarshal(v any) error {
	if f.Payload == "" {
		return fmt.Errorf("%s: %w", f.Type, ErrEmptyPayload)
	}
	if err := json.Unmarshal([]byte(f.Payload), v); err != nil {
		return fmt.Errorf("%s payload: %w", f.Type, err)
	}
	return nil
}
