// Package protocol is the websocket envelope spoken by the bridge.
package protocol

import "encoding/json"

const (
	TypeRequest  = "req"
	TypeResponse = "res"
	TypeEvent    = "event"
)

// Event and request ops.
const (
	OpState = "session.state"

	OpStart    = "session.start"
	OpNext     = "session.next"
	OpPrevious = "session.previous"
	OpGoTo     = "session.goto"
	OpAnswer   = "session.answer"
	OpSubmit   = "session.submit"
	OpReset    = "session.reset"
	OpCaptcha  = "session.captcha"
	OpAction   = "session.action"
	OpGet      = "session.get"
)

type Message struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrPayload     `json:"error,omitempty"`
}

type ErrPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func MustRaw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// Reply builds the response to req.
func Reply(req Message, payload any) Message {
	return Message{ID: req.ID, Type: TypeResponse, Op: req.Op, Payload: MustRaw(payload)}
}

// ReplyError builds a failed response to req.
func ReplyError(req Message, code, msg string) Message {
	return Message{ID: req.ID, Type: TypeResponse, Op: req.Op, Error: &ErrPayload{Code: code, Message: msg}}
}
