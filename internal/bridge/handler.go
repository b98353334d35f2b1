// Package bridge exposes a form session to an external renderer over HTTP
// and websocket.
package bridge

import (
	"context"
	"encoding/json"
	"errors"

	"landform/internal/actions"
	"landform/internal/form"
	"landform/internal/progress"
	"landform/internal/protocol"
	"landform/internal/sequence"
	"landform/internal/session"
)

// Session is what the bridge needs from *session.Controller.
type Session interface {
	State() session.State
	Content() *form.Content
	Start(ctx context.Context)
	Next(ctx context.Context, pending form.Answer)
	Previous()
	GoTo(index int)
	GoToRef(ref string) bool
	SetAnswer(ref string, value form.Answer)
	Submit(ctx context.Context)
	Reset(ctx context.Context)
	SetCaptchaToken(ctx context.Context, token string)
	Subscribe(fn func(session.State)) (cancel func())
}

type TimeEstimate struct {
	TotalSeconds     int    `json:"totalSeconds"`
	RemainingSeconds int    `json:"remainingSeconds"`
	Label            string `json:"label"`
}

// View is the payload of every state response and event.
type View struct {
	State    session.State      `json:"state"`
	Estimate TimeEstimate       `json:"estimate"`
	Segments []progress.Segment `json:"segments"`
	Action   *actions.Result    `json:"action,omitempty"`
}

func BuildView(content *form.Content, st session.State) View {
	current := -1
	if st.CurrentItem != nil && st.CurrentItem.Kind == sequence.KindField {
		current = st.CurrentItem.FieldIndex
	}
	total := progress.Estimate(content)
	return View{
		State: st,
		Estimate: TimeEstimate{
			TotalSeconds:     total,
			RemainingSeconds: progress.Remaining(content, st.Answers),
			Label:            progress.Format(total),
		},
		Segments: progress.Segments(content, st.Answers, current),
	}
}

type Handler struct {
	session Session
}

func NewHandler(s Session) *Handler {
	return &Handler{session: s}
}

// Handle runs one session request and replies with the resulting view.
func (h *Handler) Handle(ctx context.Context, msg protocol.Message) protocol.Message {
	var result *actions.Result

	switch msg.Op {
	case protocol.OpGet:
	case protocol.OpStart:
		h.session.Start(ctx)
	case protocol.OpNext:
		var payload struct {
			Value json.RawMessage `json:"value"`
		}
		if err := decodePayload(msg.Payload, &payload); err != nil {
			return protocol.ReplyError(msg, "BAD_PAYLOAD", err.Error())
		}
		value, err := form.DecodeAnswer(payload.Value)
		if err != nil {
			return protocol.ReplyError(msg, "INVALID_ANSWER", err.Error())
		}
		if value != nil {
			if field, ok := h.session.State().CurrentField(); ok {
				h.session.SetAnswer(field.Ref, value)
			}
		}
		h.session.Next(ctx, value)
	case protocol.OpPrevious:
		h.session.Previous()
	case protocol.OpGoTo:
		var payload struct {
			Index *int   `json:"index"`
			Ref   string `json:"ref"`
		}
		if err := decodePayload(msg.Payload, &payload); err != nil {
			return protocol.ReplyError(msg, "BAD_PAYLOAD", err.Error())
		}
		switch {
		case payload.Ref != "":
			if !h.session.GoToRef(payload.Ref) {
				return protocol.ReplyError(msg, "NOT_FOUND", "no screen or field with ref "+payload.Ref)
			}
		case payload.Index != nil:
			h.session.GoTo(*payload.Index)
		default:
			return protocol.ReplyError(msg, "BAD_PAYLOAD", "index or ref is required")
		}
	case protocol.OpAnswer:
		var payload struct {
			Ref   string          `json:"ref"`
			Value json.RawMessage `json:"value"`
		}
		if err := decodePayload(msg.Payload, &payload); err != nil {
			return protocol.ReplyError(msg, "BAD_PAYLOAD", err.Error())
		}
		if payload.Ref == "" {
			return protocol.ReplyError(msg, "BAD_PAYLOAD", "ref is required")
		}
		value, err := form.DecodeAnswer(payload.Value)
		if err != nil {
			return protocol.ReplyError(msg, "INVALID_ANSWER", err.Error())
		}
		h.session.SetAnswer(payload.Ref, value)
	case protocol.OpSubmit:
		h.session.Submit(ctx)
	case protocol.OpReset:
		h.session.Reset(ctx)
	case protocol.OpCaptcha:
		var payload struct {
			Token string `json:"token"`
		}
		if err := decodePayload(msg.Payload, &payload); err != nil {
			return protocol.ReplyError(msg, "BAD_PAYLOAD", err.Error())
		}
		if payload.Token == "" {
			return protocol.ReplyError(msg, "BAD_PAYLOAD", "token is required")
		}
		h.session.SetCaptchaToken(ctx, payload.Token)
	case protocol.OpAction:
		var a actions.Action
		if err := decodePayload(msg.Payload, &a); err != nil {
			return protocol.ReplyError(msg, "BAD_PAYLOAD", err.Error())
		}
		res, err := actions.Dispatch(ctx, h.session, a)
		if err != nil {
			return protocol.ReplyError(msg, "ACTION_FAILED", err.Error())
		}
		result = &res
	default:
		return protocol.ReplyError(msg, "UNKNOWN_OP", "unknown op "+msg.Op)
	}

	view := BuildView(h.session.Content(), h.session.State())
	view.Action = result
	return protocol.Reply(msg, view)
}

func decodePayload(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.New("invalid payload: " + err.Error())
	}
	return nil
}
