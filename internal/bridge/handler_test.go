package bridge

import (
	"context"
	"encoding/json"
	"testing"

	"landform/internal/form"
	"landform/internal/protocol"
	"landform/internal/responseapi"
	"landform/internal/responseapi/apitest"
	"landform/internal/session"
)

func testContent() form.Content {
	return form.Content{
		WelcomeScreens: []form.WelcomeScreen{{Ref: "w", Title: "Hi"}},
		Fields: []form.Field{
			{Ref: "name", Type: form.FieldShortText, Title: "Name", Validations: form.Validations{Required: true}},
			{Ref: "note", Type: form.FieldLongText, Title: "Note"},
		},
		ThankYouScreens: []form.ThankYouScreen{{Ref: "ty", Title: "Thanks"}},
	}
}

func newTestSession(t *testing.T, content form.Content) (*session.Controller, *apitest.Server) {
	t.Helper()
	api := apitest.New(t)
	c, err := session.New(context.Background(), session.Options{
		ProjectID: "p1",
		Content:   &content,
		Client:    responseapi.NewClient(responseapi.Options{BaseURL: api.URL, ProjectID: "p1"}),
	})
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c, api
}

func decodeView(t *testing.T, resp protocol.Message) View {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var v View
	if err := json.Unmarshal(resp.Payload, &v); err != nil {
		t.Fatalf("decode view failed: %v", err)
	}
	return v
}

func TestHandle_WalkThroughForm(t *testing.T) {
	c, api := newTestSession(t, testContent())
	h := NewHandler(c)
	ctx := context.Background()

	v := decodeView(t, h.Handle(ctx, protocol.Message{ID: "1", Type: protocol.TypeRequest, Op: protocol.OpStart}))
	if !v.State.IsStarted || v.State.CurrentIndex != 1 {
		t.Fatalf("expected started on first field, got %+v", v.State)
	}

	resp := h.Handle(ctx, protocol.Message{ID: "2", Type: protocol.TypeRequest, Op: protocol.OpNext})
	v = decodeView(t, resp)
	if v.State.Errors["name"] == "" || v.State.CurrentIndex != 1 {
		t.Fatalf("empty required field should block, got %+v", v.State)
	}

	v = decodeView(t, h.Handle(ctx, protocol.Message{
		ID: "3", Type: protocol.TypeRequest, Op: protocol.OpNext,
		Payload: protocol.MustRaw(map[string]any{"value": "Ada"}),
	}))
	if v.State.CurrentIndex != 2 || v.State.Answers["name"] != form.Text("Ada") {
		t.Fatalf("expected answer stored and cursor advanced, got %+v", v.State)
	}
	if len(v.Segments) != 2 || !v.Segments[0].Completed || !v.Segments[1].Current {
		t.Fatalf("unexpected segments: %+v", v.Segments)
	}

	v = decodeView(t, h.Handle(ctx, protocol.Message{
		ID: "4", Type: protocol.TypeRequest, Op: protocol.OpNext,
		Payload: protocol.MustRaw(map[string]any{"value": "done"}),
	}))
	if !v.State.IsCompleted || !v.State.IsOnThankYou {
		t.Fatalf("expected completion, got %+v", v.State)
	}
	if got := api.Completions(); len(got) != 1 {
		t.Fatalf("expected one completion, got %d", len(got))
	}
}

func TestHandle_Estimate(t *testing.T) {
	c, _ := newTestSession(t, testContent())
	v := decodeView(t, NewHandler(c).Handle(context.Background(), protocol.Message{ID: "1", Type: protocol.TypeRequest, Op: protocol.OpGet}))
	// welcome 10s + short_text 15s + long_text 45s
	if v.Estimate.TotalSeconds != 70 || v.Estimate.Label != "About 1 min" {
		t.Fatalf("unexpected estimate: %+v", v.Estimate)
	}
}

func TestHandle_AnswerAndGoTo(t *testing.T) {
	c, _ := newTestSession(t, testContent())
	h := NewHandler(c)
	ctx := context.Background()

	v := decodeView(t, h.Handle(ctx, protocol.Message{
		ID: "1", Type: protocol.TypeRequest, Op: protocol.OpAnswer,
		Payload: protocol.MustRaw(map[string]any{"ref": "note", "value": "hello"}),
	}))
	if v.State.Answers["note"] != form.Text("hello") {
		t.Fatalf("answer not stored: %+v", v.State.Answers)
	}

	v = decodeView(t, h.Handle(ctx, protocol.Message{
		ID: "2", Type: protocol.TypeRequest, Op: protocol.OpGoTo,
		Payload: protocol.MustRaw(map[string]any{"ref": "note"}),
	}))
	if v.State.CurrentIndex != 2 {
		t.Fatalf("expected goto note, got %d", v.State.CurrentIndex)
	}

	resp := h.Handle(ctx, protocol.Message{
		ID: "3", Type: protocol.TypeRequest, Op: protocol.OpGoTo,
		Payload: protocol.MustRaw(map[string]any{"ref": "missing"}),
	})
	if resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %+v", resp)
	}
}

func TestHandle_BadInput(t *testing.T) {
	c, _ := newTestSession(t, testContent())
	h := NewHandler(c)
	ctx := context.Background()

	cases := []struct {
		name string
		msg  protocol.Message
		code string
	}{
		{"unknown op", protocol.Message{ID: "1", Op: "session.fly"}, "UNKNOWN_OP"},
		{"answer without ref", protocol.Message{ID: "2", Op: protocol.OpAnswer, Payload: protocol.MustRaw(map[string]any{"value": "x"})}, "BAD_PAYLOAD"},
		{"goto without target", protocol.Message{ID: "3", Op: protocol.OpGoTo, Payload: json.RawMessage(`{}`)}, "BAD_PAYLOAD"},
		{"malformed payload", protocol.Message{ID: "4", Op: protocol.OpCaptcha, Payload: json.RawMessage(`"nope"`)}, "BAD_PAYLOAD"},
		{"empty captcha", protocol.Message{ID: "5", Op: protocol.OpCaptcha, Payload: json.RawMessage(`{"token":""}`)}, "BAD_PAYLOAD"},
		{"mixed list", protocol.Message{ID: "6", Op: protocol.OpAnswer, Payload: json.RawMessage(`{"ref":"note","value":[1,"a"]}`)}, "INVALID_ANSWER"},
		{"bad action", protocol.Message{ID: "7", Op: protocol.OpAction, Payload: json.RawMessage(`{"action":"goto"}`)}, "ACTION_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := h.Handle(ctx, tc.msg)
			if resp.Type != protocol.TypeResponse || resp.ID != tc.msg.ID {
				t.Fatalf("unexpected envelope: %+v", resp)
			}
			if resp.Error == nil || resp.Error.Code != tc.code {
				t.Fatalf("expected %s, got %+v", tc.code, resp.Error)
			}
		})
	}
}

func TestHandle_LinkActionReturnsURL(t *testing.T) {
	c, _ := newTestSession(t, testContent())
	v := decodeView(t, NewHandler(c).Handle(context.Background(), protocol.Message{
		ID: "1", Type: protocol.TypeRequest, Op: protocol.OpAction,
		Payload: json.RawMessage(`{"action":"link","url":"https://example.com"}`),
	}))
	if v.Action == nil || v.Action.OpenURL != "https://example.com" {
		t.Fatalf("expected link result, got %+v", v.Action)
	}
}

func TestHandle_CaptchaFlow(t *testing.T) {
	content := form.Content{Fields: []form.Field{{Ref: "a", Type: form.FieldShortText, Title: "A"}}}
	api := apitest.New(t)
	c, err := session.New(context.Background(), session.Options{
		ProjectID: "p1",
		Content:   &content,
		Settings:  form.Settings{CaptchaEnabled: true},
		Client:    responseapi.NewClient(responseapi.Options{BaseURL: api.URL, ProjectID: "p1"}),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	h := NewHandler(c)
	ctx := context.Background()

	v := decodeView(t, h.Handle(ctx, protocol.Message{ID: "1", Op: protocol.OpSubmit}))
	if !v.State.ShowCaptcha || v.State.IsCompleted {
		t.Fatalf("expected captcha gate, got %+v", v.State)
	}
	v = decodeView(t, h.Handle(ctx, protocol.Message{ID: "2", Op: protocol.OpCaptcha, Payload: json.RawMessage(`{"token":"tok"}`)}))
	if !v.State.IsCompleted {
		t.Fatalf("expected completion after token, got %+v", v.State)
	}
	comps := api.Completions()
	if len(comps) != 1 || comps[0].CaptchaToken != "tok" {
		t.Fatalf("unexpected completions: %+v", comps)
	}
}
