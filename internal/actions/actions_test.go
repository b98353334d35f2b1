package actions

import (
	"context"
	"strings"
	"testing"

	"landform/internal/form"
)

const template = `
<div class="hero">
  <h1>Thanks for stopping by</h1>
  <button class="lf-button" data-lf-action="next">  Continue
  </button>
  <button data-lf-action="back">Go Back</button>
  <span data-lf-action="teleport">ignored</span>
  <a data-lf-action="link" data-lf-url="https://example.com">Visit <b>Site</b></a>
  <button data-lf-action="goto" data-lf-target="welcome">Start Over</button>
  <button data-lf-action="">empty</button>
</div>`

func TestParse(t *testing.T) {
	got, err := Parse(template)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 actions, got %+v", got)
	}
	if got[0].Kind != KindNext || got[0].Tag != "button" || got[0].Label != "Continue" {
		t.Fatalf("unexpected first action: %+v", got[0])
	}
	if got[2].Kind != KindLink || got[2].URL != "https://example.com" || got[2].Label != "Visit Site" {
		t.Fatalf("unexpected link action: %+v", got[2])
	}
	if got[3].Kind != KindGoto || got[3].Target != TargetWelcome {
		t.Fatalf("unexpected goto action: %+v", got[3])
	}
}

type fakeSession struct {
	calls []string
	refs  map[string]bool
}

func (f *fakeSession) Next(ctx context.Context, pending form.Answer) { f.calls = append(f.calls, "next") }
func (f *fakeSession) Previous()                                     { f.calls = append(f.calls, "previous") }
func (f *fakeSession) Submit(ctx context.Context)                    { f.calls = append(f.calls, "submit") }
func (f *fakeSession) Reset(ctx context.Context)                     { f.calls = append(f.calls, "reset") }
func (f *fakeSession) GoTo(index int) {
	f.calls = append(f.calls, "goto:"+strings.Repeat("i", index))
}
func (f *fakeSession) GoToRef(ref string) bool {
	if !f.refs[ref] {
		return false
	}
	f.calls = append(f.calls, "ref:"+ref)
	return true
}

func TestDispatch(t *testing.T) {
	s := &fakeSession{refs: map[string]bool{"q2": true}}
	ctx := context.Background()
	for _, a := range []Action{
		{Kind: KindNext},
		{Kind: KindBack},
		{Kind: KindSubmit},
		{Kind: KindRestart},
		{Kind: KindGoto, Target: TargetWelcome},
		{Kind: KindGoto, Target: "q2"},
	} {
		res, err := Dispatch(ctx, s, a)
		if err != nil || !res.Applied {
			t.Fatalf("dispatch %s: res=%+v err=%v", a.Kind, res, err)
		}
	}
	want := "next,previous,submit,reset,goto:,ref:q2"
	if got := strings.Join(s.calls, ","); got != want {
		t.Fatalf("calls = %s, want %s", got, want)
	}
}

func TestDispatch_LinkAndErrors(t *testing.T) {
	s := &fakeSession{}
	ctx := context.Background()
	res, err := Dispatch(ctx, s, Action{Kind: KindLink, URL: "https://example.com"})
	if err != nil || res.OpenURL != "https://example.com" {
		t.Fatalf("unexpected link result: %+v %v", res, err)
	}
	if _, err := Dispatch(ctx, s, Action{Kind: KindGoto, Target: "nope"}); err == nil {
		t.Fatal("unknown goto target should fail")
	}
	if _, err := Dispatch(ctx, s, Action{Kind: KindLink}); err == nil {
		t.Fatal("link without url should fail")
	}
	if _, err := Dispatch(ctx, s, Action{Kind: "teleport"}); err == nil {
		t.Fatal("unknown action should fail")
	}
	if len(s.calls) != 0 {
		t.Fatalf("failed dispatches must not touch the session: %v", s.calls)
	}
}
