package storage

import (
	"bytes"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"landform/internal/form"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type brokenBackend struct{}

func (brokenBackend) Get(string) (string, bool, error) { return "", false, errors.New("disk on fire") }
func (brokenBackend) Set(string, string) error         { return errors.New("disk on fire") }
func (brokenBackend) Delete(string) error              { return errors.New("disk on fire") }

func TestGateway_SaveAndLoadProgress(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	mem := NewMemory()
	gw := NewGateway(mem, WithClock(clock.Now))

	gw.SaveProgress("p1", form.Answers{"a": form.Number(1), "tags": form.Choices{"x"}}, 2, "r1")
	raw, ok, _ := mem.Get("lf-autosave-p1")
	if !ok || !strings.Contains(raw, `"timestamp":1700000000000`) {
		t.Fatalf("unexpected stored snapshot: %q", raw)
	}

	snap := gw.LoadProgress("p1")
	if snap == nil {
		t.Fatal("expected snapshot")
	}
	if snap.CurrentIndex != 2 || snap.ResponseID != "r1" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Answers["a"] != form.Number(1) {
		t.Fatalf("unexpected answer: %#v", snap.Answers["a"])
	}
	if gw.LoadProgress("other") != nil {
		t.Fatal("snapshots must be scoped by project id")
	}
}

func TestGateway_SnapshotKeepsEveryAnswerShape(t *testing.T) {
	gw := NewGateway(NewMemory())
	answers := form.Answers{
		"text":    form.Text("Ada"),
		"number":  form.Number(0),
		"bool":    form.Bool(false),
		"choices": form.Choices{"Red", "Blue"},
		"matrix":  form.Flags{"r1": true, "r2": false},
		"legal":   form.Flags{"email": true, "sms": false},
		"regions": form.Flags{"state": true},
		"address": form.Address{Line1: "1 Main", City: "Springfield", Country: "US"},
		"sig":     form.Signature{Type: form.SignatureDrawn, Data: "data:image/png;base64,AAAA"},
		"contact": form.ContactInfo{FirstName: "Ada", Email: "ada@example.com"},
		"upload": form.FileUpload{Files: []form.UploadedFile{
			{ID: "f1", Filename: "cv.pdf", URL: "https://files.example.com/cv.pdf", Size: 2048, MimeType: "application/pdf"},
		}},
	}

	gw.SaveProgress("p1", answers, 3, "r1")
	snap := gw.LoadProgress("p1")
	if snap == nil {
		t.Fatal("snapshot lost after save")
	}
	if !reflect.DeepEqual(snap.Answers, answers) {
		t.Fatalf("answers changed across save/load:\n got  %#v\n want %#v", snap.Answers, answers)
	}
}

func TestGateway_ExpiredSnapshotIsPurged(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	mem := NewMemory()
	gw := NewGateway(mem, WithClock(clock.Now))

	gw.SaveProgress("p1", form.Answers{"a": form.Number(1)}, 2, "r1")
	clock.now = clock.now.Add(8 * 24 * time.Hour)

	if snap := gw.LoadProgress("p1"); snap != nil {
		t.Fatalf("expected expired snapshot to load as nil, got %+v", snap)
	}
	if _, ok, _ := mem.Get("lf-autosave-p1"); ok {
		t.Fatal("expired snapshot should be deleted on read")
	}
}

func TestGateway_SnapshotAtExactlySevenDaysIsKept(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	gw := NewGateway(NewMemory(), WithClock(clock.Now))

	gw.SaveProgress("p1", nil, 0, "")
	clock.now = clock.now.Add(MaxSnapshotAge)
	if gw.LoadProgress("p1") == nil {
		t.Fatal("snapshot at the expiry boundary should still load")
	}
}

func TestGateway_ClearProgressLeavesSubmissionMarker(t *testing.T) {
	gw := NewGateway(NewMemory())
	gw.SaveProgress("p1", nil, 1, "")
	gw.MarkAsSubmitted("p1")
	gw.ClearProgress("p1")

	if gw.LoadProgress("p1") != nil {
		t.Fatal("progress should be cleared")
	}
	if !gw.HasSubmitted("p1") {
		t.Fatal("submission marker is independent of progress")
	}
}

func TestGateway_CookieConsent(t *testing.T) {
	mem := NewMemory()
	gw := NewGateway(mem)
	if gw.HasCookieConsent() {
		t.Fatal("no consent by default")
	}
	gw.SetCookieConsent(true)
	if !gw.HasCookieConsent() {
		t.Fatal("consent should be recorded")
	}
	gw.SetCookieConsent(false)
	if gw.HasCookieConsent() || mem.Len() != 0 {
		t.Fatal("revoking consent should remove the key")
	}
	_ = mem.Set("lf-cookie-consent", "yes")
	if gw.HasCookieConsent() {
		t.Fatal("only the literal true counts as consent")
	}
}

func TestGateway_NilBackendIsNoop(t *testing.T) {
	gw := NewGateway(nil)
	gw.SaveProgress("p1", form.Answers{"a": form.Text("x")}, 1, "r")
	gw.MarkAsSubmitted("p1")
	gw.SetCookieConsent(true)
	if gw.Available() || gw.LoadProgress("p1") != nil || gw.HasSubmitted("p1") || gw.HasCookieConsent() {
		t.Fatal("nil backend should behave as empty storage")
	}

	var nilGateway *Gateway
	if nilGateway.LoadProgress("p1") != nil || nilGateway.HasSubmitted("p1") {
		t.Fatal("nil gateway should behave as empty storage")
	}
}

func TestGateway_BackendErrorsAreLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	gw := NewGateway(brokenBackend{}, WithLogger(logger))

	gw.SaveProgress("p1", nil, 0, "")
	if gw.LoadProgress("p1") != nil || gw.HasSubmitted("p1") || gw.HasCookieConsent() {
		t.Fatal("failing backend should yield safe defaults")
	}
	gw.ClearProgress("p1")
	if !strings.Contains(buf.String(), "error saving form progress") || !strings.Contains(buf.String(), `"project_id":"p1"`) {
		t.Fatalf("expected logged storage failure, got %s", buf.String())
	}
}

func TestGateway_CorruptSnapshotLoadsAsNil(t *testing.T) {
	mem := NewMemory()
	_ = mem.Set("lf-autosave-p1", "{not json")
	if NewGateway(mem).LoadProgress("p1") != nil {
		t.Fatal("corrupt snapshot should load as nil")
	}
}
