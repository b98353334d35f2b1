package rediskv

import (
	"net"
	"testing"
	"time"

	"landform/internal/form"
	"landform/internal/storage"
)

// unreachableAddr returns an address nothing listens on.
func unreachableAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestStore_UnreachableReturnsErrors(t *testing.T) {
	st := New(Options{Addr: unreachableAddr(t)})
	st.opTimeout = 300 * time.Millisecond
	defer func() { _ = st.Close() }()

	if _, _, err := st.Get("k"); err == nil {
		t.Fatal("expected get error against unreachable redis")
	}
	if err := st.Set("k", "v"); err == nil {
		t.Fatal("expected set error against unreachable redis")
	}
}

func TestGateway_DegradesWhenRedisIsDown(t *testing.T) {
	st := New(Options{Addr: unreachableAddr(t), Prefix: "landform:"})
	st.opTimeout = 300 * time.Millisecond
	defer func() { _ = st.Close() }()

	gw := storage.NewGateway(st)
	gw.SaveProgress("p1", form.Answers{"a": form.Number(1)}, 1, "r1")
	if snap := gw.LoadProgress("p1"); snap != nil {
		t.Fatalf("expected nil snapshot, got %+v", snap)
	}
	if gw.HasSubmitted("p1") {
		t.Fatal("expected false when storage is down")
	}
	if gw.HasCookieConsent() {
		t.Fatal("expected no consent when storage is down")
	}
	gw.ClearProgress("p1")
	gw.SetCookieConsent(false)
}
