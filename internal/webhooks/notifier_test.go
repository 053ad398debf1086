package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noWait(int) time.Duration { return 0 }

func TestNotifySuccessAndSignature(t *testing.T) {
	var gotSig, gotType string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		gotType = r.Header.Get(HeaderEventType)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "secret", 3, zerolog.Nop())
	n.HTTP = srv.Client()
	if err := n.Notify(context.Background(), "run.completed", map[string]any{"runId": "r1"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if gotType != "run.completed" {
		t.Fatalf("event type header: %q", gotType)
	}
	if !VerifyHMAC("secret", body, gotSig) {
		t.Fatalf("signature %q does not verify", gotSig)
	}
}

func TestNotifyRetriesThenFails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(500)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "", 3, zerolog.Nop())
	n.HTTP = srv.Client()
	n.Backoff = noWait
	if err := n.Notify(context.Background(), "run.failed", nil); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("want 3 attempts, got %d", got)
	}
}

func TestNotifyRecoversAfterFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(503)
			return
		}
		w.WriteHeader(204)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "", 5, zerolog.Nop())
	n.HTTP = srv.Client()
	n.Backoff = noWait
	if err := n.Notify(context.Background(), "run.completed", nil); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("want 2 attempts, got %d", got)
	}
}

func TestNotifyWithoutURLIsNoop(t *testing.T) {
	var n *Notifier
	if err := n.Notify(context.Background(), "x", nil); err != nil {
		t.Fatalf("nil notifier: %v", err)
	}
	if err := (&Notifier{}).Notify(context.Background(), "x", nil); err != nil {
		t.Fatalf("empty url: %v", err)
	}
}

func TestNextBackoff(t *testing.T) {
	if nextBackoff(-1) != time.Second || nextBackoff(0) != time.Second {
		t.Fatal("first retry should wait one second")
	}
	if nextBackoff(3) != 8*time.Second {
		t.Fatalf("backoff(3) = %v", nextBackoff(3))
	}
	if nextBackoff(50) != 1024*time.Second {
		t.Fatalf("backoff is capped at 2^10 seconds, got %v", nextBackoff(50))
	}
}

func TestVerifyHMACRejectsGarbage(t *testing.T) {
	if VerifyHMAC("k", []byte("b"), "zz") {
		t.Fatal("non-hex signature must not verify")
	}
	if VerifyHMAC("k", []byte("b"), SignHMAC("other", []byte("b"))) {
		t.Fatal("wrong secret must not verify")
	}
}
