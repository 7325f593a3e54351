package readiness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func flakyServer(t *testing.T, failures int32) *httptest.Server {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWait_SucceedsAfterRetries(t *testing.T) {
	srv := flakyServer(t, 2)
	p := New(5, time.Millisecond)

	err := p.Wait(context.Background(), Endpoint{Name: "memory", URL: srv.URL})
	if err != nil {
		t.Errorf("Wait failed despite eventual recovery: %v", err)
	}
}

func TestWait_ExhaustsAttempts(t *testing.T) {
	srv := flakyServer(t, 100)
	p := New(3, time.Millisecond)

	err := p.Wait(context.Background(), Endpoint{Name: "memory", URL: srv.URL})
	if err == nil {
		t.Error("expected error after exhausting attempts")
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	srv := flakyServer(t, 100)
	p := New(100, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := p.Wait(ctx, Endpoint{Name: "memory", URL: srv.URL})
	if err == nil {
		t.Error("expected error on context cancellation")
	}
}

func TestWaitAll(t *testing.T) {
	ok := flakyServer(t, 0)
	alsoOK := flakyServer(t, 1)
	p := New(5, time.Millisecond)

	err := p.WaitAll(context.Background(), []Endpoint{
		{Name: "memory", URL: ok.URL},
		{Name: "embeddings", URL: alsoOK.URL},
	})
	if err != nil {
		t.Errorf("WaitAll: %v", err)
	}

	down := flakyServer(t, 100)
	err = p.WaitAll(context.Background(), []Endpoint{
		{Name: "memory", URL: ok.URL},
		{Name: "broken", URL: down.URL},
	})
	if err == nil {
		t.Error("expected failure when one endpoint never recovers")
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(0, 0)
	if p.attempts != 30 {
		t.Errorf("attempts = %d, want 30", p.attempts)
	}
	if p.backoff != 2*time.Second {
		t.Errorf("backoff = %v, want 2s", p.backoff)
	}
}
