package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
)

func TestChatSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "secret"}
	out, err := c.Chat(context.Background(), ChatRequest{Model: "m", TimeoutMs: 2000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello there" {
		t.Fatalf("unexpected content: %q", out)
	}
}

func TestChatAuthFailureNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "bad"}
	_, err := c.Chat(context.Background(), ChatRequest{Model: "m", TimeoutMs: 2000})
	if err != ErrUpstreamAuth {
		t.Fatalf("expected ErrUpstreamAuth, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one call for non-retryable auth failure, got %d", calls)
	}
}

func TestChatRetriesTransientStatusThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok now"}}]}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "secret"}
	out, err := c.Chat(context.Background(), ChatRequest{Model: "m", TimeoutMs: 2000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok now" {
		t.Fatalf("unexpected content: %q", out)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestChatExhaustsRetriesOnPersistentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "secret"}
	_, err := c.Chat(context.Background(), ChatRequest{Model: "m", TimeoutMs: 2000})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestChatRetriesMalformedJSONOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			_, _ = w.Write([]byte(`not json`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"recovered"}}]}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "secret"}
	out, err := c.Chat(context.Background(), ChatRequest{Model: "m", TimeoutMs: 2000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "recovered" {
		t.Fatalf("unexpected content: %q", out)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls (one retry), got %d", calls)
	}
}

func retryAfterHeader(secs int) http.Header {
	h := http.Header{}
	h.Set("Retry-After", strconv.Itoa(secs))
	return h
}

func TestRetryAfterWaitCapsAtMax(t *testing.T) {
	wait := retryAfterWait(retryAfterHeader(999))
	if wait != maxRetryAfter {
		t.Fatalf("expected wait capped at %v, got %v", maxRetryAfter, wait)
	}
}
