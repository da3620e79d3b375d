package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPRouterDecodesSubjectFromResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(classifyResponse{Subject: "math", Confidence: 0.95})
	}))
	defer srv.Close()

	r := NewHTTPRouter(srv.URL, time.Second)
	got, err := r.Route(context.Background(), "what is 9 times 8?")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if got.Subject != SubjectMath {
		t.Fatalf("Subject = %v, want math", got.Subject)
	}
}

func TestHTTPRouterRetriesOnRetryableStatus(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(classifyResponse{Subject: "history"})
	}))
	defer srv.Close()

	r := NewHTTPRouter(srv.URL, time.Second)
	got, err := r.Route(context.Background(), "tell me about rome")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if got.Subject != SubjectHistory {
		t.Fatalf("Subject = %v, want history", got.Subject)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestHTTPRouterDoesNotRetryOnNonRetryableStatus(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	r := NewHTTPRouter(srv.URL, time.Second)
	_, err := r.Route(context.Background(), "x")
	if err == nil {
		t.Fatalf("Route() error = nil, want error for 400")
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry on non-retryable status)", attempts)
	}
}

func TestHTTPRouterExhaustsRetriesAndReturnsError(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	r := NewHTTPRouter(srv.URL, time.Second)
	_, err := r.Route(context.Background(), "x")
	if err == nil {
		t.Fatalf("Route() error = nil, want error after exhausting retries")
	}
	if atomic.LoadInt32(&attempts) != maxClassifyAttempts {
		t.Fatalf("attempts = %d, want %d", attempts, maxClassifyAttempts)
	}
}
