package resilience

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Name:            "test",
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})

	req, err := http.NewRequest(http.MethodGet, server.URL, http.NoBody)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after retries, got %d", resp.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Name:            "test",
		InitialInterval: time.Millisecond,
	})

	req, _ := http.NewRequest(http.MethodGet, server.URL, http.NoBody)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected a single attempt for a 4xx, got %d", got)
	}
}

func TestClient_BreakerOpensOnRepeatedFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		Name:            "flaky",
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
		BreakerTimeout:  time.Minute,
	})

	// Hammer the failing endpoint until the breaker trips.
	for i := 0; i < 5; i++ {
		req, _ := http.NewRequest(http.MethodGet, server.URL, http.NoBody)
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
		}
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL, http.NoBody)
	_, err := client.Do(req)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestRegistry_Health(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewClient(ClientConfig{Name: "opendata"}))
	registry.Register(NewClient(ClientConfig{Name: "overpass"}))

	health, ok := registry.Health("opendata")
	if !ok {
		t.Fatal("expected opendata to be registered")
	}
	if !health.Healthy() {
		t.Error("fresh client should be healthy")
	}

	if _, ok := registry.Health("missing"); ok {
		t.Error("unknown provider should not report health")
	}

	if got := len(registry.AllHealth()); got != 2 {
		t.Errorf("expected 2 providers, got %d", got)
	}
}
