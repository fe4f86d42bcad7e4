package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimitedClient_PassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewLimitedClient(server.Client(), 100, 2)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
}

func TestLimitedClient_WaitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer server.Close()

	// One token per minute: the second request cannot be admitted in time.
	c := NewLimitedClient(server.Client(), 1.0/60, 1)
	first, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := c.Do(first)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	second, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if _, err := c.Do(second); err == nil {
		t.Fatal("expected rate limiter error")
	}
}

func TestFetchError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	fe := &FetchError{AssetID: "CTO:X", Symbol: "X", Err: cause}
	if !errors.Is(fe, cause) {
		t.Error("expected FetchError to unwrap to its cause")
	}
}
