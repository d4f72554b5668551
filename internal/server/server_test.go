package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/hassctl/internal/auth"
	"github.com/danmuck/hassctl/internal/testutil/testlog"
)

func TestHealthzReportsSession(t *testing.T) {
	testlog.Start(t)
	connected := true
	m := NewMonitor(Options{
		Version: "test",
		Status: func() Status {
			return Status{ConnID: "c-1", ServerVersion: "2024.6.1", Connected: connected}
		},
	})

	rr := httptest.NewRecorder()
	m.HTTPRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var body struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Session Status `json:"session"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Service != "hassctl" || body.Session.ServerVersion != "2024.6.1" {
		t.Fatalf("unexpected body %+v", body)
	}

	connected = false
	rr = httptest.NewRecorder()
	m.HTTPRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when disconnected, got %d", rr.Code)
	}
}

func TestMetricsBearerGuard(t *testing.T) {
	testlog.Start(t)
	m := NewMonitor(Options{Guard: auth.StaticToken{Token: "scrape"}})

	rr := httptest.NewRecorder()
	m.HTTPRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer scrape")
	rr = httptest.NewRecorder()
	m.HTTPRouter().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "hassctl_") {
		t.Fatalf("expected hassctl metrics in scrape output")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback listener unavailable: %v", err)
	}
	m := NewMonitor(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("serve did not stop after cancel")
	}
}
