//go:build !windows

package server

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"studiod/internal/registry"
	"studiod/internal/supervisor"
)

// freeAddr reserves a loopback port and releases it for the server to bind.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func waitForServer(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("server did not come up")
}

// A start that spends its whole readiness budget waiting must still deliver
// its response over a real connection, not have the server cut the write.
func TestSlowStartResponseIsDelivered(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	rtr, _ := testRouter(t, []registry.Descriptor{{
		Name: "lmStudio", Port: 1234, HealthURL: down.URL,
		Commands: []string{"sleep 30"},
	}}, "/api", supervisor.WithReadinessBudget(1500*time.Millisecond))

	addr := freeAddr(t)
	srv := NewServer(addr, rtr)
	t.Cleanup(func() { _ = srv.Close() })
	waitForServer(t, addr)

	client := &http.Client{Timeout: 10 * time.Second}
	started := time.Now()
	resp, err := client.Post("http://"+addr+"/api/services/lmStudio/start", "application/json", nil)
	if err != nil {
		t.Fatalf("start response never delivered (after %v): %v", time.Since(started), err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("status code = %d, want 504", resp.StatusCode)
	}
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error == "" {
		t.Fatalf("body = %+v", body)
	}
	if elapsed := time.Since(started); elapsed < time.Second {
		t.Fatalf("response after %v, expected it to wait out the readiness budget", elapsed)
	}

	// Reap the spawned child.
	resp2, err := client.Post("http://"+addr+"/api/services/lmStudio/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	_ = resp2.Body.Close()
}
