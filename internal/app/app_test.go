package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/archos-hq/archos/internal/config"
	"github.com/archos-hq/archos/internal/hub"
	"github.com/archos-hq/archos/pkg/feed"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{ListenAddr: "127.0.0.1:0", LogLevel: config.LogInfo},
		Feed:      config.FeedConfig{Driver: config.FeedMemory},
		Heartbeat: config.HeartbeatConfig{FreshnessSeconds: 30},
		Chat:      config.ChatConfig{HistoryLimit: 100},
	}
}

func newMemApp(t *testing.T) *App {
	t.Helper()
	bus := feed.NewBus()
	tables := hub.NewMemTables(bus)

	a, err := New(context.Background(), testConfig(), WithBackend(tables, bus))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Feed.Driver = "carrier-pigeon"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestNewRejectsBadSecretsKey(t *testing.T) {
	cfg := testConfig()
	cfg.Secrets.Key = "not base64"

	bus := feed.NewBus()
	if _, err := New(context.Background(), cfg, WithBackend(hub.NewMemTables(bus), bus)); err == nil {
		t.Fatal("bad key accepted")
	}
}

func TestRunServesUntilCancelled(t *testing.T) {
	a := newMemApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	var addr string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr = a.Addr(); addr != "" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("listener never bound")
	}

	// Full round trip through gateway, hub, and mem tables.
	resp, err := http.Post("http://"+addr+"/api/tickets", "application/json",
		strings.NewReader(`{"title":"Ship v1"}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created["status"] != "backlog" {
		t.Errorf("defaults not applied: %v", created)
	}

	health, err := http.Get("http://" + addr + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("readyz status = %d", health.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	if err := a.Shutdown(shCtx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	a := newMemApp(t)
	ctx := context.Background()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
}
