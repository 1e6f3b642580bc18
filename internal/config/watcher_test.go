package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archos.yaml")
	writeConfigFile(t, path, validYAML)

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Server.ListenAddr; got != ":9000" {
		t.Errorf("listen_addr = %q", got)
	}
}

func TestWatcher_InitialLoadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archos.yaml")
	writeConfigFile(t, path, "server: [not a mapping]")

	if _, err := NewWatcher(path, nil); err == nil {
		t.Fatal("invalid initial config accepted")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archos.yaml")
	writeConfigFile(t, path, validYAML)

	var mu sync.Mutex
	var gotNew *Config
	w, err := NewWatcher(path, func(_, new *Config) {
		mu.Lock()
		gotNew = new
		mu.Unlock()
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Rewrite with a different history limit. The mtime check needs the
	// modification time to move, which WriteFile guarantees.
	writeConfigFile(t, path, validYAML+"\n# bumped\n")
	writeConfigFile(t, path, `
database:
  dsn: "postgres://localhost/archos"
chat:
  history_limit: 7
`)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := gotNew != nil && gotNew.Chat.HistoryLimit == 7
		mu.Unlock()
		if done {
			if w.Current().Chat.HistoryLimit != 7 {
				t.Errorf("Current not updated: %d", w.Current().Chat.HistoryLimit)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("change not detected within deadline")
}

func TestWatcher_KeepsOldConfigOnInvalidUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archos.yaml")
	writeConfigFile(t, path, validYAML)

	called := make(chan struct{}, 1)
	w, err := NewWatcher(path, func(_, _ *Config) {
		select {
		case called <- struct{}{}:
		default:
		}
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeConfigFile(t, path, "feed:\n  driver: kafka\n")

	select {
	case <-called:
		t.Fatal("onChange fired for invalid config")
	case <-time.After(100 * time.Millisecond):
	}
	if got := w.Current().Server.ListenAddr; got != ":9000" {
		t.Errorf("Current() changed after invalid update: %q", got)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archos.yaml")
	writeConfigFile(t, path, validYAML)

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
	w.Stop()
}
