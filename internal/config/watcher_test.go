package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherInitialLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dojo.yaml")
	writeConfig(t, path, "agent:\n  api_key: test-key\n  voice: Kore\n")

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Agent.Voice; got != "Kore" {
		t.Errorf("Current().Agent.Voice = %q, want Kore", got)
	}
}

func TestWatcherInitialLoadFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dojo.yaml")
	writeConfig(t, path, "server:\n  log_level: loud\n")

	if _, err := NewWatcher(path, nil); err == nil {
		t.Fatal("expected error for invalid initial config, got nil")
	}
}

func TestWatcherDetectsChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dojo.yaml")
	writeConfig(t, path, "agent:\n  api_key: test-key\n")

	var (
		mu     sync.Mutex
		gotNew *Config
	)
	onChange := func(old, new *Config) {
		mu.Lock()
		gotNew = new
		mu.Unlock()
	}

	w, err := NewWatcher(path, onChange, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Force a distinct mtime; coarse filesystem timestamps would otherwise
	// mask the rewrite.
	writeConfig(t, path, "agent:\n  api_key: test-key\n  voice: Puck\n")
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		done := gotNew != nil
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for onChange")
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if gotNew.Agent.Voice != "Puck" {
		t.Errorf("onChange new.Agent.Voice = %q, want Puck", gotNew.Agent.Voice)
	}
	if w.Current().Agent.Voice != "Puck" {
		t.Errorf("Current() not updated after reload")
	}
}

func TestWatcherKeepsOldConfigOnInvalidRewrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dojo.yaml")
	writeConfig(t, path, "agent:\n  api_key: test-key\n  voice: Kore\n")

	changed := make(chan struct{}, 1)
	w, err := NewWatcher(path, func(old, new *Config) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeConfig(t, path, "server:\n  log_level: loud\n")
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
		t.Fatal("onChange fired for an invalid config")
	case <-time.After(200 * time.Millisecond):
	}

	if got := w.Current().Agent.Voice; got != "Kore" {
		t.Errorf("Current().Agent.Voice = %q, want the pre-rewrite Kore", got)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dojo.yaml")
	writeConfig(t, path, "agent:\n  api_key: test-key\n")

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
	w.Stop()
}
