package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const watcherTestConfig = `
auth:
  bcrypt_cost: 4
  users:
    - username: alice
      password: one
`

func TestNewWatcher_NoFile(t *testing.T) {
	if _, err := NewWatcher("", 0, nil); err == nil {
		t.Fatal("expected error when no config file is in use")
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, watcherTestConfig)

	reloads := make(chan *Config, 4)
	w, err := NewWatcher(path, 20*time.Millisecond, func(cfg *Config) {
		reloads <- cfg
	})
	if err != nil {
		t.Fatalf("NewWatcher error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	updated := watcherTestConfig + "    - username: bob\n      password: two\n"
	if err := os.WriteFile(path, []byte(updated), 0600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	select {
	case cfg := <-reloads:
		if len(cfg.Auth.Users) != 2 {
			t.Errorf("len(Users) = %d, want 2", len(cfg.Auth.Users))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_InvalidEditKeepsPrevious(t *testing.T) {
	path := writeConfig(t, watcherTestConfig)

	reloads := make(chan *Config, 4)
	w, err := NewWatcher(path, 20*time.Millisecond, func(cfg *Config) {
		reloads <- cfg
	})
	if err != nil {
		t.Fatalf("NewWatcher error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	if err := os.WriteFile(path, []byte("publisher:\n  interval_ms: 1\n"), 0600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	select {
	case cfg := <-reloads:
		t.Fatalf("invalid config should not be delivered, got %+v", cfg.Publisher)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	path := writeConfig(t, watcherTestConfig)

	reloads := make(chan *Config, 4)
	w, err := NewWatcher(path, 20*time.Millisecond, func(cfg *Config) {
		reloads <- cfg
	})
	if err != nil {
		t.Fatalf("NewWatcher error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	sibling := filepath.Join(filepath.Dir(path), "notes.txt")
	if err := os.WriteFile(sibling, []byte("hello"), 0600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	select {
	case <-reloads:
		t.Fatal("unrelated file should not trigger a reload")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	path := writeConfig(t, watcherTestConfig)

	w, err := NewWatcher(path, 0, nil)
	if err != nil {
		t.Fatalf("NewWatcher error: %v", err)
	}
	if w.debounce != DefaultDebounce {
		t.Errorf("debounce = %v, want %v", w.debounce, DefaultDebounce)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
