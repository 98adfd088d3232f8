package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const usersYAML = `
users:
  - name: Alice
    telegram: "@alice_t"
    modules:
      - module: Exercise
        datasource: fitbit
        config:
          client_id: cid
          refresh_token: rt
  - name: bob
    modules:
      - module: exercise
        datasource: s3
        config:
          bucket: health
  - name: "  "
`

func writeUsers(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "users.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write users: %v", err)
	}
	return path
}

func TestDirectory_LoadAndLookup(t *testing.T) {
	d, err := LoadDirectory(writeUsers(t, t.TempDir(), usersYAML), nil)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}

	users := d.Users()
	if len(users) != 2 || users[0] != "Alice" || users[1] != "bob" {
		t.Fatalf("Users() = %v", users)
	}

	cfg, ok := d.Module("alice", "EXERCISE")
	if !ok {
		t.Fatal("expected exercise module for alice")
	}
	if cfg.User != "Alice" || cfg.AdapterID != "fitbit" || cfg.Settings.Get("client_id") != "cid" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	// Settings must be a copy.
	cfg.Settings["client_id"] = "changed"
	again, _ := d.Module("Alice", "exercise")
	if again.Settings.Get("client_id") != "cid" {
		t.Fatal("Module returned shared settings map")
	}

	if _, ok := d.Module("bob", "sleep"); ok {
		t.Fatal("bob has no sleep module")
	}
	if _, ok := d.Module("carol", "exercise"); ok {
		t.Fatal("carol is not configured")
	}
}

func TestDirectory_Mention(t *testing.T) {
	d := NewStaticDirectory([]UserEntry{
		{Name: "Alice", Telegram: "@alice_t"},
		{Name: "Bob", Telegram: "bob_t"},
		{Name: "Carol"},
	})
	tests := map[string]string{
		"alice":   "@alice_t",
		"BOB":     "@bob_t",
		"Carol":   "Carol",
		"unknown": "unknown",
	}
	for in, want := range tests {
		if got := d.Mention(in); got != want {
			t.Errorf("Mention(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDirectory_LoadRejectsBadFile(t *testing.T) {
	if _, err := LoadDirectory(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
	path := writeUsers(t, t.TempDir(), "users: [:")
	if _, err := LoadDirectory(path, nil); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestDirectory_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeUsers(t, dir, "users:\n  - name: alice\n")
	d, err := LoadDirectory(path, nil)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// A broken edit keeps the previous users.
	writeUsers(t, dir, "users: [:")
	time.Sleep(400 * time.Millisecond)
	if got := d.Users(); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("after bad edit Users() = %v", got)
	}

	writeUsers(t, dir, "users:\n  - name: alice\n  - name: bob\n")
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(d.Users()) == 2 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("directory not reloaded, Users() = %v", d.Users())
}
