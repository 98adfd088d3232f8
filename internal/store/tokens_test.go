package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTokenFile_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "tokens.json")

	tf, err := OpenTokenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := tf.RefreshToken("alice"); ok {
		t.Fatal("empty file should have no tokens")
	}
	if err := tf.SaveRefreshToken("Alice", "rt-2"); err != nil {
		t.Fatalf("save: %v", err)
	}

	again, err := OpenTokenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if tok, ok := again.RefreshToken("alice"); !ok || tok != "rt-2" {
		t.Fatalf("RefreshToken = %q, %v", tok, ok)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestTokenFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenTokenFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}
