package secrets

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew_MissingFileLoadsEmpty(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(s.Keys()) != 0 {
		t.Errorf("expected no keys, got %v", s.Keys())
	}
}

func TestReload_ParsesKeyValueLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.env")
	data := "# comment\nAPI_KEY=abc123\n\nGITHUB_TOKEN=ghp_whatever==with=equals\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v, ok := s.Get("API_KEY")
	if !ok || v != "abc123" {
		t.Errorf("API_KEY = %q, %v", v, ok)
	}
	v, ok = s.Get("GITHUB_TOKEN")
	if !ok || v != "ghp_whatever==with=equals" {
		t.Errorf("GITHUB_TOKEN = %q, %v", v, ok)
	}
}

func TestReload_SkipsInvalidKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.env")
	if err := os.WriteFile(path, []byte("bad-key=1\nGOOD_KEY=2\nmalformed-line\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.Get("bad-key"); ok {
		t.Error("expected bad-key to be skipped")
	}
	if _, ok := s.Get("GOOD_KEY"); !ok {
		t.Error("expected GOOD_KEY to be loaded")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.env")
	if err := os.WriteFile(path, []byte("FOO=1\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer s.Close()

	if err := os.WriteFile(path, []byte("FOO=2\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, _ := s.Get("FOO"); v == "2" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected FOO to reload to 2")
}
