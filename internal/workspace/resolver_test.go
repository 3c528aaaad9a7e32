package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hostbridge/hostbridge/internal/errs"
)

func TestResolve_AcceptsDescendant(t *testing.T) {
	root := t.TempDir()
	r, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	resolved, err := r.Resolve("a.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Dir(resolved) != r.Root() {
		t.Errorf("resolved %q not under root %q", resolved, r.Root())
	}
}

func TestResolve_RejectsTraversal(t *testing.T) {
	root := t.TempDir()
	r, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = r.Resolve("../../etc/passwd")
	assertSecurity(t, err)
}

func TestResolve_RejectsNullByte(t *testing.T) {
	root := t.TempDir()
	r, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = r.Resolve("a\x00b")
	assertSecurity(t, err)
}

func TestResolve_AllowsNotYetCreatedFile(t *testing.T) {
	root := t.TempDir()
	r, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resolved, err := r.Resolve("newfile.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(resolved) != "newfile.txt" {
		t.Errorf("resolved = %q", resolved)
	}
}

func assertSecurity(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	ce, ok := err.(*errs.Error)
	if !ok || ce.Kind != errs.KindSecurity {
		t.Fatalf("expected security error, got %v", err)
	}
}
