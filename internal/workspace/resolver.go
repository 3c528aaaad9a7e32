// Package workspace resolves and validates every file path a tool handler
// touches against a single configured root. It is the only component that
// touches raw paths; everything downstream receives already-validated
// absolute paths.
package workspace

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hostbridge/hostbridge/internal/errs"
)

// Resolver validates paths against a fixed root directory.
type Resolver struct {
	root string
}

// New creates a Resolver rooted at root. root is resolved to its real,
// absolute form once at startup.
func New(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// The root may not exist yet (first run); fall back to the clean
		// absolute form so later descendant checks still behave sanely.
		real = filepath.Clean(abs)
	}
	return &Resolver{root: real}, nil
}

// Root returns the resolver's real, absolute root directory.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve validates p and returns its real, absolute path. It fails with
// errs.KindSecurity when p contains a null byte or its resolved real path
// is neither the root itself nor nested under it.
func (r *Resolver) Resolve(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", errs.New(errs.KindSecurity, "path contains a null byte")
	}

	joined := p
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(r.root, joined)
	}
	clean := filepath.Clean(joined)

	// Resolve symlinks where possible; a path that does not yet exist (e.g.
	// a file about to be created) resolves its existing parent instead.
	real, err := resolveExistingPrefix(clean)
	if err != nil {
		return "", errs.Newf(errs.KindSecurity, "cannot resolve path: %v", err)
	}

	if !isDescendant(r.root, real) {
		return "", errs.Newf(errs.KindSecurity, "path %q escapes the workspace root", p)
	}
	return real, nil
}

// resolveExistingPrefix walks up from p until it finds an existing
// ancestor, resolves that ancestor's symlinks, then rejoins the remaining
// (not-yet-existing) suffix. This lets Resolve validate paths for files
// that will be created by the handler.
func resolveExistingPrefix(p string) (string, error) {
	if real, err := filepath.EvalSymlinks(p); err == nil {
		return real, nil
	}

	dir := filepath.Dir(p)
	base := filepath.Base(p)
	if dir == p {
		return "", fmt.Errorf("no existing ancestor for %q", p)
	}
	realDir, err := resolveExistingPrefix(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(realDir, base), nil
}

// isDescendant reports whether target is root itself or strictly nested
// under it.
func isDescendant(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !strings.HasPrefix(rel, "..") && rel != ".."
}
