package tools

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"

	"github.com/hostbridge/hostbridge/internal/errs"
	"github.com/hostbridge/hostbridge/internal/workspace"
)

// Git wraps the git binary as a subprocess, scoped to paths under the
// workspace root. It shells out rather than linking a git library, the
// same way the shell category does, so its error surface and timeout
// handling stay uniform with the rest of the subprocess-backed tools.
type Git struct {
	resolver *workspace.Resolver
}

// NewGit creates a Git handler set rooted at resolver.
func NewGit(resolver *workspace.Resolver) *Git {
	return &Git{resolver: resolver}
}

func (g *Git) repoDir(params map[string]any) (string, error) {
	p, _ := params["repo_path"].(string)
	if p == "" {
		p = "."
	}
	return g.resolver.Resolve(p)
}

func (g *Git) run(ctx context.Context, dir string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Status runs `git status --porcelain=v1` in repo_path.
func (g *Git) Status(ctx context.Context, params map[string]any) (any, error) {
	dir, err := g.repoDir(params)
	if err != nil {
		return nil, err
	}
	out, stderr, err := g.run(ctx, dir, "status", "--porcelain=v1", "--branch")
	if err != nil {
		return nil, errs.Newf(errs.KindInternal, "git status: %s", firstNonEmpty(stderr, err.Error()))
	}
	return map[string]any{"output": out}, nil
}

// Diff runs `git diff` in repo_path, optionally against a ref.
func (g *Git) Diff(ctx context.Context, params map[string]any) (any, error) {
	dir, err := g.repoDir(params)
	if err != nil {
		return nil, err
	}
	args := []string{"diff"}
	if ref, ok := params["ref"].(string); ok && ref != "" {
		args = append(args, ref)
	}
	out, stderr, err := g.run(ctx, dir, args...)
	if err != nil {
		return nil, errs.Newf(errs.KindInternal, "git diff: %s", firstNonEmpty(stderr, err.Error()))
	}
	return map[string]any{"diff": out}, nil
}

// Log runs `git log` in repo_path, bounded by max_count (default 20).
func (g *Git) Log(ctx context.Context, params map[string]any) (any, error) {
	dir, err := g.repoDir(params)
	if err != nil {
		return nil, err
	}
	maxCount := 20
	if n, ok := params["max_count"].(float64); ok && n > 0 {
		maxCount = int(n)
	}
	out, stderr, err := g.run(ctx, dir, "log", "--pretty=format:%H%x09%an%x09%ad%x09%s", "-n", strconv.Itoa(maxCount))
	if err != nil {
		return nil, errs.Newf(errs.KindInternal, "git log: %s", firstNonEmpty(stderr, err.Error()))
	}
	return map[string]any{"log": out}, nil
}

// Commit stages all changes (or only pathspec, if given) and commits with
// message. This is the one git operation that mutates repo state, so
// callers typically configure it behind a require_approval policy rule.
func (g *Git) Commit(ctx context.Context, params map[string]any) (any, error) {
	dir, err := g.repoDir(params)
	if err != nil {
		return nil, err
	}
	message, err := stringParam(params, "message")
	if err != nil {
		return nil, err
	}

	addArgs := []string{"add"}
	if pathspec, ok := params["pathspec"].(string); ok && pathspec != "" {
		addArgs = append(addArgs, pathspec)
	} else {
		addArgs = append(addArgs, "-A")
	}
	if _, stderr, err := g.run(ctx, dir, addArgs...); err != nil {
		return nil, errs.Newf(errs.KindInternal, "git add: %s", firstNonEmpty(stderr, err.Error()))
	}

	out, stderr, err := g.run(ctx, dir, "commit", "-m", message)
	if err != nil {
		return nil, errs.Newf(errs.KindInternal, "git commit: %s", firstNonEmpty(stderr, err.Error()))
	}
	return map[string]any{"output": out}, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

