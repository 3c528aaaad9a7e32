package tools

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/hostbridge/hostbridge/internal/errs"
	"github.com/hostbridge/hostbridge/internal/workspace"
)

// defaultShellTimeout bounds a shell_exec call when the caller doesn't
// specify timeout_seconds.
const defaultShellTimeout = 30 * time.Second

// maxShellOutputBytes truncates captured stdout/stderr.
const maxShellOutputBytes = 1 << 20

// Shell runs subprocess commands rooted at the workspace directory.
type Shell struct {
	resolver *workspace.Resolver
}

// NewShell creates a Shell handler set whose commands run with cwd set to
// resolver's root (or a workspace-relative subdirectory).
func NewShell(resolver *workspace.Resolver) *Shell {
	return &Shell{resolver: resolver}
}

// Exec runs command via the shell, capturing stdout/stderr separately and
// honoring a cancellation-aware timeout.
func (s *Shell) Exec(ctx context.Context, params map[string]any) (any, error) {
	command, err := stringParam(params, "command")
	if err != nil {
		return nil, err
	}

	cwd := s.resolver.Root()
	if dir, ok := params["cwd"].(string); ok && dir != "" {
		real, err := s.resolver.Resolve(dir)
		if err != nil {
			return nil, err
		}
		cwd = real
	}

	timeout := defaultShellTimeout
	if secs, ok := params["timeout_seconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	exitCode := 0
	if runErr != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, errs.Newf(errs.KindTimeout, "command timed out after %s", timeout)
		}
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, errs.Newf(errs.KindInternal, "run command: %v", runErr)
		}
	}

	return map[string]any{
		"exit_code": exitCode,
		"stdout":    truncate(stdout.String(), maxShellOutputBytes),
		"stderr":    truncate(stderr.String(), maxShellOutputBytes),
	}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
