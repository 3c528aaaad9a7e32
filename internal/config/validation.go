package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
)

// ValidationError holds all validation failures for a config.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s", strings.Join(e.Errors, "; "))
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.WorkspaceRoot == "" {
		errs = append(errs, "workspace_root is required")
	}
	if cfg.ListenPort <= 0 || cfg.ListenPort > 65535 {
		errs = append(errs, fmt.Sprintf("listen_port %d out of range", cfg.ListenPort))
	}
	if cfg.HITLTTLSeconds <= 0 {
		errs = append(errs, "hitl_ttl_seconds must be positive")
	}
	if cfg.HTTP.DefaultTimeoutSec <= 0 {
		errs = append(errs, "http.default_timeout must be positive")
	}
	if cfg.HTTP.MaxTimeoutSec < cfg.HTTP.DefaultTimeoutSec {
		errs = append(errs, "http.max_timeout must be >= http.default_timeout")
	}

	for key, tp := range cfg.Tools {
		if err := validatePolicy(tp.Policy); err != nil {
			errs = append(errs, fmt.Sprintf("tools.%s: %v", key, err))
		}
		for _, p := range tp.HITLPatterns {
			if err := validateGlob(p); err != nil {
				errs = append(errs, fmt.Sprintf("tools.%s.hitl_patterns: %v", key, err))
			}
		}
		for _, p := range tp.BlockPatterns {
			if err := validateGlob(p); err != nil {
				errs = append(errs, fmt.Sprintf("tools.%s.block_patterns: %v", key, err))
			}
		}
		if err := validateExpression(tp.Expression); err != nil {
			errs = append(errs, fmt.Sprintf("tools.%s.expression: %v", key, err))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validatePolicy(p string) error {
	switch p {
	case "allow", "block", "hitl", "":
		return nil
	default:
		return fmt.Errorf("invalid policy %q (must be allow, block, or hitl)", p)
	}
}

func validateExpression(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := goja.Compile("", expr, false); err != nil {
		return fmt.Errorf("invalid expression: %w", err)
	}
	return nil
}

func validateGlob(pattern string) error {
	if pattern == "" {
		return nil
	}
	_, err := filepath.Match(pattern, "test")
	if err != nil {
		return fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	return nil
}
