package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenPort != 8088 {
		t.Errorf("ListenPort = %d, want default 8088", cfg.ListenPort)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hostbridge.yaml")
	yamlData := `
workspace_root: /srv/workspace
listen_port: 9000
tools:
  fs:
    write:
      policy: hitl
      hitl_patterns: ["*.conf"]
`
	if err := os.WriteFile(path, []byte(yamlData), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WorkspaceRoot != "/srv/workspace" {
		t.Errorf("WorkspaceRoot = %q", cfg.WorkspaceRoot)
	}
	if cfg.ListenPort != 9000 {
		t.Errorf("ListenPort = %d", cfg.ListenPort)
	}
	tp, ok := cfg.Tools["fs.write"]
	if !ok {
		t.Fatal("expected tools.fs.write entry")
	}
	if tp.Policy != "hitl" || len(tp.HITLPatterns) != 1 || tp.HITLPatterns[0] != "*.conf" {
		t.Errorf("unexpected tool policy: %+v", tp)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hostbridge.yaml")
	if err := os.WriteFile(path, []byte("listen_port: 9000\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("HOSTBRIDGE_LISTEN_PORT", "9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenPort != 9100 {
		t.Errorf("ListenPort = %d, want env override 9100", cfg.ListenPort)
	}
}

func TestValidate_RejectsBadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hostbridge.yaml")
	yamlData := "tools:\n  fs:\n    write:\n      policy: nonsense\n"
	if err := os.WriteFile(path, []byte(yamlData), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for bad policy")
	}
}
