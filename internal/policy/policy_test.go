package policy

import (
	"testing"

	"github.com/hostbridge/hostbridge/internal/config"
)

func TestEvaluate_FirstMatchWins(t *testing.T) {
	e := New([]Rule{
		{Match: Match{Category: "fs", Name: "write"}, Action: ActionBlock, Reason: "blanket block"},
		{Match: Match{Category: "fs"}, Action: ActionAllow, Reason: "category allow"},
	}, 60)

	d := e.Evaluate("fs", "write", nil, false)
	if d.Action != ActionBlock {
		t.Errorf("Action = %v, want block (first rule should win)", d.Action)
	}
}

func TestEvaluate_NoMatchFallsBackToDefault(t *testing.T) {
	e := New(nil, 60)

	d := e.Evaluate("shell", "run", nil, true)
	if d.Action != ActionRequireApproval || d.TTLSeconds != 60 {
		t.Errorf("got %+v", d)
	}

	d = e.Evaluate("shell", "run", nil, false)
	if d.Action != ActionAllow {
		t.Errorf("got %+v", d)
	}
}

func TestEvaluate_ParamPatternMatch(t *testing.T) {
	e := New([]Rule{
		{Match: Match{Category: "fs", Name: "write", ParamName: "path", ParamPattern: "*.conf"}, Action: ActionRequireApproval, Reason: "config file", TTLSeconds: 120},
	}, 60)

	d := e.Evaluate("fs", "write", map[string]any{"path": "nginx.conf"}, false)
	if d.Action != ActionRequireApproval || d.TTLSeconds != 120 {
		t.Errorf("got %+v", d)
	}

	d = e.Evaluate("fs", "write", map[string]any{"path": "notes.txt"}, false)
	if d.Action != ActionAllow {
		t.Errorf("expected fallthrough to default allow, got %+v", d)
	}
}

func TestFromConfig_BlockPatternPrecedesBlanketPolicy(t *testing.T) {
	cfg := config.Defaults()
	cfg.Tools["fs.write"] = config.ToolPolicyConfig{Policy: "allow", BlockPatterns: []string{"*.key"}}

	e := FromConfig(cfg)
	d := e.Evaluate("fs", "write", map[string]any{"path": "id_rsa.key"}, false)
	if d.Action != ActionBlock {
		t.Errorf("expected block pattern to win over blanket allow, got %+v", d)
	}
	d = e.Evaluate("fs", "write", map[string]any{"path": "notes.txt"}, false)
	if d.Action != ActionAllow {
		t.Errorf("expected blanket allow for non-matching path, got %+v", d)
	}
}
