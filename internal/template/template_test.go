package template

import (
	"testing"

	"github.com/hostbridge/hostbridge/internal/errs"
)

func TestExpand_Secret(t *testing.T) {
	secrets := func(key string) (string, bool) {
		if key == "API_KEY" {
			return "sk-abc123", true
		}
		return "", false
	}
	r := New(secrets, nil)

	out, err := r.Expand(map[string]any{"token": "{{secret:API_KEY}}"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	m := out.(map[string]any)
	if m["token"] != "sk-abc123" {
		t.Errorf("token = %v", m["token"])
	}
}

func TestExpand_UnknownSecretFailsInvalidParameter(t *testing.T) {
	r := New(func(string) (string, bool) { return "", false }, nil)
	_, err := r.Expand("{{secret:MISSING}}")
	ce, ok := err.(*errs.Error)
	if !ok || ce.Kind != errs.KindInvalidParam {
		t.Fatalf("expected invalid_parameter error, got %v", err)
	}
}

func TestExpand_TaskFieldSubstitution(t *testing.T) {
	tasks := func(id string) (any, bool) {
		if id == "A" {
			return map[string]any{"bytes_written": float64(42)}, true
		}
		return nil, false
	}
	r := New(nil, tasks)

	out, err := r.Expand("{{task:A.bytes_written}}")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if out != float64(42) {
		t.Errorf("out = %v", out)
	}
}

func TestExpand_BareTaskRefPreservesType(t *testing.T) {
	tasks := func(id string) (any, bool) {
		return []any{"a", "b"}, true
	}
	r := New(nil, tasks)

	out, err := r.Expand("{{task:A}}")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	list, ok := out.([]any)
	if !ok || len(list) != 2 {
		t.Errorf("out = %v", out)
	}
}

func TestExpand_UnknownTaskFails(t *testing.T) {
	r := New(nil, func(string) (any, bool) { return nil, false })
	_, err := r.Expand("{{task:GHOST.field}}")
	ce, ok := err.(*errs.Error)
	if !ok || ce.Kind != errs.KindInvalidParam {
		t.Fatalf("expected invalid_parameter error, got %v", err)
	}
}

func TestExpand_TaskRefOutsidePlanFails(t *testing.T) {
	r := New(nil, nil)
	_, err := r.Expand("{{task:A.x}}")
	ce, ok := err.(*errs.Error)
	if !ok || ce.Kind != errs.KindInvalidParam {
		t.Fatalf("expected invalid_parameter error, got %v", err)
	}
}

func TestExpand_NonPlaceholderStringPassesThrough(t *testing.T) {
	r := New(nil, nil)
	out, err := r.Expand("plain text {{not a placeholder")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if out != "plain text {{not a placeholder" {
		t.Errorf("out = %v", out)
	}
}

func TestExpand_NestedStructures(t *testing.T) {
	secrets := func(string) (string, bool) { return "v", true }
	r := New(secrets, nil)

	out, err := r.Expand(map[string]any{
		"list": []any{"{{secret:X}}", "literal"},
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	m := out.(map[string]any)
	list := m["list"].([]any)
	if list[0] != "v" || list[1] != "literal" {
		t.Errorf("list = %v", list)
	}
}
