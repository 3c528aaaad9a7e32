package audit

import (
	"encoding/json"
	"testing"
)

func TestRedact_TopLevelKey(t *testing.T) {
	in := json.RawMessage(`{"path":"app.conf","api_key":"sk-live-123"}`)
	out := Redact(in)

	var m map[string]string
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["api_key"] != redactedValue {
		t.Errorf("api_key = %q, want redacted", m["api_key"])
	}
	if m["path"] != "app.conf" {
		t.Errorf("path = %q, want unchanged", m["path"])
	}
}

func TestRedact_Nested(t *testing.T) {
	in := json.RawMessage(`{"headers":{"Authorization":"Bearer xyz"},"url":"https://example.com"}`)
	out := Redact(in)

	var m map[string]json.RawMessage
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var headers map[string]string
	if err := json.Unmarshal(m["headers"], &headers); err != nil {
		t.Fatalf("unmarshal headers: %v", err)
	}
	if headers["Authorization"] != redactedValue {
		t.Errorf("Authorization = %q, want redacted", headers["Authorization"])
	}
}

func TestRedact_NoMatch(t *testing.T) {
	in := json.RawMessage(`{"path":"a.txt","content":"hello"}`)
	out := Redact(in)
	if string(out) != string(in) {
		t.Errorf("expected unchanged output, got %s", out)
	}
}
