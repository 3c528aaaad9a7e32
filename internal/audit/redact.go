package audit

import (
	"encoding/json"
	"strings"
)

// redactPatterns are key substrings that always trigger redaction.
var redactPatterns = []string{
	"token",
	"key",
	"secret",
	"password",
	"authorization",
	"cookie",
	"credential",
}

const redactedValue = "[REDACTED]"

// Redact replaces values of suspicious-looking keys in a JSON params object
// with [REDACTED], recursing into nested objects.
func Redact(params json.RawMessage) json.RawMessage {
	if len(params) == 0 {
		return params
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(params, &obj); err != nil {
		return params
	}

	changed := false
	for key, val := range obj {
		if shouldRedact(key) {
			redacted, _ := json.Marshal(redactedValue)
			obj[key] = redacted
			changed = true
			continue
		}
		if redacted := Redact(val); !jsonEqual(val, redacted) {
			obj[key] = redacted
			changed = true
		}
	}

	if !changed {
		return params
	}
	result, err := json.Marshal(obj)
	if err != nil {
		return params
	}
	return result
}

func shouldRedact(key string) bool {
	lower := strings.ToLower(key)
	for _, pattern := range redactPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func jsonEqual(a, b json.RawMessage) bool {
	return string(a) == string(b)
}
