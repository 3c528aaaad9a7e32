// Package template expands `{{secret:KEY}}` and `{{task:ID.FIELD}}`
// placeholders found in string leaves of an invocation's params tree.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/hostbridge/hostbridge/internal/errs"
)

var placeholderPattern = regexp.MustCompile(`^\{\{(secret|task):([^{}]+)\}\}$`)

// SecretLookup resolves a secret key to its current value.
type SecretLookup func(key string) (string, bool)

// TaskLookup resolves a completed task's output by id. The returned value
// is the task's raw JSON-shaped output (map, slice, string, number, bool,
// or nil).
type TaskLookup func(taskID string) (any, bool)

// Resolver expands placeholders against a Secrets Store and, optionally, a
// set of completed plan task outputs.
type Resolver struct {
	secrets SecretLookup
	tasks   TaskLookup
}

// New creates a Resolver. tasks may be nil when expanding params outside a
// plan context, in which case any `{{task:...}}` placeholder fails.
func New(secrets SecretLookup, tasks TaskLookup) *Resolver {
	return &Resolver{secrets: secrets, tasks: tasks}
}

// Expand walks params (a JSON-decoded tree: map[string]any, []any, or a
// scalar) and returns a new tree with every placeholder-shaped string leaf
// replaced. Non-placeholder strings pass through unchanged. A string leaf
// that is exactly one `{{task:ID}}` placeholder (no FIELD) substitutes the
// raw upstream value, preserving its native JSON type rather than
// stringifying it.
func (r *Resolver) Expand(params any) (any, error) {
	switch v := params.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			expanded, err := r.Expand(val)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			expanded, err := r.Expand(val)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	case string:
		return r.expandString(v)
	default:
		return v, nil
	}
}

func (r *Resolver) expandString(s string) (any, error) {
	m := placeholderPattern.FindStringSubmatch(s)
	if m == nil {
		return s, nil
	}
	kind, ref := m[1], m[2]
	switch kind {
	case "secret":
		return r.expandSecret(ref)
	case "task":
		return r.expandTask(ref)
	default:
		return s, nil
	}
}

func (r *Resolver) expandSecret(key string) (any, error) {
	if r.secrets == nil {
		return nil, errs.Newf(errs.KindInvalidParam, "secret %q is unknown", key)
	}
	val, ok := r.secrets(key)
	if !ok {
		return nil, errs.Newf(errs.KindInvalidParam, "secret %q is unknown", key)
	}
	return val, nil
}

// expandTask parses "TASK_ID" or "TASK_ID.FIELD" and resolves against the
// TaskLookup.
func (r *Resolver) expandTask(ref string) (any, error) {
	if r.tasks == nil {
		return nil, errs.Newf(errs.KindInvalidParam, "task reference %q is not valid outside a plan", ref)
	}
	taskID, field := splitTaskRef(ref)
	output, ok := r.tasks(taskID)
	if !ok {
		return nil, errs.Newf(errs.KindInvalidParam, "unknown task id %q", taskID)
	}
	if field == "" {
		return output, nil
	}

	obj, ok := output.(map[string]any)
	if !ok {
		return nil, errs.Newf(errs.KindInvalidParam, "task %q output has no field %q", taskID, field)
	}
	val, ok := obj[field]
	if !ok {
		return nil, errs.Newf(errs.KindInvalidParam, "task %q output has no field %q", taskID, field)
	}
	return val, nil
}

func splitTaskRef(ref string) (taskID, field string) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '.' {
			return ref[:i], ref[i+1:]
		}
	}
	return ref, ""
}

// ExpandJSON is a convenience wrapper for callers holding raw JSON bytes
// rather than a decoded tree.
func (r *Resolver) ExpandJSON(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	expanded, err := r.Expand(decoded)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("encode expanded params: %w", err)
	}
	return out, nil
}
