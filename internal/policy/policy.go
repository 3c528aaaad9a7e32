// Package policy implements the ordered rule table the Dispatch Engine
// consults, synchronously and before any secret expansion, to decide
// whether an invocation proceeds, is blocked, or is parked for
// human-in-the-loop approval.
package policy

import (
	"fmt"
	"log/slog"

	"github.com/dop251/goja"

	"github.com/hostbridge/hostbridge/internal/config"
)

// Action is the outcome of a policy decision.
type Action string

const (
	ActionAllow           Action = "allow"
	ActionBlock           Action = "block"
	ActionRequireApproval Action = "require_approval"
)

// Match describes which invocations a Rule applies to. Name and
// ParamPattern are optional narrowings of Category.
type Match struct {
	Category     string
	Name         string
	ParamName    string
	ParamPattern string

	// Expression is an optional JS predicate evaluated against the full
	// params object (bound as `params`) plus `category` and `name`. It is
	// ANDed with ParamPattern when both are set. A predicate that throws
	// or returns non-boolean counts as no match.
	Expression string
}

// Rule is one ordered entry in the Policy Engine's table.
type Rule struct {
	Match      Match
	Action     Action
	Reason     string
	TTLSeconds int // used only when Action == ActionRequireApproval; 0 means "use the engine default"
}

// Decision is the Policy Engine's verdict for one invocation.
type Decision struct {
	Action     Action
	Reason     string
	TTLSeconds int
	RuleMatched string
}

// primaryParam names the parameter each built-in tool category treats as
// its path/target-like value for glob matching against hitl_patterns and
// block_patterns. Categories outside this map never match a param_pattern
// rule derived from config.
var primaryParam = map[string]string{
	"fs":        "path",
	"shell":     "command",
	"git":       "repo_path",
	"docker":    "image",
	"http":      "url",
	"workspace": "path",
}

// Engine holds the ordered rule table and the default TTL applied to
// require_approval decisions that don't specify one.
type Engine struct {
	rules      []Rule
	defaultTTL int
}

// New creates an Engine from an explicit, already-ordered rule list.
func New(rules []Rule, defaultTTLSeconds int) *Engine {
	return &Engine{rules: rules, defaultTTL: defaultTTLSeconds}
}

// FromConfig builds an Engine from per-tool policy overrides in cfg. Each
// tools.<category>.<name> entry becomes a group of rules, in a fixed
// order so the strictest configured behavior wins first:
//  1. one rule per block_patterns entry — block when the primary param matches.
//  2. one rule per hitl_patterns entry — require approval when the primary param matches.
//  3. the expression (if set) — require approval when it evaluates to true.
//  4. the tool's blanket policy (allow/block/hitl), if set.
func FromConfig(cfg *config.Config) *Engine {
	var rules []Rule
	for key, tp := range cfg.Tools {
		category, name := splitToolKey(key)
		param := primaryParam[category]

		for _, pat := range tp.BlockPatterns {
			rules = append(rules, Rule{
				Match:  Match{Category: category, Name: name, ParamName: param, ParamPattern: pat},
				Action: ActionBlock,
				Reason: fmt.Sprintf("%s matches configured block pattern %q", key, pat),
			})
		}
		for _, pat := range tp.HITLPatterns {
			rules = append(rules, Rule{
				Match:      Match{Category: category, Name: name, ParamName: param, ParamPattern: pat},
				Action:     ActionRequireApproval,
				Reason:     fmt.Sprintf("%s matches configured hitl pattern %q", key, pat),
				TTLSeconds: cfg.HITLTTLSeconds,
			})
		}
		if tp.Expression != "" {
			rules = append(rules, Rule{
				Match:      Match{Category: category, Name: name, Expression: tp.Expression},
				Action:     ActionRequireApproval,
				Reason:     fmt.Sprintf("%s matches configured expression %q", key, tp.Expression),
				TTLSeconds: cfg.HITLTTLSeconds,
			})
		}
		switch tp.Policy {
		case "allow":
			rules = append(rules, Rule{Match: Match{Category: category, Name: name}, Action: ActionAllow, Reason: fmt.Sprintf("%s configured as allow", key)})
		case "block":
			rules = append(rules, Rule{Match: Match{Category: category, Name: name}, Action: ActionBlock, Reason: fmt.Sprintf("%s configured as block", key)})
		case "hitl":
			rules = append(rules, Rule{Match: Match{Category: category, Name: name}, Action: ActionRequireApproval, Reason: fmt.Sprintf("%s configured as hitl", key), TTLSeconds: cfg.HITLTTLSeconds})
		}
	}
	return New(rules, cfg.HITLTTLSeconds)
}

func splitToolKey(key string) (category, name string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

// Evaluate walks the rule table top to bottom and returns the first match.
// If nothing matches, requiresHITLDefault decides between allow and
// require_approval.
func (e *Engine) Evaluate(category, name string, params map[string]any, requiresHITLDefault bool) Decision {
	for _, r := range e.rules {
		if !categoryMatches(r.Match, category) {
			continue
		}
		if r.Match.Name != "" && r.Match.Name != name {
			continue
		}
		if r.Match.ParamPattern != "" {
			if !paramMatches(r.Match, params) {
				continue
			}
		}
		if r.Match.Expression != "" && !expressionMatches(r.Match.Expression, category, name, params) {
			continue
		}
		return e.decisionFor(r)
	}

	if requiresHITLDefault {
		return Decision{Action: ActionRequireApproval, Reason: "tool requires approval by default", TTLSeconds: e.defaultTTL}
	}
	return Decision{Action: ActionAllow, Reason: "no matching rule; tool allows by default"}
}

func categoryMatches(m Match, category string) bool {
	if m.Category == "" || m.Category == "*" {
		return true
	}
	if m.Category == category {
		return true
	}
	// Any other value, including a "git.*"-style pattern, is compared
	// literally and does not match.
	return false
}

func paramMatches(m Match, params map[string]any) bool {
	if m.ParamName == "" {
		return false
	}
	v, ok := params[m.ParamName]
	if !ok {
		return false
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	return globMatch(m.ParamPattern, s)
}

// expressionMatches evaluates a rule's match.expression as a JS boolean
// predicate in a fresh VM per call. A rule's predicate is expected to be
// small (a few comparisons against params/category/name), so the cost of
// a new runtime per evaluation is preferred over the complexity of
// pooling one across concurrent Evaluate calls.
func expressionMatches(expr, category, name string, params map[string]any) bool {
	vm := goja.New()
	if err := vm.Set("category", category); err != nil {
		return false
	}
	if err := vm.Set("name", name); err != nil {
		return false
	}
	if err := vm.Set("params", params); err != nil {
		return false
	}
	v, err := vm.RunString(expr)
	if err != nil {
		slog.Warn("policy expression failed, treating as no match", "expression", expr, "error", err)
		return false
	}
	b, ok := v.Export().(bool)
	return ok && b
}

func (e *Engine) decisionFor(r Rule) Decision {
	ttl := r.TTLSeconds
	if r.Action == ActionRequireApproval && ttl == 0 {
		ttl = e.defaultTTL
	}
	return Decision{Action: r.Action, Reason: r.Reason, TTLSeconds: ttl, RuleMatched: fmt.Sprintf("%s.%s", r.Match.Category, r.Match.Name)}
}
