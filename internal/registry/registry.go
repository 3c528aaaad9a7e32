// Package registry holds the fixed set of Tool Descriptors the Dispatch
// Engine resolves invocations against. The tool set is assembled once at
// process start and never mutated afterward.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Handler is the opaque callable bound to a tool descriptor. It receives
// already template-expanded params and returns a JSON-shaped result or a
// classified error (see internal/errs).
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Descriptor is the static record binding a (category, name) pair to its
// schema, handler, and HITL default.
type Descriptor struct {
	Category            string
	Name                string
	Description         string
	InputSchema         json.RawMessage
	OutputSchema        json.RawMessage
	RequiresHITLDefault bool
	Handler             Handler

	compiledInput *jsonschema.Schema
	stringFields  map[string]bool
}

// Key returns the registry's canonical "{category}.{name}" lookup key.
func (d *Descriptor) Key() string {
	return key(d.Category, d.Name)
}

// MCPName returns the "{category}_{name}" form used as an MCP tool name.
func (d *Descriptor) MCPName() string {
	return d.Category + "_" + d.Name
}

func key(category, name string) string {
	return category + "." + name
}

// Registry maps (category, name) to compiled tool descriptors.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*Descriptor
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{descriptors: make(map[string]*Descriptor)}
}

// Register adds d to the registry, compiling its input schema if present.
// It fails if (category, name) is already registered or the schema does
// not compile.
func (r *Registry) Register(d Descriptor) error {
	if d.Category == "" || d.Name == "" {
		return fmt.Errorf("registry: category and name are required")
	}
	if d.Handler == nil {
		return fmt.Errorf("registry: %s.%s has no handler", d.Category, d.Name)
	}

	if len(d.InputSchema) > 0 {
		compiled, err := compileSchema(d.Key(), d.InputSchema)
		if err != nil {
			return fmt.Errorf("registry: compile input schema for %s: %w", d.Key(), err)
		}
		d.compiledInput = compiled
		d.stringFields = stringTypedProperties(d.InputSchema)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	k := d.Key()
	if _, exists := r.descriptors[k]; exists {
		return fmt.Errorf("registry: %s is already registered", k)
	}
	r.descriptors[k] = &d
	return nil
}

// stringTypedProperties returns the set of top-level property names the
// schema declares as "type": "string". It is best-effort: a malformed or
// unconventional schema just yields no fields, leaving validation to the
// compiled schema as before.
func stringTypedProperties(raw json.RawMessage) map[string]bool {
	var doc struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	fields := make(map[string]bool, len(doc.Properties))
	for name, prop := range doc.Properties {
		if prop.Type == "string" {
			fields[name] = true
		}
	}
	return fields
}

func compileSchema(id string, raw json.RawMessage) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	url := "mem://hostbridge/" + strings.ReplaceAll(id, ".", "/") + ".json"
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, err
	}
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// Get looks up a descriptor by (category, name).
func (r *Registry) Get(category, name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[key(category, name)]
	return d, ok
}

// List returns all descriptors sorted by (category, name).
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ValidateInput validates params against the descriptor's compiled input
// schema. A descriptor without an input schema accepts any params.
//
// Before validating, it coerces scalar values (numbers, bools) sitting in
// a string-typed slot into their string form. {{task:ID.field}} template
// substitution preserves the upstream field's native JSON type, so a
// task output like bytes_written (a number) can land directly in a
// string-typed param such as fs.write's content; without this the
// schema would reject a perfectly legitimate chained plan.
func (d *Descriptor) ValidateInput(params map[string]any) error {
	if d.compiledInput == nil {
		return nil
	}
	for name := range d.stringFields {
		switch v := params[name].(type) {
		case float64:
			params[name] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			params[name] = strconv.FormatBool(v)
		}
	}
	return d.compiledInput.Validate(params)
}
