package registry

import (
	"context"
	"testing"
)

func noopHandler(ctx context.Context, params map[string]any) (any, error) {
	return nil, nil
}

func TestRegister_AndGet(t *testing.T) {
	r := New()
	if err := r.Register(Descriptor{Category: "fs", Name: "write", Handler: noopHandler}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d, ok := r.Get("fs", "write")
	if !ok {
		t.Fatal("expected descriptor")
	}
	if d.Key() != "fs.write" || d.MCPName() != "fs_write" {
		t.Errorf("Key=%q MCPName=%q", d.Key(), d.MCPName())
	}
}

func TestRegister_DuplicateRejected(t *testing.T) {
	r := New()
	if err := r.Register(Descriptor{Category: "fs", Name: "write", Handler: noopHandler}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(Descriptor{Category: "fs", Name: "write", Handler: noopHandler}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegister_CompilesInputSchema(t *testing.T) {
	r := New()
	schema := []byte(`{"type":"object","required":["path"],"properties":{"path":{"type":"string"}}}`)
	if err := r.Register(Descriptor{Category: "fs", Name: "write", InputSchema: schema, Handler: noopHandler}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d, _ := r.Get("fs", "write")
	if err := d.ValidateInput(map[string]any{"path": "a.txt"}); err != nil {
		t.Errorf("expected valid params to pass, got %v", err)
	}
	if err := d.ValidateInput(map[string]any{}); err == nil {
		t.Error("expected missing required field to fail validation")
	}
}

func TestValidateInput_CoercesScalarIntoStringSlot(t *testing.T) {
	r := New()
	schema := []byte(`{"type":"object","required":["content"],"properties":{"content":{"type":"string"}}}`)
	if err := r.Register(Descriptor{Category: "fs", Name: "write", InputSchema: schema, Handler: noopHandler}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d, _ := r.Get("fs", "write")

	params := map[string]any{"content": float64(42)}
	if err := d.ValidateInput(params); err != nil {
		t.Fatalf("expected numeric content to coerce and pass, got %v", err)
	}
	if params["content"] != "42" {
		t.Errorf("content = %v (%T), want string %q", params["content"], params["content"], "42")
	}
}

func TestList_SortedByCategoryThenName(t *testing.T) {
	r := New()
	_ = r.Register(Descriptor{Category: "shell", Name: "run", Handler: noopHandler})
	_ = r.Register(Descriptor{Category: "fs", Name: "write", Handler: noopHandler})
	_ = r.Register(Descriptor{Category: "fs", Name: "read", Handler: noopHandler})

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(list))
	}
	if list[0].Key() != "fs.read" || list[1].Key() != "fs.write" || list[2].Key() != "shell.run" {
		t.Errorf("unexpected order: %v, %v, %v", list[0].Key(), list[1].Key(), list[2].Key())
	}
}
