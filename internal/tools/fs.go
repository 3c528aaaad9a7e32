// Package tools holds the concrete handler bodies bound into the Tool
// Registry: filesystem, shell, git, docker, HTTP egress, workspace,
// memory graph, and plan executor operations. Every handler has the
// signature registry.Handler and is otherwise an ordinary function; the
// registry treats it as an opaque callable.
package tools

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/hostbridge/hostbridge/internal/errs"
	"github.com/hostbridge/hostbridge/internal/workspace"
)

// maxReadBytes bounds a single fs_read to keep the audit response_summary
// and the wire response reasonably sized.
const maxReadBytes = 10 << 20

// FS bundles the filesystem handlers; all paths pass through resolver
// before any syscall touches disk.
type FS struct {
	resolver *workspace.Resolver
}

// NewFS creates an FS handler set rooted at resolver.
func NewFS(resolver *workspace.Resolver) *FS {
	return &FS{resolver: resolver}
}

// stringParam reads a required string parameter. {{task:ID.field}}
// substitution preserves the upstream field's native JSON type, so a
// scalar (number or bool) can land here when it was substituted into a
// string-typed slot (e.g. fs.write's content). Those get stringified
// rather than rejected; only maps, slices, and nil still hard-fail.
func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", errs.Newf(errs.KindInvalidParam, "missing required parameter %q", key)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", errs.Newf(errs.KindInvalidParam, "parameter %q must be a string", key)
	}
}

func boolParam(params map[string]any, key string, def bool) bool {
	v, ok := params[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// Read returns a file's contents. Text content is returned as-is under
// "content"; content that fails to decode as UTF-8 is base64-encoded
// under "content_base64" instead.
func (f *FS) Read(_ context.Context, params map[string]any) (any, error) {
	p, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	real, err := f.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(real)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Newf(errs.KindNotFound, "file %q does not exist", p).WithSuggestion("fs_list")
		}
		return nil, errs.Newf(errs.KindInternal, "read file: %v", err)
	}
	if len(data) > maxReadBytes {
		return nil, errs.Newf(errs.KindInvalidParam, "file %q exceeds the %d byte read limit", p, maxReadBytes)
	}

	if isValidUTF8(data) {
		return map[string]any{"path": p, "content": string(data), "size": len(data)}, nil
	}
	return map[string]any{"path": p, "content_base64": base64.StdEncoding.EncodeToString(data), "size": len(data)}, nil
}

// Write creates or overwrites a file with content, creating parent
// directories when create_dirs is true (default true).
func (f *FS) Write(_ context.Context, params map[string]any) (any, error) {
	p, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	content, err := stringParam(params, "content")
	if err != nil {
		return nil, err
	}
	real, err := f.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}

	if boolParam(params, "create_dirs", true) {
		if err := os.MkdirAll(filepath.Dir(real), 0o755); err != nil {
			return nil, errs.Newf(errs.KindInternal, "create parent directories: %v", err)
		}
	}
	if err := os.WriteFile(real, []byte(content), 0o644); err != nil {
		return nil, errs.Newf(errs.KindInternal, "write file: %v", err)
	}
	return map[string]any{"path": p, "bytes_written": len(content)}, nil
}

// List returns the entries of a directory, one level deep.
func (f *FS) List(_ context.Context, params map[string]any) (any, error) {
	p, _ := params["path"].(string)
	if p == "" {
		p = "."
	}
	real, err := f.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(real)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Newf(errs.KindNotFound, "directory %q does not exist", p)
		}
		return nil, errs.Newf(errs.KindInternal, "list directory: %v", err)
	}

	type item struct {
		Name  string `json:"name"`
		IsDir bool   `json:"is_dir"`
		Size  int64  `json:"size"`
	}
	items := make([]item, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		size := int64(0)
		if err == nil {
			size = info.Size()
		}
		items = append(items, item{Name: e.Name(), IsDir: e.IsDir(), Size: size})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return map[string]any{"path": p, "entries": items}, nil
}

// Mkdir creates a directory (and any missing parents).
func (f *FS) Mkdir(_ context.Context, params map[string]any) (any, error) {
	p, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	real, err := f.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(real, 0o755); err != nil {
		return nil, errs.Newf(errs.KindInternal, "mkdir: %v", err)
	}
	return map[string]any{"path": p, "created": true}, nil
}

// Delete removes a file or, with recursive=true, a directory tree.
func (f *FS) Delete(_ context.Context, params map[string]any) (any, error) {
	p, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	real, err := f.resolver.Resolve(p)
	if err != nil {
		return nil, err
	}
	if boolParam(params, "recursive", false) {
		err = os.RemoveAll(real)
	} else {
		err = os.Remove(real)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Newf(errs.KindNotFound, "path %q does not exist", p)
		}
		return nil, errs.Newf(errs.KindInternal, "delete: %v", err)
	}
	return map[string]any{"path": p, "deleted": true}, nil
}

func isValidUTF8(b []byte) bool {
	for i := 0; i < len(b); {
		if b[i] == 0 {
			return false
		}
		if b[i] < 0x80 {
			i++
			continue
		}
		sz := utf8RuneSize(b[i:])
		if sz == 0 {
			return false
		}
		i += sz
	}
	return true
}

func utf8RuneSize(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	switch {
	case b[0]&0xE0 == 0xC0 && len(b) >= 2:
		return 2
	case b[0]&0xF0 == 0xE0 && len(b) >= 3:
		return 3
	case b[0]&0xF8 == 0xF0 && len(b) >= 4:
		return 4
	default:
		return 0
	}
}
