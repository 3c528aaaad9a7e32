package tools

import (
	"context"
	"os"

	"github.com/hostbridge/hostbridge/internal/workspace"
)

// Workspace exposes introspection over the configured workspace root.
type Workspace struct {
	resolver *workspace.Resolver
}

// NewWorkspace creates a Workspace handler set rooted at resolver.
func NewWorkspace(resolver *workspace.Resolver) *Workspace {
	return &Workspace{resolver: resolver}
}

// Info reports the resolved workspace root and whether it currently
// exists on disk.
func (w *Workspace) Info(_ context.Context, _ map[string]any) (any, error) {
	root := w.resolver.Root()
	_, err := os.Stat(root)
	return map[string]any{"root": root, "exists": err == nil}, nil
}
