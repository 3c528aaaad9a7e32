package tools

import (
	"encoding/json"

	"github.com/hostbridge/hostbridge/internal/registry"
)

// Catalog bundles every tool handler set the composition root wires
// together, then registers them as Tool Descriptors in one place. Docker
// is optional: a nil value skips registering the docker category
// entirely (no Docker daemon reachable at startup).
type Catalog struct {
	FS        *FS
	Shell     *Shell
	Git       *Git
	Docker    *Docker
	HTTP      *HTTP
	Workspace *Workspace
	Memory    *Memory
	Plan      *Plan
}

func schema(props map[string]any, required ...string) json.RawMessage {
	obj := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		obj["required"] = required
	}
	raw, _ := json.Marshal(obj)
	return raw
}

func strProp(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }
func boolProp(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}
func numProp(desc string) map[string]any { return map[string]any{"type": "number", "description": desc} }
func arrProp(desc string, items map[string]any) map[string]any {
	return map[string]any{"type": "array", "description": desc, "items": items}
}
func objProp(desc string) map[string]any { return map[string]any{"type": "object", "description": desc} }

// Register binds every descriptor in c into reg. It stops at the first
// registration failure (schema compile error, duplicate key).
func (c *Catalog) Register(reg *registry.Registry) error {
	descs := c.descriptors()
	for _, d := range descs {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) descriptors() []registry.Descriptor {
	var out []registry.Descriptor

	if c.FS != nil {
		out = append(out,
			registry.Descriptor{
				Category: "fs", Name: "read", Description: "Read a file's contents, relative to the workspace root.",
				InputSchema: schema(map[string]any{"path": strProp("workspace-relative or absolute path")}, "path"),
				Handler:     c.FS.Read,
			},
			registry.Descriptor{
				Category: "fs", Name: "write", Description: "Create or overwrite a file with the given content.",
				InputSchema:         schema(map[string]any{"path": strProp("target path"), "content": strProp("file content"), "create_dirs": boolProp("create missing parent directories (default true)")}, "path", "content"),
				RequiresHITLDefault: true,
				Handler:             c.FS.Write,
			},
			registry.Descriptor{
				Category: "fs", Name: "list", Description: "List the entries of a directory.",
				InputSchema: schema(map[string]any{"path": strProp("directory path (default workspace root)")}),
				Handler:     c.FS.List,
			},
			registry.Descriptor{
				Category: "fs", Name: "mkdir", Description: "Create a directory, including missing parents.",
				InputSchema:         schema(map[string]any{"path": strProp("directory path")}, "path"),
				RequiresHITLDefault: true,
				Handler:             c.FS.Mkdir,
			},
			registry.Descriptor{
				Category: "fs", Name: "delete", Description: "Delete a file, or a directory tree with recursive=true.",
				InputSchema:         schema(map[string]any{"path": strProp("path to delete"), "recursive": boolProp("delete directories recursively")}, "path"),
				RequiresHITLDefault: true,
				Handler:             c.FS.Delete,
			},
		)
	}

	if c.Shell != nil {
		out = append(out, registry.Descriptor{
			Category: "shell", Name: "exec", Description: "Run a shell command in (or under) the workspace root.",
			InputSchema:         schema(map[string]any{"command": strProp("shell command line"), "cwd": strProp("workspace-relative working directory"), "timeout_seconds": numProp("execution timeout (default 30)")}, "command"),
			RequiresHITLDefault: true,
			Handler:             c.Shell.Exec,
		})
	}

	if c.Git != nil {
		out = append(out,
			registry.Descriptor{
				Category: "git", Name: "status", Description: "Show the working tree status of a repository.",
				InputSchema: schema(map[string]any{"repo_path": strProp("repository path (default workspace root)")}),
				Handler:     c.Git.Status,
			},
			registry.Descriptor{
				Category: "git", Name: "diff", Description: "Show uncommitted changes, optionally against a ref.",
				InputSchema: schema(map[string]any{"repo_path": strProp("repository path"), "ref": strProp("ref to diff against")}),
				Handler:     c.Git.Diff,
			},
			registry.Descriptor{
				Category: "git", Name: "log", Description: "Show recent commit history.",
				InputSchema: schema(map[string]any{"repo_path": strProp("repository path"), "max_count": numProp("maximum commits to return (default 20)")}),
				Handler:     c.Git.Log,
			},
			registry.Descriptor{
				Category: "git", Name: "commit", Description: "Stage and commit changes.",
				InputSchema:         schema(map[string]any{"repo_path": strProp("repository path"), "message": strProp("commit message"), "pathspec": strProp("pathspec to stage (default all)")}, "message"),
				RequiresHITLDefault: true,
				Handler:             c.Git.Commit,
			},
		)
	}

	if c.Docker != nil {
		out = append(out,
			registry.Descriptor{
				Category: "docker", Name: "list", Description: "List containers visible to the Docker daemon.",
				InputSchema: schema(map[string]any{"all": boolProp("include stopped containers")}),
				Handler:     c.Docker.List,
			},
			registry.Descriptor{
				Category: "docker", Name: "inspect", Description: "Return full inspection JSON for one container.",
				InputSchema: schema(map[string]any{"container_id": strProp("container id or name")}, "container_id"),
				Handler:     c.Docker.Inspect,
			},
			registry.Descriptor{
				Category: "docker", Name: "logs", Description: "Return recent combined stdout/stderr for a container.",
				InputSchema: schema(map[string]any{"container_id": strProp("container id or name"), "tail": strProp("number of lines (default 200)")}, "container_id"),
				Handler:     c.Docker.Logs,
			},
		)
	}

	if c.HTTP != nil {
		out = append(out,
			registry.Descriptor{
				Category: "http", Name: "get", Description: "Issue a cached GET request subject to the egress policy.",
				InputSchema: schema(map[string]any{"url": strProp("request URL"), "timeout_seconds": numProp("request timeout")}, "url"),
				Handler:     c.HTTP.Get,
			},
			registry.Descriptor{
				Category: "http", Name: "request", Description: "Issue an arbitrary-method HTTP request subject to the egress policy.",
				InputSchema:         schema(map[string]any{"url": strProp("request URL"), "method": strProp("HTTP method (default GET)"), "body": strProp("request body"), "headers": objProp("request headers"), "timeout_seconds": numProp("request timeout")}, "url"),
				RequiresHITLDefault: true,
				Handler:             c.HTTP.Request,
			},
		)
	}

	if c.Workspace != nil {
		out = append(out, registry.Descriptor{
			Category: "workspace", Name: "info", Description: "Report the resolved workspace root.",
			Handler: c.Workspace.Info,
		})
	}

	if c.Memory != nil {
		out = append(out,
			registry.Descriptor{
				Category: "memory", Name: "store", Description: "Create or upsert a memory node.",
				InputSchema: schema(map[string]any{"id": strProp("existing node id to upsert"), "name": strProp("display name"), "content": strProp("node content"), "entity_type": strProp("concept|fact|task|person|event|note"), "tags": arrProp("tag set", strProp("")), "metadata": objProp("arbitrary metadata"), "source": strProp("provenance")}, "content"),
				Handler:     c.Memory.Store,
			},
			registry.Descriptor{
				Category: "memory", Name: "get", Description: "Retrieve a memory node by id.",
				InputSchema: schema(map[string]any{"id": strProp("node id"), "include_relations": boolProp("include immediate edges")}, "id"),
				Handler:     c.Memory.Get,
			},
			registry.Descriptor{
				Category: "memory", Name: "search", Description: "Search memory nodes by text, tags, or both.",
				InputSchema: schema(map[string]any{"mode": strProp("fulltext|tags|hybrid"), "query": strProp("free-text query"), "entity_type": strProp("filter by entity type"), "tags": arrProp("filter by tags", strProp("")), "after": strProp("RFC3339 lower bound"), "before": strProp("RFC3339 upper bound"), "max_results": numProp("result cap (default 20)")}),
				Handler:     c.Memory.Search,
			},
			registry.Descriptor{
				Category: "memory", Name: "update", Description: "Patch a memory node's content, name, tags, or metadata.",
				InputSchema: schema(map[string]any{"id": strProp("node id"), "content": strProp("replacement content"), "name": strProp("replacement name"), "tags": arrProp("replacement tag set", strProp("")), "metadata": objProp("metadata to merge")}, "id"),
				Handler:     c.Memory.Update,
			},
			registry.Descriptor{
				Category: "memory", Name: "delete", Description: "Delete a memory node and its incident edges.",
				InputSchema:         schema(map[string]any{"id": strProp("node id"), "cascade": boolProp("also delete would-be-orphaned children")}, "id"),
				RequiresHITLDefault: true,
				Handler:             c.Memory.Delete,
			},
			registry.Descriptor{
				Category: "memory", Name: "link", Description: "Create or update a typed, weighted edge between two nodes.",
				InputSchema: schema(map[string]any{"source_id": strProp("edge source"), "target_id": strProp("edge target"), "relation": strProp("relation name"), "weight": numProp("edge weight (default 1.0)"), "bidirectional": boolProp("also create the reverse edge"), "metadata": objProp("edge metadata"), "valid_from": strProp("RFC3339"), "valid_until": strProp("RFC3339")}, "source_id", "target_id", "relation"),
				Handler:     c.Memory.Link,
			},
			registry.Descriptor{
				Category: "memory", Name: "ancestors", Description: "Walk parent_of edges backward from a node.",
				InputSchema: schema(map[string]any{"id": strProp("node id"), "max_depth": numProp("traversal depth limit")}, "id"),
				Handler:     c.Memory.Ancestors,
			},
			registry.Descriptor{
				Category: "memory", Name: "subtree", Description: "Walk parent_of edges forward from a node.",
				InputSchema: schema(map[string]any{"id": strProp("node id"), "max_depth": numProp("traversal depth limit")}, "id"),
				Handler:     c.Memory.Subtree,
			},
			registry.Descriptor{
				Category: "memory", Name: "related", Description: "List a node's incident edges, optionally filtered by relation.",
				InputSchema: schema(map[string]any{"id": strProp("node id"), "relation": strProp("filter to one relation name")}, "id"),
				Handler:     c.Memory.Related,
			},
			registry.Descriptor{
				Category: "memory", Name: "stats", Description: "Report aggregate memory graph statistics.",
				Handler: c.Memory.Stats,
			},
		)
	}

	if c.Plan != nil {
		out = append(out,
			registry.Descriptor{
				Category: "plan", Name: "create", Description: "Validate a task DAG and register it for execution.",
				InputSchema: schema(map[string]any{"name": strProp("plan name"), "on_failure_default": strProp("stop|skip_dependents|continue"), "tasks": arrProp("task list", objProp("task"))}, "tasks"),
				Handler:     c.Plan.Create,
			},
			registry.Descriptor{
				Category: "plan", Name: "execute", Description: "Run a registered plan to completion.",
				InputSchema: schema(map[string]any{"plan_id": strProp("plan id or unique name")}, "plan_id"),
				Handler:     c.Plan.Execute,
			},
			registry.Descriptor{
				Category: "plan", Name: "status", Description: "Report a plan's current task counts and state.",
				InputSchema: schema(map[string]any{"plan_id": strProp("plan id or unique name")}, "plan_id"),
				Handler:     c.Plan.Status,
			},
			registry.Descriptor{
				Category: "plan", Name: "get", Description: "Return a plan's full task list, including outputs and errors.",
				InputSchema: schema(map[string]any{"plan_id": strProp("plan id or unique name")}, "plan_id"),
				Handler:     c.Plan.Get,
			},
		)
	}

	return out
}
