package tools

import (
	"context"
	"io"

	containertypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/hostbridge/hostbridge/internal/errs"
)

// Docker wraps the Docker Engine API client for read-oriented container
// introspection. The client connects lazily on first use so a host without
// a Docker socket never fails at startup, only when a docker tool is
// actually invoked.
type Docker struct {
	cli *client.Client
}

// NewDocker creates a Docker handler set using the standard environment
// variables (DOCKER_HOST, DOCKER_CERT_PATH, ...) to locate the daemon.
func NewDocker() (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &Docker{cli: cli}, nil
}

// List returns running (and, with all=true, stopped) containers.
func (d *Docker) List(ctx context.Context, params map[string]any) (any, error) {
	containers, err := d.cli.ContainerList(ctx, containertypes.ListOptions{All: boolParam(params, "all", false)})
	if err != nil {
		return nil, errs.Newf(errs.KindInternal, "list containers: %v", err)
	}

	type summary struct {
		ID      string   `json:"id"`
		Names   []string `json:"names"`
		Image   string   `json:"image"`
		State   string   `json:"state"`
		Status  string   `json:"status"`
		Created int64    `json:"created"`
	}
	out := make([]summary, 0, len(containers))
	for _, c := range containers {
		out = append(out, summary{ID: c.ID, Names: c.Names, Image: c.Image, State: c.State, Status: c.Status, Created: c.Created})
	}
	return map[string]any{"containers": out}, nil
}

// Inspect returns the full container JSON for container_id.
func (d *Docker) Inspect(ctx context.Context, params map[string]any) (any, error) {
	id, err := stringParam(params, "container_id")
	if err != nil {
		return nil, err
	}
	info, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, errs.Newf(errs.KindNotFound, "container %q not found", id).WithSuggestion("docker_list")
		}
		return nil, errs.Newf(errs.KindInternal, "inspect container: %v", err)
	}
	return info, nil
}

// maxDockerLogBytes truncates captured container logs.
const maxDockerLogBytes = 1 << 20

// Logs returns a container's recent combined stdout/stderr, bounded by
// tail (default "200" lines).
func (d *Docker) Logs(ctx context.Context, params map[string]any) (any, error) {
	id, err := stringParam(params, "container_id")
	if err != nil {
		return nil, err
	}
	tail, _ := params["tail"].(string)
	if tail == "" {
		tail = "200"
	}

	rc, err := d.cli.ContainerLogs(ctx, id, containertypes.LogsOptions{ShowStdout: true, ShowStderr: true, Tail: tail})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, errs.Newf(errs.KindNotFound, "container %q not found", id).WithSuggestion("docker_list")
		}
		return nil, errs.Newf(errs.KindInternal, "read container logs: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxDockerLogBytes))
	if err != nil {
		return nil, errs.Newf(errs.KindInternal, "read container logs: %v", err)
	}
	return map[string]any{"container_id": id, "logs": string(data)}, nil
}
