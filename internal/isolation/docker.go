// Package isolation implements an opt-in Docker-backed Isolation backend
// for the Execution Engine (spec §4.4's "pluggable Isolation interface"),
// adapted from Aureuma-si/agents/shared/docker/client.go — repurposed from
// "run the long-lived silexa dyad container" to "run one throwaway
// container per execution", started fresh and removed after every call.
package isolation

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/engine"
)

// DockerBackend satisfies engine.Isolation by running each call in a fresh
// container that is force-removed once the call returns (Docker's AutoRemove
// is off), bind-mounting the caller's WorkDir so artifact
// harvesting still sees whatever the child writes there.
type DockerBackend struct {
	api   *client.Client
	image string
	log   zerolog.Logger
}

// NewDockerBackend connects to the local Docker daemon (via the standard
// DOCKER_HOST/env conventions, mirroring client.go's NewClient) and
// verifies it's reachable with a short ping, matching the teacher's
// fail-fast-at-construction shape.
func NewDockerBackend(image string, log zerolog.Logger) (*DockerBackend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("docker ping: %w", err)
	}
	if image == "" {
		image = "python:3.11-slim"
	}
	return &DockerBackend{api: cli, image: image, log: log}, nil
}

// Close releases the underlying Docker API client.
func (b *DockerBackend) Close() error {
	if b == nil || b.api == nil {
		return nil
	}
	return b.api.Close()
}

// RunCapture creates a container for spec.Argv, bind-mounts spec.WorkDir as
// the working directory, applies the resource limits as container-level
// constraints, waits up to spec.Timeout, and demultiplexes combined
// stdout/stderr via stdcopy — the same demux call client.go's Exec uses.
func (b *DockerBackend) RunCapture(spec engine.RunSpec) (engine.RunOutcome, error) {
	ctx := context.Background()

	const containerWorkdir = "/workspace"
	memBytes := int64(spec.Resources.MemoryMiB) * 1024 * 1024
	pidsLimit := int64(spec.Resources.MaxProcesses)

	resp, err := b.api.ContainerCreate(ctx, &container.Config{
		Image:      b.image,
		Cmd:        spec.Argv,
		Env:        spec.Env,
		WorkingDir: containerWorkdir,
		Tty:        false,
	}, &container.HostConfig{
		Binds: []string{spec.WorkDir + ":" + containerWorkdir},
		Resources: container.Resources{
			Memory:    memBytes,
			PidsLimit: &pidsLimit,
		},
		AutoRemove: false,
	}, nil, nil, "")
	if err != nil {
		return engine.RunOutcome{}, fmt.Errorf("container create: %w", err)
	}
	defer func() {
		_ = b.api.ContainerRemove(context.Background(), resp.ID, types.ContainerRemoveOptions{Force: true})
	}()

	if err := b.api.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return engine.RunOutcome{}, fmt.Errorf("container start: %w", err)
	}

	waitCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	statusCh, errCh := b.api.ContainerWait(waitCtx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int
	timedOut := false
	select {
	case err := <-errCh:
		if err != nil {
			if waitCtx.Err() != nil {
				timedOut = true
				_ = b.api.ContainerKill(context.Background(), resp.ID, "SIGKILL")
			} else {
				return engine.RunOutcome{}, fmt.Errorf("container wait: %w", err)
			}
		}
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	}

	logReader, err := b.api.ContainerLogs(context.Background(), resp.ID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return engine.RunOutcome{ExitCode: exitCode, TimedOut: timedOut}, nil
	}
	defer logReader.Close()

	var stdout, stderr bytes.Buffer
	_, _ = stdcopy.StdCopy(&stdout, &stderr, logReader)

	return engine.RunOutcome{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: timedOut,
	}, nil
}

// RunSpec.StdinData is accepted for interface symmetry with the local
// backend but not wired to container stdin here — no execution path
// (python/shell/animation) supplies it today, and attaching stdin to a
// one-shot ContainerCreate/Start call needs the same attach/copy dance
// client.go's Exec uses for exec-into-an-existing-container, which does
// not apply to a fresh container's PID 1.
