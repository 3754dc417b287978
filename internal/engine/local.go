package engine

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/limits"
)

// localIsolation is the default Isolation backend: a plain os/exec child
// with prlimit-based resource enforcement (internal/limits) and a wallclock
// deadline via context.WithTimeout, grounded on
// Aureuma-si/agents/shared/docker/client.go's Exec for the
// attach-stdout/stderr-then-inspect-exit-code shape, adapted from container
// exec to a local child process.
type localIsolation struct {
	applicator *limits.Applicator
}

func newLocalIsolation() *localIsolation {
	return &localIsolation{applicator: limits.NewApplicator()}
}

func (l *localIsolation) RunCapture(spec RunSpec) (RunOutcome, error) {
	ctx, cancel := context.WithTimeout(context.Background(), spec.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Env = spec.Env
	cmd.Dir = spec.WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(spec.StdinData) > 0 {
		cmd.Stdin = bytes.NewReader(spec.StdinData)
	}

	if err := cmd.Start(); err != nil {
		return RunOutcome{}, err
	}
	applied := l.applicator.Apply(cmd, spec.Resources)
	_ = applied

	err := cmd.Wait()
	outcome := RunOutcome{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctx.Err() == context.DeadlineExceeded {
		outcome.TimedOut = true
		outcome.ExitCode = -1
		return outcome, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		outcome.ExitCode = exitErr.ExitCode()
		return outcome, nil
	}
	if err != nil {
		return outcome, err
	}
	outcome.ExitCode = cmd.ProcessState.ExitCode()
	return outcome, nil
}
