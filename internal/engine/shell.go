package engine

import (
	"fmt"
	"time"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/sberrors"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/workspace"
)

// ExecuteShell runs command through /bin/sh -c in the workspace's artifacts
// directory, with merged environment, deadline, and artifact harvesting —
// grounded on execute_shell in
// original_source/src/sandbox/core/execution_engine.py.
func (e *Engine) ExecuteShell(command string, ctx *workspace.Context) Result {
	start := time.Now()
	execID := newExecutionID(LanguageShell)

	if err := e.validator.Validate(command, true); err != nil {
		return e.finishShell(execID, command, ctx, start, Result{
			ErrorKind: sberrors.KindValidation,
			Error:     err.Error(),
		})
	}

	if allowed, violation := e.filter.CheckCommand(command, ctx.SecurityTier); !allowed {
		return e.finishShell(execID, command, ctx, start, Result{
			ErrorKind: sberrors.KindSecurity,
			Error:     fmt.Sprintf("security violation: %s (%s)", violation.Message, violation.RemediationHint),
			Metadata:  map[string]any{"violation_kind": violation.Kind, "remediation_hint": violation.RemediationHint},
		})
	}

	ctx.Touch()
	outcome, err := e.isolation.RunCapture(RunSpec{
		Argv:      []string{"/bin/sh", "-c", command},
		Env:       ctx.MergedEnvironment(),
		WorkDir:   ctx.ArtifactsDir,
		Timeout:   time.Duration(ctx.ResourceLimits.CPUSeconds) * time.Second,
		Resources: ctx.ResourceLimits,
	})
	if err != nil {
		return e.finishShell(execID, command, ctx, start, Result{
			ErrorKind: sberrors.KindInternal,
			Error:     err.Error(),
		})
	}
	if outcome.TimedOut {
		return e.finishShell(execID, command, ctx, start, Result{
			ErrorKind: sberrors.KindTimeout,
			Error:     fmt.Sprintf("command timed out after %d seconds", ctx.ResourceLimits.CPUSeconds),
			Metadata:  map[string]any{"command": command, "timeout_seconds": ctx.ResourceLimits.CPUSeconds},
		})
	}

	artifacts := e.harvestArtifacts(ctx.ArtifactsDir, ctx.WorkspaceID)

	result := Result{
		Success:   outcome.ExitCode == 0,
		Output:    outcome.Stdout,
		Artifacts: artifacts,
		Metadata: map[string]any{
			"return_code":      outcome.ExitCode,
			"command":          command,
			"working_directory": ctx.ArtifactsDir,
		},
	}
	if outcome.ExitCode != 0 {
		result.Error = outcome.Stderr
		result.ErrorKind = sberrors.KindCommandError
	}
	return e.finishShell(execID, command, ctx, start, result)
}

func (e *Engine) finishShell(execID, command string, ctx *workspace.Context, start time.Time, result Result) Result {
	result.DurationMS = time.Since(start).Milliseconds()
	e.recordHistory(execID, LanguageShell, ctx.WorkspaceID, command, result, start)
	return result
}
