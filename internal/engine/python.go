package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/sberrors"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/workspace"
)

// pythonPreamble is prepended to every user script. It restores the
// workspace's persistent bindings from a JSON snapshot, runs the user's
// code in that namespace, then dumps the JSON-serializable subset of the
// resulting globals back out — the mechanism behind spec §3's
// "persistent_bindings ... preserved across calls to the same workspace".
const pythonPreamble = `
import json as __sandbox_json
import sys as __sandbox_sys

with open(__sandbox_bindings_in, "r") as __f:
    globals().update(__sandbox_json.load(__f))

del __sandbox_bindings_in
`

const pythonPostamble = `

def __sandbox_dump_bindings():
    out = {}
    for __k, __v in list(globals().items()):
        if __k.startswith("__sandbox_") or __k in ("json", "sys"):
            continue
        try:
            __sandbox_json.dumps(__v)
        except Exception:
            continue
        out[__k] = __v
    with open(__sandbox_bindings_out, "w") as __f:
        __sandbox_json.dump(out, __f)

__sandbox_dump_bindings()
`

// ExecutePython runs code in a fresh python3 child, restoring and persisting
// the workspace's Bindings around the call — grounded on execute_python in
// original_source/src/sandbox/core/execution_engine.py (persistent-context
// acquisition, timeout handling, artifact harvesting).
func (e *Engine) ExecutePython(code string, ctx *workspace.Context) Result {
	start := time.Now()
	execID := newExecutionID(LanguagePython)

	if err := e.validator.Validate(code, false); err != nil {
		return e.finishPython(execID, code, ctx, start, Result{
			ErrorKind: sberrors.KindValidation,
			Error:     err.Error(),
		})
	}

	if allowed, violation := e.filter.CheckPython(code, ctx.SecurityTier); !allowed {
		return e.finishPython(execID, code, ctx, start, Result{
			ErrorKind: sberrors.KindSecurity,
			Error:     fmt.Sprintf("security violation: %s (%s)", violation.Message, violation.RemediationHint),
			Metadata:  map[string]any{"violation_kind": violation.Kind, "remediation_hint": violation.RemediationHint},
		})
	}

	ctx.Touch()
	scratchDir, err := os.MkdirTemp("", "sandbox-py-scratch-")
	if err != nil {
		return e.finishPython(execID, code, ctx, start, Result{
			ErrorKind: sberrors.KindInternal,
			Error:     fmt.Sprintf("creating scratch dir: %v", err),
		})
	}
	defer os.RemoveAll(scratchDir)

	bindingsIn := filepath.Join(scratchDir, fmt.Sprintf("bindings_in_%s.json", uuid.NewString()))
	bindingsOut := filepath.Join(scratchDir, fmt.Sprintf("bindings_out_%s.json", uuid.NewString()))

	snapshot := ctx.Bindings().Snapshot()
	inData, err := json.Marshal(snapshot)
	if err != nil {
		return e.finishPython(execID, code, ctx, start, Result{
			ErrorKind: sberrors.KindInternal,
			Error:     fmt.Sprintf("serializing bindings: %v", err),
		})
	}
	if err := os.WriteFile(bindingsIn, inData, 0o600); err != nil {
		return e.finishPython(execID, code, ctx, start, Result{
			ErrorKind: sberrors.KindInternal,
			Error:     fmt.Sprintf("writing bindings snapshot: %v", err),
		})
	}

	script := fmt.Sprintf("__sandbox_bindings_in = %q\n__sandbox_bindings_out = %q\n%s\n%s\n%s",
		bindingsIn, bindingsOut, pythonPreamble, code, pythonPostamble)

	scriptPath := filepath.Join(scratchDir, fmt.Sprintf("script_%s.py", uuid.NewString()))
	if err := os.WriteFile(scriptPath, []byte(script), 0o600); err != nil {
		return e.finishPython(execID, code, ctx, start, Result{
			ErrorKind: sberrors.KindInternal,
			Error:     fmt.Sprintf("writing script: %v", err),
		})
	}

	outcome, err := e.isolation.RunCapture(RunSpec{
		Argv:      []string{"python3", scriptPath},
		Env:       ctx.MergedEnvironment(),
		WorkDir:   ctx.ArtifactsDir,
		Timeout:   time.Duration(ctx.ResourceLimits.CPUSeconds) * time.Second,
		Resources: ctx.ResourceLimits,
	})
	if err != nil {
		if isExecutableNotFound(err) {
			return e.finishPython(execID, code, ctx, start, Result{
				ErrorKind: sberrors.KindNotInstalled,
				Error:     "python3 interpreter not found",
			})
		}
		return e.finishPython(execID, code, ctx, start, Result{
			ErrorKind: sberrors.KindInternal,
			Error:     err.Error(),
		})
	}
	if outcome.TimedOut {
		return e.finishPython(execID, code, ctx, start, Result{
			ErrorKind: sberrors.KindTimeout,
			Error:     fmt.Sprintf("execution timed out after %d seconds", ctx.ResourceLimits.CPUSeconds),
		})
	}

	if outcome.ExitCode == 0 {
		if outData, readErr := os.ReadFile(bindingsOut); readErr == nil {
			var restored map[string]any
			if json.Unmarshal(outData, &restored) == nil {
				ctx.Bindings().Restore(restored)
			}
		}
	}

	artifacts := e.harvestArtifacts(ctx.ArtifactsDir, ctx.WorkspaceID)

	result := Result{
		Success:   outcome.ExitCode == 0,
		Output:    outcome.Stdout,
		Artifacts: artifacts,
		Metadata:  map[string]any{"return_code": outcome.ExitCode},
	}
	if outcome.ExitCode != 0 {
		result.Error = outcome.Stderr
		result.ErrorKind = sberrors.Classify(fmt.Errorf("%s", outcome.Stderr))
		if result.ErrorKind == sberrors.KindInternal {
			result.ErrorKind = sberrors.KindRuntimeFailure
		}
	}
	return e.finishPython(execID, code, ctx, start, result)
}

func (e *Engine) finishPython(execID, code string, ctx *workspace.Context, start time.Time, result Result) Result {
	result.DurationMS = time.Since(start).Milliseconds()
	e.recordHistory(execID, LanguagePython, ctx.WorkspaceID, code, result, start)
	return result
}

func isExecutableNotFound(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "executable file not found") || strings.Contains(err.Error(), "no such file or directory"))
}
