package engine

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/sberrors"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/workspace"
)

// animationExtensions gates artifact harvesting after a render: only the
// renderer's actual media output is collected, not scratch files it leaves
// behind (spec §4.4, grounded on execute_manim's
// `file_path.suffix in ['.mp4', '.png', '.gif', '.mov']` filter).
var animationExtensions = map[string]bool{
	".mp4": true, ".png": true, ".gif": true, ".mov": true,
}

var qualityFlags = map[string]string{
	"low": "-ql", "medium": "-qm", "high": "-qh",
}

// ExecuteAnimation renders a Manim script and harvests the produced media.
// The renderer's merged stdout+stderr progress output is captured over a
// pty, grounded on Aureuma-si/tools/codex-interactive-driver/main.go's
// pty-based runner (so progress bars render correctly rather than being
// flattened by a plain pipe).
func (e *Engine) ExecuteAnimation(script string, ctx *workspace.Context, quality, sceneName string) Result {
	start := time.Now()
	execID := newExecutionID(LanguageAnimation)

	if err := e.validator.Validate(script, false); err != nil {
		return e.finishAnimation(execID, script, ctx, start, Result{
			ErrorKind: sberrors.KindValidation,
			Error:     err.Error(),
		})
	}

	if allowed, violation := e.filter.CheckPython(script, ctx.SecurityTier); !allowed {
		return e.finishAnimation(execID, script, ctx, start, Result{
			ErrorKind: sberrors.KindSecurity,
			Error:     fmt.Sprintf("security violation: %s (%s)", violation.Message, violation.RemediationHint),
			Metadata:  map[string]any{"violation_kind": violation.Kind, "remediation_hint": violation.RemediationHint},
		})
	}

	if _, err := exec.LookPath("manim"); err != nil {
		return e.finishAnimation(execID, script, ctx, start, Result{
			ErrorKind: sberrors.KindNotInstalled,
			Error:     "manim renderer not installed",
		})
	}

	ctx.Touch()
	scriptPath := filepath.Join(ctx.ArtifactsDir, fmt.Sprintf(".scene_%s.py", uuid.NewString()))
	if err := os.WriteFile(scriptPath, []byte(script), 0o600); err != nil {
		return e.finishAnimation(execID, script, ctx, start, Result{
			ErrorKind: sberrors.KindInternal,
			Error:     fmt.Sprintf("writing scene script: %v", err),
		})
	}
	defer os.Remove(scriptPath)

	mediaDir := filepath.Join(ctx.ArtifactsDir, "manim")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return e.finishAnimation(execID, script, ctx, start, Result{
			ErrorKind: sberrors.KindInternal,
			Error:     fmt.Sprintf("creating media dir: %v", err),
		})
	}

	flag, ok := qualityFlags[quality]
	if !ok {
		flag = qualityFlags["medium"]
	}
	argv := []string{"manim", scriptPath, "--media_dir", mediaDir, "--disable_caching", flag}
	if sceneName != "" {
		argv = append(argv, sceneName)
	}

	output, exitCode, timedOut, runErr := e.runWithPTY(argv, ctx)
	if timedOut {
		return e.finishAnimation(execID, script, ctx, start, Result{
			ErrorKind: sberrors.KindTimeout,
			Error:     runErr.Error(),
		})
	}
	if runErr != nil {
		return e.finishAnimation(execID, script, ctx, start, Result{
			ErrorKind: sberrors.KindInternal,
			Error:     runErr.Error(),
		})
	}

	artifacts := harvestByExtension(mediaDir, ctx.WorkspaceID, animationExtensions, e.artifacts, e.log)

	result := Result{
		Success:   exitCode == 0,
		Output:    output,
		Artifacts: artifacts,
		Metadata: map[string]any{
			"return_code":    exitCode,
			"quality":        quality,
			"scene_name":     sceneName,
			"artifacts_count": len(artifacts),
		},
	}
	if exitCode != 0 {
		result.Error = output
		result.ErrorKind = sberrors.KindRuntimeFailure
	}
	return e.finishAnimation(execID, script, ctx, start, result)
}

// runWithPTY spawns manim attached to a pseudo-terminal so its live
// progress bar (carriage-return-driven) is captured faithfully, honoring
// the resource-tier's CPU-seconds budget as a wallclock deadline.
func (e *Engine) runWithPTY(argv []string, ctx *workspace.Context) (output string, exitCode int, timedOut bool, err error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = ctx.ArtifactsDir
	cmd.Env = ctx.MergedEnvironment()

	f, startErr := pty.Start(cmd)
	if startErr != nil {
		return "", -1, false, fmt.Errorf("starting manim under pty: %w", startErr)
	}
	defer f.Close()

	done := make(chan struct{})
	var outBuf []byte
	go func() {
		buf := make([]byte, 4096)
		for {
			n, readErr := f.Read(buf)
			if n > 0 {
				outBuf = append(outBuf, buf[:n]...)
			}
			if readErr != nil {
				break
			}
		}
		close(done)
	}()

	timeout := time.Duration(ctx.ResourceLimits.CPUSeconds) * time.Second
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case waitErr := <-waitCh:
		<-done
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return string(outBuf), exitErr.ExitCode(), false, nil
		}
		if waitErr != nil {
			return string(outBuf), -1, false, waitErr
		}
		return string(outBuf), 0, false, nil
	case <-time.After(timeout):
		_ = cmd.Process.Kill()
		<-waitCh
		return string(outBuf), -1, true, fmt.Errorf("manim render timed out after %s", timeout)
	}
}

func (e *Engine) finishAnimation(execID, script string, ctx *workspace.Context, start time.Time, result Result) Result {
	result.DurationMS = time.Since(start).Milliseconds()
	e.recordHistory(execID, LanguageAnimation, ctx.WorkspaceID, script, result, start)
	return result
}
