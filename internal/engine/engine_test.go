package engine

import (
	"os/exec"
	"testing"

	"github.com/rs/zerolog"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/artifact"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/security"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/workspace"
)

func newTestEngine(t *testing.T) (*Engine, *workspace.Manager) {
	t.Helper()
	log := zerolog.Nop()
	store, err := artifact.NewStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	wsMgr := workspace.NewManager(t.TempDir(), log)
	eng := New(security.NewFilter(), security.NewValidator(), wsMgr, store, nil, log)
	return eng, wsMgr
}

func TestExecuteShellCapturesStdout(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	eng, wsMgr := newTestEngine(t)
	ctx, err := wsMgr.GetOrCreate("ws1", security.TierModerate)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	result := eng.ExecuteShell("echo hello", ctx)
	if !result.Success {
		t.Fatalf("expected success, got error=%s kind=%s", result.Error, result.ErrorKind)
	}
	if result.Output != "hello\n" {
		t.Fatalf("unexpected output: %q", result.Output)
	}
}

func TestExecuteShellNonzeroExitIsCommandError(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	eng, wsMgr := newTestEngine(t)
	ctx, _ := wsMgr.GetOrCreate("ws1", security.TierModerate)

	result := eng.ExecuteShell("exit 7", ctx)
	if result.Success {
		t.Fatalf("expected failure for nonzero exit")
	}
	if result.ErrorKind != "CommandError" {
		t.Fatalf("expected CommandError, got %s", result.ErrorKind)
	}
}

func TestExecuteShellBlocksCriticalViolation(t *testing.T) {
	eng, wsMgr := newTestEngine(t)
	ctx, _ := wsMgr.GetOrCreate("ws1", security.TierLow)

	result := eng.ExecuteShell("rm -rf /", ctx)
	if result.Success {
		t.Fatalf("expected a blocked command to fail")
	}
	if result.ErrorKind != "Security" {
		t.Fatalf("expected Security error kind, got %s", result.ErrorKind)
	}
}

func TestExecutePythonPersistsBindingsAcrossCalls(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	eng, wsMgr := newTestEngine(t)
	ctx, _ := wsMgr.GetOrCreate("ws1", security.TierModerate)

	first := eng.ExecutePython("x = 21", ctx)
	if !first.Success {
		t.Fatalf("expected first execution to succeed, error=%s", first.Error)
	}
	if len(first.Artifacts) != 0 {
		t.Fatalf("expected no harvested artifacts for a binding-only execution, got %v", first.Artifacts)
	}

	second := eng.ExecutePython("print(x * 2)", ctx)
	if !second.Success {
		t.Fatalf("expected second execution to succeed, error=%s", second.Error)
	}
	if second.Output != "42\n" {
		t.Fatalf("expected bound variable to persist across calls, got output=%q", second.Output)
	}
}

func TestExecutePythonBindingsNotSharedAcrossWorkspaces(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	eng, wsMgr := newTestEngine(t)
	ctxA, _ := wsMgr.GetOrCreate("ws-a", security.TierModerate)
	ctxB, _ := wsMgr.GetOrCreate("ws-b", security.TierModerate)

	eng.ExecutePython("secret = 1", ctxA)
	result := eng.ExecutePython("print(secret)", ctxB)
	if result.Success {
		t.Fatalf("expected NameError in workspace B since bindings must not cross workspaces")
	}
}

func TestHistoryRingTrimsOnOverflow(t *testing.T) {
	h := newHistory()
	for i := 0; i < historyCap+50; i++ {
		h.append(Record{ExecutionID: "x"})
	}
	if h.Len() != historyTrimTo+49 {
		t.Fatalf("expected ring to trim to %d after overflow, got %d", historyTrimTo+49, h.Len())
	}
}

func TestRecoverRuntimeFailureClearsBindings(t *testing.T) {
	_, wsMgr := newTestEngine(t)
	ctx, _ := wsMgr.GetOrCreate("ws1", security.TierModerate)
	ctx.Bindings().Set("x", int64(1))

	outcome := Recover("RuntimeFailure", ctx)
	if !outcome.Applied {
		t.Fatalf("expected recovery to apply")
	}
	if ctx.Bindings().Len() != 0 {
		t.Fatalf("expected bindings cleared after RuntimeFailure recovery")
	}
}
