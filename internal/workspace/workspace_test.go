package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/security"
)

func TestGetOrCreateIsIdempotentPerWorkspace(t *testing.T) {
	m := NewManager(t.TempDir(), zerolog.Nop())
	first, err := m.GetOrCreate("ws-1", security.TierModerate)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := m.GetOrCreate("ws-1", security.TierModerate)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same Context instance for repeated calls on one workspace_id")
	}
	if _, err := os.Stat(first.ArtifactsDir); err != nil {
		t.Fatalf("expected artifacts dir to exist: %v", err)
	}
}

func TestBindingsAreNotSharedAcrossWorkspaces(t *testing.T) {
	m := NewManager(t.TempDir(), zerolog.Nop())
	a, _ := m.GetOrCreate("ws-a", security.TierLow)
	b, _ := m.GetOrCreate("ws-b", security.TierLow)

	a.Bindings().Set("x", int64(1))
	if _, ok := b.Bindings().Get("x"); ok {
		t.Fatalf("expected workspace ws-b to not see ws-a's binding")
	}
}

func TestCleanupRemovesArtifactsDir(t *testing.T) {
	base := t.TempDir()
	m := NewManager(base, zerolog.Nop())
	ctx, err := m.GetOrCreate("ws-1", security.TierModerate)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	dir := ctx.ArtifactsDir
	if err := m.Cleanup("ws-1"); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected artifacts dir to be removed, stat err = %v", err)
	}
	if _, ok := m.Get("ws-1"); ok {
		t.Fatalf("expected context to be gone after cleanup")
	}
}

func TestBindingsEncodeDecodeRoundTrip(t *testing.T) {
	b := newBindings()
	b.Set("count", int64(42))
	b.Set("name", "swiss-sandbox")

	data, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	restored := newBindings()
	if err := restored.Decode(data); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v, ok := restored.Get("count"); !ok || v.(int64) != 42 {
		t.Fatalf("expected count=42 after round trip, got %v ok=%v", v, ok)
	}
}

func TestReapIdleRemovesOnlyStaleContexts(t *testing.T) {
	m := NewManager(t.TempDir(), zerolog.Nop())
	fresh, _ := m.GetOrCreate("fresh", security.TierLow)
	stale, _ := m.GetOrCreate("stale", security.TierLow)
	_ = fresh

	reaped := m.ReapIdle(func(ctx *Context) bool {
		return ctx.WorkspaceID == stale.WorkspaceID
	})
	if len(reaped) != 1 || reaped[0] != "stale" {
		t.Fatalf("expected only 'stale' to be reaped, got %+v", reaped)
	}
	if _, ok := m.Get("fresh"); !ok {
		t.Fatalf("expected 'fresh' context to survive")
	}
	if _, ok := m.Get("stale"); ok {
		t.Fatalf("expected 'stale' context to be gone")
	}
}

func TestMergedEnvironmentIncludesContextOverrides(t *testing.T) {
	m := NewManager(t.TempDir(), zerolog.Nop())
	ctx, _ := m.GetOrCreate("ws-env", security.TierLow)
	ctx.Environment["SWISS_SANDBOX_TEST"] = "1"

	env := ctx.MergedEnvironment()
	found := false
	for _, kv := range env {
		if kv == "SWISS_SANDBOX_TEST=1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected merged environment to contain context override, got %v", env)
	}
}

func TestTouchUpdatesIdleSince(t *testing.T) {
	m := NewManager(t.TempDir(), zerolog.Nop())
	ctx, _ := m.GetOrCreate("ws-touch", security.TierLow)
	time.Sleep(5 * time.Millisecond)
	before := ctx.IdleSince()
	ctx.Touch()
	after := ctx.IdleSince()
	if after >= before {
		t.Fatalf("expected Touch to reset idle duration, before=%v after=%v", before, after)
	}
}

func TestArtifactsDirRootedUnderWorkspaceID(t *testing.T) {
	base := t.TempDir()
	m := NewManager(base, zerolog.Nop())
	ctx, err := m.GetOrCreate("ws-root", security.TierLow)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	expected := filepath.Join(base, "ws-root")
	if ctx.ArtifactsDir != expected {
		t.Fatalf("expected artifacts dir %s, got %s", expected, ctx.ArtifactsDir)
	}
}
