// Package workspace implements the Execution Context (spec §3, §4.4):
// long-lived per-workspace state keyed by workspace_id, owning an artifacts
// directory and a persistent variable-binding bag for the Python path.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/limits"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/security"
)

// Context is the long-lived, keyed-by-workspace_id record from spec §3.
// Invariants: ArtifactsDir exists and is writable for the lifetime of the
// context; Bindings is never shared across workspaces.
type Context struct {
	WorkspaceID    string
	ArtifactsDir   string
	Environment    map[string]string
	ResourceLimits limits.Resources
	SecurityTier   security.Tier
	UserID         string

	createdAt    time.Time
	lastActivity time.Time

	mu       sync.RWMutex
	bindings *Bindings
}

func newContext(workspaceID, artifactsDir string, tier security.Tier) *Context {
	now := time.Now()
	return &Context{
		WorkspaceID:    workspaceID,
		ArtifactsDir:   artifactsDir,
		Environment:    map[string]string{},
		ResourceLimits: limits.ForTier(tier),
		SecurityTier:   tier,
		bindings:       newBindings(),
		createdAt:      now,
		lastActivity:   now,
	}
}

// Bindings returns the context's persistent binding bag. Callers must treat
// it as owned by this context only — never share a *Bindings across two
// Context values.
func (c *Context) Bindings() *Bindings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bindings
}

// Touch records activity for idle-reap accounting.
func (c *Context) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = time.Now()
}

// IdleSince reports how long the context has gone unused.
func (c *Context) IdleSince() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.lastActivity)
}

// MergedEnvironment returns the context's Environment overlaid onto the
// process's inherited environment, in os/exec's "last wins" KEY=VALUE form.
func (c *Context) MergedEnvironment() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	base := os.Environ()
	out := make([]string, 0, len(base)+len(c.Environment))
	out = append(out, base...)
	for k, v := range c.Environment {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// ensureArtifactsDir creates the directory if absent and verifies it is
// writable, enforcing the "exists and is writable for the lifetime of the
// context" invariant.
func ensureArtifactsDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifacts dir: %w", err)
	}
	probe := filepath.Join(dir, ".write-probe")
	if err := os.WriteFile(probe, []byte{}, 0o644); err != nil {
		return fmt.Errorf("artifacts dir not writable: %w", err)
	}
	return os.Remove(probe)
}
