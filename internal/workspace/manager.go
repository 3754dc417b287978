package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/security"
)

// Manager owns all active Contexts, grounded on execution_engine.py's
// `active_contexts` dict + `get_or_create_persistent_context` /
// `cleanup_context` / `cleanup_all` methods, and structurally on
// Aureuma-si/agents/shared/docker's single mutex-guarded registry pattern.
type Manager struct {
	baseDir string
	log     zerolog.Logger

	mu       sync.RWMutex
	contexts map[string]*Context
}

// NewManager creates a Manager that roots every workspace's artifacts
// directory under baseDir/<workspace_id>.
func NewManager(baseDir string, log zerolog.Logger) *Manager {
	return &Manager{baseDir: baseDir, log: log, contexts: map[string]*Context{}}
}

// GetOrCreate returns the existing Context for workspaceID, or creates one
// rooted at baseDir/<workspaceID> with an artifacts directory that is
// verified writable before the context is handed back.
func (m *Manager) GetOrCreate(workspaceID string, tier security.Tier) (*Context, error) {
	m.mu.RLock()
	if ctx, ok := m.contexts[workspaceID]; ok {
		m.mu.RUnlock()
		ctx.Touch()
		return ctx, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx, ok := m.contexts[workspaceID]; ok {
		ctx.Touch()
		return ctx, nil
	}

	artifactsDir := filepath.Join(m.baseDir, workspaceID)
	if err := ensureArtifactsDir(artifactsDir); err != nil {
		return nil, err
	}
	ctx := newContext(workspaceID, artifactsDir, tier)
	m.contexts[workspaceID] = ctx
	m.log.Info().Str("workspace_id", workspaceID).Msg("created persistent execution context")
	return ctx, nil
}

// Get returns an existing Context without creating one.
func (m *Manager) Get(workspaceID string) (*Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx, ok := m.contexts[workspaceID]
	return ctx, ok
}

// Cleanup destroys a single workspace's context and deletes its artifacts
// directory, matching execution_engine.py's cleanup_context.
func (m *Manager) Cleanup(workspaceID string) error {
	m.mu.Lock()
	ctx, ok := m.contexts[workspaceID]
	if ok {
		delete(m.contexts, workspaceID)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	ctx.Bindings().Clear()
	if err := os.RemoveAll(ctx.ArtifactsDir); err != nil {
		return fmt.Errorf("removing artifacts dir for %s: %w", workspaceID, err)
	}
	m.log.Info().Str("workspace_id", workspaceID).Msg("cleaned up execution context")
	return nil
}

// CleanupAll tears down every active context, matching
// execution_engine.py's cleanup_all (invoked on server shutdown).
func (m *Manager) CleanupAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.contexts))
	for id := range m.contexts {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.Cleanup(id); err != nil {
			m.log.Warn().Err(err).Str("workspace_id", id).Msg("failed to clean up context during shutdown")
		}
	}
}

// ReapIdle cleans up every context for which the maxIdle predicate returns
// true and returns the reaped workspace ids, matching the spec's orphan-reap
// lifecycle note (spec §3: "destroyed by
// explicit cleanup, or by orphan-reap when no session references it").
func (m *Manager) ReapIdle(maxIdle func(*Context) bool) []string {
	m.mu.RLock()
	var stale []string
	for id, ctx := range m.contexts {
		if maxIdle(ctx) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		if err := m.Cleanup(id); err != nil {
			m.log.Warn().Err(err).Str("workspace_id", id).Msg("failed to reap idle context")
		}
	}
	return stale
}

// Count reports the number of active contexts.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.contexts)
}
