package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/artifact"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/limits"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/security"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/workspace"
)

// Isolation is the pluggable execution backend interface: the default is a
// direct os/exec child; internal/isolation's Docker backend satisfies the
// same shape for callers that opt into container isolation.
type Isolation interface {
	// RunCapture runs a command (argv form) with the given environment and
	// working directory, enforcing resources, and returns combined exit
	// status plus captured stdout/stderr. It bounds the run by spec.Timeout.
	RunCapture(spec RunSpec) (RunOutcome, error)
}

// RunSpec describes a single bounded child-process invocation.
type RunSpec struct {
	Argv      []string
	Env       []string
	WorkDir   string
	Timeout   time.Duration
	Resources limits.Resources
	StdinData []byte
}

// RunOutcome is what a RunCapture call returns.
type RunOutcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// Engine wires together the Command Filter, Resource Limiter, Artifact
// Store, Workspace Manager, an Isolation backend, and the history ring —
// grounded on original_source/src/sandbox/core/execution_engine.py's
// ExecutionEngine (filter → context → deadline → dispatch → harvest →
// history skeleton) and on Aureuma-si/agents/shared/docker/client.go's
// Exec for the Go child-process/attach/deadline shape.
type Engine struct {
	filter    *security.Filter
	validator *security.Validator
	workspace *workspace.Manager
	artifacts *artifact.Store
	isolation Isolation
	log       zerolog.Logger

	history *history

	totalExecutions      int64
	successfulExecutions int64
	failedExecutions     int64
}

// New constructs an Engine. isolation may be nil, in which case New installs
// the default local-process backend (see local.go).
func New(filter *security.Filter, validator *security.Validator, wsMgr *workspace.Manager, store *artifact.Store, isolation Isolation, log zerolog.Logger) *Engine {
	if isolation == nil {
		isolation = newLocalIsolation()
	}
	return &Engine{
		filter:    filter,
		validator: validator,
		workspace: wsMgr,
		artifacts: store,
		isolation: isolation,
		log:       log,
		history:   newHistory(),
	}
}

// newExecutionID matches the original's f"{lang}_{int(time.time()*1000)}"
// format, substituting a uuid suffix for collision-freedom across a process
// with many goroutines calling at once (the original assumed single-threaded
// CPython and can collide; Go cannot make that assumption).
func newExecutionID(lang Language) string {
	return fmt.Sprintf("%s_%d_%s", lang, time.Now().UnixMilli(), uuid.NewString()[:8])
}

func (e *Engine) recordHistory(id string, lang Language, workspaceID, codeOrCmd string, result Result, startedAt time.Time) {
	e.history.append(Record{
		ExecutionID: id,
		CodeOrCmd:   codeOrCmd,
		Language:    lang,
		WorkspaceID: workspaceID,
		Result:      result,
		StartedAt:   startedAt,
	})
	e.totalExecutions++
	if result.Success {
		e.successfulExecutions++
	} else {
		e.failedExecutions++
	}
}

// History returns the execution history ring for read-only access (MCP
// get_execution_history tool, Health Monitor).
func (e *Engine) History() *history { return e.history }

// Stats summarizes totals, matching execution_engine.py's get_stats shape.
func (e *Engine) Stats() Stats {
	return e.history.Stats()
}

// harvestArtifacts walks dir and stores every regular file found into the
// Artifact Store, returning the workspace-relative paths recorded in the
// Execution Result (spec §4.4's "artifact harvesting").
func (e *Engine) harvestArtifacts(dir, workspaceID string) []string {
	return harvestDir(dir, workspaceID, e.artifacts, e.log)
}
