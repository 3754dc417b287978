// Package engine implements the Execution Engine (spec §4.4): the three
// execution paths (python/shell/animation), timeout enforcement, artifact
// harvesting, and the execution history ring.
package engine

import (
	"time"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/sberrors"
)

// Language enumerates the three execution paths from spec §3.
type Language string

const (
	LanguagePython    Language = "python"
	LanguageShell     Language = "shell"
	LanguageAnimation Language = "animation"
)

// Result is the Execution Result value from spec §3.
type Result struct {
	Success    bool
	Output     string
	Error      string
	ErrorKind  sberrors.Kind
	DurationMS int64
	Artifacts  []string
	Metadata   map[string]any
}

// Record is the Execution Record history entry from spec §3.
type Record struct {
	ExecutionID string
	CodeOrCmd   string
	Language    Language
	WorkspaceID string
	Result      Result
	StartedAt   time.Time
}
