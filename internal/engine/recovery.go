package engine

import (
	"runtime"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/sberrors"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/workspace"
)

// maxRecoveredCPUSeconds is the Timeout recovery strategy's absolute cap
// (spec §7: "double the deadline ... up to an absolute cap (≈300 s)").
const maxRecoveredCPUSeconds = 300

// RecoveryOutcome records what a best-effort recovery attempt did, for the
// Error Record diagnostics spec §7 asks for.
type RecoveryOutcome struct {
	Applied     bool
	Description string
}

// Recover applies the spec §7 recovery strategy matching kind, once, to
// ctx. Recovery is best-effort: a kind with no registered strategy is a
// no-op RecoveryOutcome{Applied: false}.
func Recover(kind sberrors.Kind, ctx *workspace.Context) RecoveryOutcome {
	switch kind {
	case sberrors.KindRuntimeFailure:
		ctx.Bindings().Clear()
		return RecoveryOutcome{Applied: true, Description: "cleared persistent bindings for workspace; caller may retry"}

	case sberrors.KindResource:
		ctx.ResourceLimits = ctx.ResourceLimits.Halved()
		runtime.GC()
		return RecoveryOutcome{Applied: true, Description: "halved memory cap and forced a GC"}

	case sberrors.KindTimeout:
		ctx.ResourceLimits = ctx.ResourceLimits.DoubledCPUSeconds(maxRecoveredCPUSeconds)
		return RecoveryOutcome{Applied: true, Description: "doubled CPU-seconds deadline up to the absolute cap"}

	default:
		return RecoveryOutcome{}
	}
}
