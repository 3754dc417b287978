// Package limits derives Resource Limits from a Security Tier and applies
// them to a spawned child process (spec §4.2).
package limits

import "github.com/scooter-lacroix/swiss-sandbox-sub000/internal/security"

// Resources is the record described in spec §3: always positive, derived
// from a Security Tier with per-call overrides possible.
type Resources struct {
	CPUSeconds    int
	MemoryMiB     int
	MaxProcesses  int
	MaxFileSizeMiB int
	MaxTotalFiles int
}

// defaults is the tier -> limits table from spec §4.2.
var defaults = map[security.Tier]Resources{
	security.TierLow:      {CPUSeconds: 60, MemoryMiB: 1024, MaxProcesses: 20, MaxFileSizeMiB: 256, MaxTotalFiles: 1000},
	security.TierModerate: {CPUSeconds: 30, MemoryMiB: 512, MaxProcesses: 10, MaxFileSizeMiB: 128, MaxTotalFiles: 500},
	security.TierHigh:     {CPUSeconds: 15, MemoryMiB: 256, MaxProcesses: 5, MaxFileSizeMiB: 64, MaxTotalFiles: 200},
	security.TierCritical: {CPUSeconds: 10, MemoryMiB: 128, MaxProcesses: 3, MaxFileSizeMiB: 16, MaxTotalFiles: 50},
}

// ForTier returns the default Resources for tier, falling back to the
// moderate tier for an unrecognized value so a caller always gets positive
// limits.
func ForTier(tier security.Tier) Resources {
	if r, ok := defaults[tier]; ok {
		return r
	}
	return defaults[security.TierModerate]
}

// WithOverrides returns a copy of r with any positive field in override
// replacing r's value, matching the Execution Context's "overrides possible
// per-call" invariant.
func (r Resources) WithOverrides(override Resources) Resources {
	out := r
	if override.CPUSeconds > 0 {
		out.CPUSeconds = override.CPUSeconds
	}
	if override.MemoryMiB > 0 {
		out.MemoryMiB = override.MemoryMiB
	}
	if override.MaxProcesses > 0 {
		out.MaxProcesses = override.MaxProcesses
	}
	if override.MaxFileSizeMiB > 0 {
		out.MaxFileSizeMiB = override.MaxFileSizeMiB
	}
	if override.MaxTotalFiles > 0 {
		out.MaxTotalFiles = override.MaxTotalFiles
	}
	return out
}

// Halved returns a copy of r with MemoryMiB halved (floor 16), used by the
// Resource recovery strategy in spec §7.
func (r Resources) Halved() Resources {
	out := r
	out.MemoryMiB = out.MemoryMiB / 2
	if out.MemoryMiB < 16 {
		out.MemoryMiB = 16
	}
	return out
}

// DoubledCPUSeconds returns a copy of r with CPUSeconds doubled, capped at
// capSeconds (the Timeout recovery strategy's absolute cap, spec §7 ≈300s).
func (r Resources) DoubledCPUSeconds(capSeconds int) Resources {
	out := r
	out.CPUSeconds *= 2
	if out.CPUSeconds > capSeconds {
		out.CPUSeconds = capSeconds
	}
	return out
}
