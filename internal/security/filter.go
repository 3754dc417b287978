// Package security implements the Command Filter and Input Validator
// (spec §4.1), grounded on original_source/src/sandbox/core/security.py's
// CommandFilter: a layered whitelist-first, then tiered-blacklist, then
// conditional-restriction classifier.
package security

import (
	"fmt"
	"time"
)

// Filter classifies shell commands and Python source bodies against the
// tier-specific pattern sets.
type Filter struct{}

// NewFilter constructs a Filter. The pattern tables are package-level
// (compiled once at init) since they carry no per-instance state.
func NewFilter() *Filter {
	return &Filter{}
}

// CheckCommand classifies a shell command string under the given tier.
func (f *Filter) CheckCommand(command string, tier Tier) (bool, *Violation) {
	tier = normalize(tier)

	for _, re := range safePatterns {
		if re.MatchString(command) {
			return true, nil
		}
	}

	if v := matchForbidden(command, forbiddenPatterns); v != nil {
		return false, v
	}

	if tier == TierHigh || tier == TierCritical {
		for _, r := range conditionalPatterns {
			if r.re.MatchString(command) {
				return false, &Violation{
					Tier:            tier,
					Kind:            r.kind,
					Message:         fmt.Sprintf("command restricted in %s security mode", tier),
					Input:           command,
					Timestamp:       time.Now(),
					RemediationHint: r.remediate,
				}
			}
		}
	}

	return true, nil
}

// CheckPython classifies a Python source body under the given tier. Safe
// Python usage (imports, arithmetic, standard I/O to workspace-relative
// paths) is unimpeded: only the interpreter-escape pattern set is checked,
// never the shell command tables.
func (f *Filter) CheckPython(source string, tier Tier) (bool, *Violation) {
	tier = normalize(tier)
	for _, r := range pythonEscapePatterns {
		if r.re.MatchString(source) {
			return false, &Violation{
				Tier:            TierCritical,
				Kind:            r.kind,
				Message:         "source blocked: interpreter-escape pattern detected",
				Input:           source,
				Timestamp:       time.Now(),
				RemediationHint: r.remediate,
			}
		}
	}
	return true, nil
}

// matchForbidden evaluates every severity bucket at or above the command's
// own tier is irrelevant here: spec §4.1 step 2 says "regardless of current
// tier, all strictly-more-severe classes are always evaluated" — in
// practice this means every forbidden bucket is always checked, since
// critical/high/moderate all apply unconditionally; only the conditional
// set is tier-gated.
func matchForbidden(command string, table map[Tier][]patternRule) *Violation {
	for _, tier := range severityOrder {
		for _, r := range table[tier] {
			if r.re.MatchString(command) {
				return &Violation{
					Tier:            tier,
					Kind:            r.kind,
					Message:         "command blocked due to security policy",
					Input:           command,
					Timestamp:       time.Now(),
					RemediationHint: r.remediate,
				}
			}
		}
	}
	return nil
}
