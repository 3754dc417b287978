//go:build linux

package limits

import "golang.org/x/sys/unix"

// applyPlatform enforces Resources on an already-running child via
// Linux's prlimit(2), exposed by golang.org/x/sys/unix as unix.Prlimit.
// Unlike setrlimit(2), prlimit can target a different process (the child,
// by pid) from the parent without requiring a pre-exec hook that Go's
// exec package does not expose.
func applyPlatform(pid int, r Resources) Applied {
	applied := Applied{}

	cpu := &unix.Rlimit{Cur: uint64(r.CPUSeconds), Max: uint64(r.CPUSeconds)}
	if err := unix.Prlimit(pid, unix.RLIMIT_CPU, cpu, nil); err == nil {
		applied.CPUEnforced = true
	}

	memBytes := uint64(r.MemoryMiB) * 1024 * 1024
	mem := &unix.Rlimit{Cur: memBytes, Max: memBytes}
	if err := unix.Prlimit(pid, unix.RLIMIT_AS, mem, nil); err == nil {
		applied.MemoryEnforced = true
	}

	procs := &unix.Rlimit{Cur: uint64(r.MaxProcesses), Max: uint64(r.MaxProcesses)}
	if err := unix.Prlimit(pid, unix.RLIMIT_NPROC, procs, nil); err == nil {
		applied.ProcsEnforced = true
	}

	fsizeBytes := uint64(r.MaxFileSizeMiB) * 1024 * 1024
	fsize := &unix.Rlimit{Cur: fsizeBytes, Max: fsizeBytes}
	if err := unix.Prlimit(pid, unix.RLIMIT_FSIZE, fsize, nil); err == nil {
		applied.FileSizeEnforced = true
	}

	if !applied.CPUEnforced || !applied.MemoryEnforced || !applied.ProcsEnforced || !applied.FileSizeEnforced {
		applied.Warning = "one or more rlimits could not be applied; falling back to wallclock deadline for the rest"
	}
	return applied
}
