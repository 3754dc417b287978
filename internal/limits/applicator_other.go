//go:build !linux

package limits

// applyPlatform is a no-op on non-Linux platforms: there is no portable
// equivalent of prlimit(2) for targeting an already-running child process
// from Go without a pre-exec hook. It enforces nothing and reports that in
// Applied.Warning; the local backend discards the returned Applied, so the
// Execution Engine's wallclock deadline is the only bound here.
func applyPlatform(pid int, r Resources) Applied {
	return Applied{Warning: "resource limit enforcement is not implemented on this platform; relying on wallclock deadline"}
}
