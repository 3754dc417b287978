package limits

import "os/exec"

// Applicator configures a child process so it cannot exceed the given
// Resources. On platforms lacking the necessary OS primitives it enforces
// nothing and says so in Applied.Warning; the Execution Engine's wallclock
// deadline is then the only bound, as the Engine does not sample memory.
type Applicator struct{}

func NewApplicator() *Applicator { return &Applicator{} }

// Applied describes what an Apply call actually managed to enforce, so the
// Engine can log/report the gap between requested and enforced limits.
type Applied struct {
	CPUEnforced     bool
	MemoryEnforced  bool
	ProcsEnforced   bool
	FileSizeEnforced bool
	Warning         string
}

// Apply must be called after cmd.Start() — the PID it needs to target only
// exists once the child is running. It is safe to call with a nil cmd.Process
// (nothing is enforced and an Applied carrying only a Warning is returned).
func (a *Applicator) Apply(cmd *exec.Cmd, r Resources) Applied {
	if cmd == nil || cmd.Process == nil {
		return Applied{Warning: "process not started"}
	}
	return applyPlatform(cmd.Process.Pid, r)
}
