package security

import "regexp"

// patternRule couples a compiled pattern with a remediation hint, grounded
// on original_source/src/sandbox/core/security.py's dangerous_patterns /
// _get_remediation_suggestion table.
type patternRule struct {
	re        *regexp.Regexp
	kind      string
	remediate string
}

func rule(kind, remediate, pattern string) patternRule {
	return patternRule{re: regexp.MustCompile(`(?i)` + pattern), kind: kind, remediate: remediate}
}

// safePatterns are checked first; a match always allows the command
// regardless of tier (spec §4.1 step 1).
var safePatterns = compileAll([]string{
	`^\s*python3?\s+-c\s`,
	`^\s*python3?\s+[\w./-]+\.py\b`,
	`^\s*pip3?\s+(install|list|show|freeze)\b`,
	`^\s*pip3?\s+install\b`,
	`curl\s+https?://[^|;&]+$`,
	`wget\s+https?://[^|;&]+$`,
	`^\s*git\s+`,
	`^\s*npm\s+`,
	`^\s*node\s+`,
	`^\s*ls\b`,
	`^\s*cat\s+[\w./-]+$`,
	`^\s*grep\s+`,
	`^\s*find\s+\.`,
	`^\s*mkdir\s+`,
	`^\s*touch\s+`,
	`^\s*cp\s+`,
	`^\s*mv\s+`,
	`^\s*rm\s+[^/][^\s]*$`,
	`^\s*ping\s+-c\s+\d+`,
	`^\s*make\b`,
	`^\s*cmake\b`,
	`^\s*gcc\s+`,
	`^\s*g\+\+\s+`,
	`^\s*javac\s+`,
	`^\s*java\s+-jar`,
})

// forbiddenPatterns are grouped by severity. Regardless of the caller's
// current tier, all strictly-more-severe classes are always evaluated
// (spec §4.1 step 2): at TierModerate we still check TierHigh and
// TierCritical patterns.
var forbiddenPatterns = map[Tier][]patternRule{
	TierCritical: {
		rule("recursive_delete_root", "Use 'rm -rf ./directory' to delete specific directories instead of root", `rm\s+-rf\s+/(\s|$)`),
		rule("recursive_delete_all", "Scope deletions to a specific path instead of '*'", `rm\s+-rf\s+\*`),
		rule("forkbomb", "Fork bombs are always blocked", `:\(\)\s*\{\s*:\|\s*:&\s*\}`),
		rule("sudo_rm_rf", "Be very careful with sudo rm -rf; scope it to a specific path", `sudo\s+rm\s+-rf`),
		rule("format_filesystem", "Formatting filesystems is dangerous; ensure you have backups first", `mkfs[.\s]`),
		rule("raw_disk_write", "Direct disk writes are dangerous; double-check device and offset", `dd\s+.*of=/dev/`),
		rule("pipe_to_shell", "Download the script first, review it, then execute it explicitly", `(curl|wget)\s+.*\|\s*(sudo\s+)?(ba)?sh\b`),
		rule("write_device", "Writing directly to a device file is blocked", `>\s*/dev/\w`),
	},
	TierHigh: {
		rule("etc_permission_change", "Use a more restrictive mode such as 0755 or 0644", `chmod\s+777\s+/etc/`),
		rule("etc_ownership_change", "Scope ownership changes away from /etc", `chown\s+\S+\s+/etc/`),
		rule("user_admin", "User administration is blocked in this tier", `use(rdel|radd)\s+`),
		rule("mount_root", "Mounting over / is blocked", `mount\s+.*\s+/\s*$`),
		rule("partition_disk", "Disk partitioning is blocked", `(fdisk|parted)\s+/dev/`),
		rule("firewall_flush", "Flushing all firewall rules is blocked", `iptables\s+-F`),
		rule("ssh_service_stop", "Stopping the ssh service is blocked", `systemctl\s+(stop|disable)\s+ssh`),
		rule("sudo_systemctl", "sudo systemctl changes are blocked in this tier", `sudo\s+systemctl`),
	},
	TierModerate: {
		rule("immediate_shutdown", "Schedule shutdown with a delay, e.g. 'shutdown +5'", `(shutdown|reboot|halt|poweroff)\s+now\b`),
		rule("init_shutdown", "Use the service manager instead of init 0/6", `init\s+[06]\b`),
		rule("force_kill_all", "Try killing by name before using -9 on everything", `killall\s+-9`),
		rule("force_kill_by_name", "Try a plain pkill before -9", `pkill\s+-9`),
	},
}

// conditionalPatterns are evaluated only when the caller's current tier is
// high or critical (spec §4.1 step 3).
var conditionalPatterns = []patternRule{
	rule("netcat_listen", "Network listeners are restricted at this tier", `nc\s+-l`),
	rule("ssh_connection", "Outbound SSH is restricted at this tier", `ssh\s+\S+@`),
	rule("scp_transfer", "Remote file transfer is restricted at this tier", `scp\s+\S+@`),
	rule("rsync_remote", "Remote rsync is restricted at this tier", `rsync\s+\S+@`),
	rule("network_scan", "Network scanning is restricted at this tier", `nmap\s+`),
}

// pythonEscapePatterns block direct interpreter-escape constructs in Python
// source bodies (spec §4.1's Python-specific additions): synthesizing
// os-level system calls, eval/exec of built strings, compiling arbitrary
// source, reflective globals/locals access, and opening absolute system
// paths.
var pythonEscapePatterns = []patternRule{
	rule("os_system_call", "Avoid constructing shell invocations through os.system/os.popen", `os\.(system|popen|exec\w*)\s*\(`),
	rule("subprocess_shell", "Avoid subprocess calls with shell=True", `subprocess\.\w+\([^)]*shell\s*=\s*True`),
	rule("dynamic_eval", "Avoid eval()/exec() of dynamically built strings", `\b(eval|exec)\s*\(`),
	rule("dynamic_compile", "Avoid compile() of arbitrary source", `\bcompile\s*\(`),
	rule("reflective_globals", "Avoid reflective access to globals()/locals()", `\b(globals|locals)\s*\(\s*\)`),
	rule("absolute_path_open", "Open workspace-relative paths instead of absolute system paths", `open\s*\(\s*["']/(etc|root|boot|sys|proc|dev)/`),
	rule("ctypes_escape", "Avoid ctypes-based syscall access", `\bctypes\.`),
	rule("import_introspection", "Avoid __import__ based dynamic module loading", `__import__\s*\(`),
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// severityOrder lists forbidden-pattern buckets from strictest to most
// permissive, matching "critical > high > medium" in spec §4.1.
var severityOrder = []Tier{TierCritical, TierHigh, TierModerate}
