package health

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/engine"
)

const (
	historyCap    = 1000
	historyTrimTo = 500
)

// Monitor runs periodic per-component health checks and aggregates them to
// an overall Status, grounded on
// original_source/src/sandbox/core/health_monitor.py's HealthMonitor
// (named checker map, get_overall_health aggregation rule, history ring).
// CPU/memory/disk sampling uses shirou/gopsutil/v4, the pack's standard
// system-metrics library (rcourtman-Pulse).
type Monitor struct {
	thresholds Thresholds
	eng        *engine.Engine
	startedAt  time.Time
	log        zerolog.Logger
	diskPath   string

	mu      sync.Mutex
	history []Snapshot
}

// New constructs a Monitor. eng may be nil if the error/performance
// checkers should report Healthy with no data (useful for tests).
func New(thresholds Thresholds, eng *engine.Engine, diskPath string, log zerolog.Logger) *Monitor {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Monitor{thresholds: thresholds, eng: eng, diskPath: diskPath, startedAt: time.Now(), log: log}
}

// checkers returns the named component → Checker map (spec §4.8: system,
// memory, disk, cpu, errors, performance).
func (m *Monitor) checkers() map[string]Checker {
	return map[string]Checker{
		"system":      m.checkSystem,
		"memory":      m.checkMemory,
		"disk":        m.checkDisk,
		"cpu":         m.checkCPU,
		"errors":      m.checkErrors,
		"performance": m.checkPerformance,
	}
}

// Check runs every checker and aggregates to an overall Status per spec
// §4.8's table: all Healthy → Healthy; any Warning with no
// Critical/Unhealthy → Warning; any Critical/Unhealthy → Unhealthy.
func (m *Monitor) Check() Snapshot {
	components := map[string]ComponentHealth{}
	overall := StatusHealthy

	for name, checker := range m.checkers() {
		ch := m.safeCheck(name, checker)
		components[name] = ch
		switch ch.Status {
		case StatusCritical, StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusWarning:
			if overall == StatusHealthy {
				overall = StatusWarning
			}
		}
	}

	snapshot := Snapshot{
		TakenAt:    time.Now(),
		Overall:    overall,
		Components: components,
		Summary:    summarize(overall, components),
	}
	m.record(snapshot)
	return snapshot
}

func (m *Monitor) safeCheck(name string, checker Checker) (result ComponentHealth) {
	defer func() {
		if r := recover(); r != nil {
			result = ComponentHealth{
				Name:    name,
				Status:  StatusCritical,
				Message: fmt.Sprintf("health check panicked: %v", r),
				Errors:  []string{fmt.Sprintf("%v", r)},
			}
		}
	}()
	return checker()
}

func summarize(overall Status, components map[string]ComponentHealth) string {
	if overall == StatusHealthy {
		return "all components healthy"
	}
	var degraded []string
	for name, ch := range components {
		if ch.Status != StatusHealthy {
			degraded = append(degraded, fmt.Sprintf("%s:%s", name, ch.Status))
		}
	}
	return fmt.Sprintf("degraded components: %v", degraded)
}

func (m *Monitor) record(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, s)
	if len(m.history) > historyCap {
		m.history = append([]Snapshot(nil), m.history[len(m.history)-historyTrimTo:]...)
	}
}

// History returns up to n most-recent snapshots, newest last.
func (m *Monitor) History(n int) []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.history) {
		n = len(m.history)
	}
	out := make([]Snapshot, n)
	copy(out, m.history[len(m.history)-n:])
	return out
}

// StartMonitoring launches a background goroutine that calls Check every
// interval (spec §4.8 default 60s). Call the returned stop function to
// terminate it.
func (m *Monitor) StartMonitoring(interval time.Duration) (stop func()) {
	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Check()
			case <-stopCh:
				return
			}
		}
	}()
	return func() { close(stopCh) }
}

func (m *Monitor) checkSystem() ComponentHealth {
	uptime := time.Since(m.startedAt).Seconds()
	return ComponentHealth{
		Name:    "system",
		Status:  StatusHealthy,
		Message: "system operating normally",
		Metrics: map[string]float64{"uptime_seconds": uptime},
	}
}

func (m *Monitor) checkMemory() ComponentHealth {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return ComponentHealth{Name: "memory", Status: StatusCritical, Message: err.Error(), Errors: []string{err.Error()}}
	}
	status := classifyHighIsBad(vm.UsedPercent, m.thresholds.MemoryWarnPct, m.thresholds.MemoryCriticalPct)
	ch := ComponentHealth{
		Name:    "memory",
		Status:  status,
		Message: fmt.Sprintf("memory usage %.1f%%", vm.UsedPercent),
		Metrics: map[string]float64{"used_percent": vm.UsedPercent, "available_bytes": float64(vm.Available)},
	}
	if status != StatusHealthy {
		ch.Warnings = []string{ch.Message}
	}
	return ch
}

func (m *Monitor) checkDisk() ComponentHealth {
	usage, err := disk.Usage(m.diskPath)
	if err != nil {
		return ComponentHealth{Name: "disk", Status: StatusCritical, Message: err.Error(), Errors: []string{err.Error()}}
	}
	var status Status
	switch {
	case usage.UsedPercent >= m.thresholds.DiskUnhealthyPct:
		status = StatusUnhealthy
	case usage.UsedPercent >= m.thresholds.DiskCriticalPct:
		status = StatusCritical
	case usage.UsedPercent >= m.thresholds.DiskWarnPct:
		status = StatusWarning
	default:
		status = StatusHealthy
	}
	ch := ComponentHealth{
		Name:    "disk",
		Status:  status,
		Message: fmt.Sprintf("disk usage %.1f%% at %s", usage.UsedPercent, m.diskPath),
		Metrics: map[string]float64{"used_percent": usage.UsedPercent, "free_bytes": float64(usage.Free)},
	}
	if status != StatusHealthy {
		ch.Warnings = []string{ch.Message}
	}
	return ch
}

func (m *Monitor) checkCPU() ComponentHealth {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		msg := "cpu sampling unavailable"
		if err != nil {
			msg = err.Error()
		}
		return ComponentHealth{Name: "cpu", Status: StatusWarning, Message: msg, Warnings: []string{msg}}
	}
	usage := percents[0]
	status := classifyHighIsBad(usage, m.thresholds.CPUWarnPct, m.thresholds.CPUCriticalPct)
	ch := ComponentHealth{
		Name:    "cpu",
		Status:  status,
		Message: fmt.Sprintf("cpu usage %.1f%%", usage),
		Metrics: map[string]float64{"usage_percent": usage},
	}
	if status != StatusHealthy {
		ch.Warnings = []string{ch.Message}
	}
	return ch
}

func (m *Monitor) checkErrors() ComponentHealth {
	if m.eng == nil {
		return ComponentHealth{Name: "errors", Status: StatusHealthy, Message: "no execution data yet"}
	}
	stats := m.eng.Stats()
	if stats.Total == 0 {
		return ComponentHealth{Name: "errors", Status: StatusHealthy, Message: "no executions recorded yet"}
	}
	recoveryRate := float64(stats.Successful) / float64(stats.Total)
	status := classifyLowIsBad(recoveryRate, m.thresholds.ErrorRecoveryWarnRate, m.thresholds.ErrorRecoveryCriticalRate)
	ch := ComponentHealth{
		Name:    "errors",
		Status:  status,
		Message: fmt.Sprintf("recovery rate %.2f over %d executions", recoveryRate, stats.Total),
		Metrics: map[string]float64{"recovery_rate": recoveryRate, "total_executions": float64(stats.Total)},
	}
	if status != StatusHealthy {
		ch.Warnings = []string{ch.Message}
	}
	return ch
}

func (m *Monitor) checkPerformance() ComponentHealth {
	if m.eng == nil {
		return ComponentHealth{Name: "performance", Status: StatusHealthy, Message: "no execution data yet"}
	}
	stats := m.eng.Stats()
	if stats.Total == 0 {
		return ComponentHealth{Name: "performance", Status: StatusHealthy, Message: "no executions recorded yet"}
	}
	successRate := float64(stats.Successful) / float64(stats.Total)
	status := classifyLowIsBad(successRate, m.thresholds.SuccessRateWarn, m.thresholds.SuccessRateCritical)
	ch := ComponentHealth{
		Name:    "performance",
		Status:  status,
		Message: fmt.Sprintf("success rate %.2f", successRate),
		Metrics: map[string]float64{"success_rate": successRate},
	}
	if status != StatusHealthy {
		ch.Warnings = []string{ch.Message}
	}
	return ch
}
