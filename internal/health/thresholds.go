package health

// Thresholds carries the configurable alert thresholds from spec §4.8's
// table, defaulting to the spec's own numbers.
type Thresholds struct {
	CPUWarnPct                float64
	CPUCriticalPct            float64
	MemoryWarnPct             float64
	MemoryCriticalPct         float64
	DiskWarnPct               float64
	DiskCriticalPct           float64
	DiskUnhealthyPct          float64
	ErrorRecoveryWarnRate     float64
	ErrorRecoveryCriticalRate float64
	SuccessRateWarn           float64
	SuccessRateCritical       float64
	AvgDurationWarnMS         float64
	AvgDurationCriticalMS     float64
}

// DefaultThresholds matches spec §4.8's table exactly.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUWarnPct:                80,
		CPUCriticalPct:            95,
		MemoryWarnPct:             80,
		MemoryCriticalPct:         95,
		DiskWarnPct:               85,
		DiskCriticalPct:           95,
		DiskUnhealthyPct:          98,
		ErrorRecoveryWarnRate:     0.7,
		ErrorRecoveryCriticalRate: 0.5,
		SuccessRateWarn:           0.9,
		SuccessRateCritical:       0.7,
		AvgDurationWarnMS:         3000,
		AvgDurationCriticalMS:     10000,
	}
}

// classifyHighIsBad maps a usage percentage to a Status where higher is
// worse (CPU/memory/disk).
func classifyHighIsBad(value, warn, critical float64) Status {
	switch {
	case value >= critical:
		return StatusCritical
	case value >= warn:
		return StatusWarning
	default:
		return StatusHealthy
	}
}

// classifyLowIsBad maps a rate to a Status where lower is worse (error
// recovery rate, operation success rate).
func classifyLowIsBad(value, warn, critical float64) Status {
	switch {
	case value < critical:
		return StatusCritical
	case value < warn:
		return StatusWarning
	default:
		return StatusHealthy
	}
}
