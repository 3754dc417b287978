// Package health implements the Health Monitor (spec §4.8): periodic
// per-component checks aggregated to an overall status, with a ring history.
package health

import "time"

// Status is a Component Health's severity level (spec §3).
type Status string

const (
	StatusHealthy   Status = "Healthy"
	StatusWarning   Status = "Warning"
	StatusCritical  Status = "Critical"
	StatusUnhealthy Status = "Unhealthy"
)

// ComponentHealth is one named component's check result (spec §4.8).
type ComponentHealth struct {
	Name     string
	Status   Status
	Message  string
	Metrics  map[string]float64
	Warnings []string
	Errors   []string
}

// Checker produces a ComponentHealth on demand.
type Checker func() ComponentHealth

// Snapshot is the Health Snapshot record from spec §3.
type Snapshot struct {
	TakenAt    time.Time
	Overall    Status
	Components map[string]ComponentHealth
	Summary    string
}
