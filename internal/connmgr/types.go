// Package connmgr implements the Connection Manager (spec §4.7): session
// lifecycle, per-IP caps, idle reaping, health checks, and reconnection.
package connmgr

import (
	"time"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/sberrors"
)

// State is the Connection Info lifecycle state from spec §3.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
	StateClosed       State = "closed"
)

// ConnectionError is one bounded entry in a connection's error_history.
type ConnectionError struct {
	Kind      sberrors.Kind
	Message   string
	Timestamp time.Time
}

// maxErrorHistory bounds error_history at the last 10 entries (spec §3).
const maxErrorHistory = 10

// Info is the Connection Info record from spec §3.
type Info struct {
	ConnectionID      string
	ClientIP          string
	UserAgent         string
	SessionID         string
	ConnectedAt       time.Time
	LastActivity      time.Time
	State             State
	ErrorHistory      []ConnectionError
	ReconnectAttempts int
}

func (i *Info) appendError(e ConnectionError) {
	i.ErrorHistory = append(i.ErrorHistory, e)
	if len(i.ErrorHistory) > maxErrorHistory {
		i.ErrorHistory = i.ErrorHistory[len(i.ErrorHistory)-maxErrorHistory:]
	}
}

// AdmitResult is returned by Admit.
type AdmitResult struct {
	OK     bool
	Reason string
	Kind   sberrors.Kind
}

// DegradationTier is the graceful_degradation_check tier from spec §4.7.
type DegradationTier string

const (
	DegradationNormal        DegradationTier = "normal"
	DegradationModerateLoad  DegradationTier = "moderate_load"
	DegradationHighLoad      DegradationTier = "high_load"
	DegradationHighErrorRate DegradationTier = "high_error_rate"
	DegradationCircuitOpen   DegradationTier = "circuit_open"
)

// Degradation is the graceful_degradation_check result.
type Degradation struct {
	Tier                  DegradationTier
	ConnectionUtilization float64
	ErrorRate             float64
	Recommendations       []string
}
