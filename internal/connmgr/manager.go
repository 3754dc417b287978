package connmgr

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/circuit"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/ratelimit"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/sberrors"
)

// Config bounds the Manager's admission policy (spec §4.7).
type Config struct {
	MaxTotal          int
	MaxPerIP          int
	ConnectionTimeout time.Duration
	ReapInterval      time.Duration
}

// Manager owns the active-connection registry and its secondary by-IP
// index, grounded on
// original_source/src/sandbox/core/connection_manager.py's
// ConnectionManager (admit/remove/record_error/reconnect/degradation
// algorithm) and structurally on
// Aureuma-si/agents/resource-broker and agents/infra-broker's single
// mutex-guarded registry + background reaper pattern.
type Manager struct {
	cfg     Config
	breaker *circuit.Breaker
	limiter *ratelimit.Limiter
	log     zerolog.Logger

	mu          sync.Mutex
	connections map[string]*Info
	byIP        map[string]map[string]bool

	totalCreated int64
	totalErrors  int64

	stopReaper chan struct{}
}

// New constructs a Manager. breaker and limiter may be shared with other
// components. The Manager never calls limiter.IsAllowed; it only evicts the
// limiter's per-connection state on removal. No other package calls
// IsAllowed either, so requests are not checked against the sliding window.
func New(cfg Config, breaker *circuit.Breaker, limiter *ratelimit.Limiter, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		breaker:     breaker,
		limiter:     limiter,
		log:         log,
		connections: map[string]*Info{},
		byIP:        map[string]map[string]bool{},
	}
}

// Admit implements spec §4.7's admit: reject if the circuit breaker is
// Open, or global/per-IP caps are exceeded; otherwise register a Connected
// entry.
func (m *Manager) Admit(connectionID, clientIP, userAgent, sessionID string) AdmitResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.breaker != nil && !m.breaker.Allow() {
		m.recordRejection(connectionID, clientIP, userAgent, sessionID, sberrors.KindNetwork, "circuit breaker open")
		return AdmitResult{OK: false, Reason: "circuit breaker open", Kind: sberrors.KindNetwork}
	}
	if m.cfg.MaxTotal > 0 && len(m.connections) >= m.cfg.MaxTotal {
		m.recordRejection(connectionID, clientIP, userAgent, sessionID, sberrors.KindResource, "global connection limit reached")
		return AdmitResult{OK: false, Reason: "global connection limit reached", Kind: sberrors.KindResource}
	}
	if m.cfg.MaxPerIP > 0 && len(m.byIP[clientIP]) >= m.cfg.MaxPerIP {
		m.recordRejection(connectionID, clientIP, userAgent, sessionID, sberrors.KindResource, "per-IP connection limit reached")
		return AdmitResult{OK: false, Reason: "per-IP connection limit reached", Kind: sberrors.KindResource}
	}

	now := time.Now()
	m.connections[connectionID] = &Info{
		ConnectionID: connectionID,
		ClientIP:     clientIP,
		UserAgent:    userAgent,
		SessionID:    sessionID,
		ConnectedAt:  now,
		LastActivity: now,
		State:        StateConnected,
	}
	if m.byIP[clientIP] == nil {
		m.byIP[clientIP] = map[string]bool{}
	}
	m.byIP[clientIP][connectionID] = true
	m.totalCreated++
	m.recordOperationSuccessLocked()
	return AdmitResult{OK: true}
}

// RecordOperationSuccess feeds a successful operation outcome (an
// execution, a store call, an admission) into the shared circuit breaker,
// independent of any specific connection — spec §4.6's breaker guards the
// operations the Connection Manager, Engine, and Artifact Store perform,
// not just the connection registry itself.
func (m *Manager) RecordOperationSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordOperationSuccessLocked()
}

func (m *Manager) recordOperationSuccessLocked() {
	if m.breaker != nil {
		m.breaker.RecordSuccess()
	}
}

// RecordOperationFailure feeds a failed operation outcome into the shared
// circuit breaker when kind is Internal, matching spec §7's propagation
// policy ("Internal" failures are the ones the breaker counts toward
// failure_threshold; Validation/Security/NotInstalled rejections are
// expected client-input outcomes, not engine/store faults).
func (m *Manager) RecordOperationFailure(kind sberrors.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordOperationFailureLocked(kind)
}

func (m *Manager) recordOperationFailureLocked(kind sberrors.Kind) {
	if m.breaker != nil && kind == sberrors.KindInternal {
		m.breaker.RecordFailure()
	}
}

// recordRejection keeps a Failed-state record for a rejected admission so
// the rejection is visible in diagnostics, per spec §4.7 ("creating the
// entry in Failed state to keep the record"). Caller holds m.mu.
func (m *Manager) recordRejection(connectionID, clientIP, userAgent, sessionID string, kind sberrors.Kind, message string) {
	now := time.Now()
	info := &Info{
		ConnectionID: connectionID,
		ClientIP:     clientIP,
		UserAgent:    userAgent,
		SessionID:    sessionID,
		ConnectedAt:  now,
		LastActivity: now,
		State:        StateFailed,
	}
	info.appendError(ConnectionError{Kind: kind, Message: message, Timestamp: now})
	m.connections[connectionID] = info
	m.totalErrors++
}

// Remove is idempotent: a second call for an already-removed id is a no-op
// returning false (spec §8 round-trip law).
func (m *Manager) Remove(connectionID, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.connections[connectionID]
	if !ok {
		return false
	}
	delete(m.connections, connectionID)
	if ips, ok := m.byIP[info.ClientIP]; ok {
		delete(ips, connectionID)
		if len(ips) == 0 {
			delete(m.byIP, info.ClientIP)
		}
	}
	if m.limiter != nil {
		m.limiter.Evict(connectionID)
	}
	m.log.Info().Str("connection_id", connectionID).Str("reason", reason).
		Dur("duration", time.Since(info.ConnectedAt)).Msg("connection removed")
	return true
}

// UpdateActivity bumps last_activity for connectionID. Returns false if the
// connection is unknown.
func (m *Manager) UpdateActivity(connectionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.connections[connectionID]
	if !ok {
		return false
	}
	info.LastActivity = time.Now()
	return true
}

// RecordError classifies err via sberrors.Classify, appends it to the
// connection's bounded error history, sets state=Failed, and bumps global
// error counters (spec §4.7).
func (m *Manager) RecordError(connectionID string, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.connections[connectionID]
	if !ok {
		return false
	}
	kind := sberrors.Classify(err)
	info.appendError(ConnectionError{Kind: kind, Message: err.Error(), Timestamp: time.Now()})
	info.State = StateFailed
	m.totalErrors++
	m.recordOperationFailureLocked(kind)
	return true
}

// AttemptReconnect is only valid if the connection is Failed. It increments
// reconnect_attempts and retries Admit; on success resets the counter and
// sets Connected (spec §4.7).
func (m *Manager) AttemptReconnect(connectionID, clientIP, userAgent, sessionID string) AdmitResult {
	m.mu.Lock()
	info, ok := m.connections[connectionID]
	if !ok || info.State != StateFailed {
		m.mu.Unlock()
		return AdmitResult{OK: false, Reason: "connection not in Failed state", Kind: sberrors.KindProtocol}
	}
	info.ReconnectAttempts++
	info.State = StateReconnecting
	m.mu.Unlock()

	result := m.Admit(connectionID, clientIP, userAgent, sessionID)
	if result.OK {
		m.mu.Lock()
		if readmitted, ok := m.connections[connectionID]; ok {
			readmitted.ReconnectAttempts = 0
			readmitted.State = StateConnected
		}
		m.mu.Unlock()
	}
	return result
}

// Get returns a copy of a connection's Info.
func (m *Manager) Get(connectionID string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.connections[connectionID]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// CountByIP returns the number of active connections for clientIP.
func (m *Manager) CountByIP(clientIP string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byIP[clientIP])
}

// Total returns the number of active connections.
func (m *Manager) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connections)
}

// GracefulDegradationCheck implements spec §4.7's degradation assessment.
func (m *Manager) GracefulDegradationCheck() Degradation {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := len(m.connections)
	maxTotal := m.cfg.MaxTotal
	if maxTotal <= 0 {
		maxTotal = 1
	}
	utilization := float64(total) / float64(maxTotal)
	errorRate := float64(m.totalErrors) / float64(max64(1, m.totalCreated))

	tier := DegradationNormal
	var recommendations []string

	if utilization > 0.9 {
		tier = DegradationHighLoad
		recommendations = append(recommendations, "Reduce connection acceptance rate")
	} else if utilization > 0.8 {
		tier = DegradationModerateLoad
		recommendations = append(recommendations, "Monitor connection health closely")
	}

	if errorRate > 0.1 {
		tier = DegradationHighErrorRate
		recommendations = append(recommendations, "Enable circuit breaker protection", "Increase error recovery timeouts")
	}

	if m.breaker != nil && m.breaker.Snapshot().State == circuit.Open {
		tier = DegradationCircuitOpen
		recommendations = append(recommendations, "Service temporarily unavailable", "Check upstream service health")
	}

	return Degradation{
		Tier:                  tier,
		ConnectionUtilization: utilization,
		ErrorRate:             errorRate,
		Recommendations:       recommendations,
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
