package connmgr

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/circuit"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/ratelimit"
	"github.com/scooter-lacroix/swiss-sandbox-sub000/internal/sberrors"
)

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	b := circuit.New(3, time.Minute, zerolog.Nop())
	l := ratelimit.New(time.Second, 100, 0, 0)
	return New(cfg, b, l, zerolog.Nop())
}

func TestAdmitRejectsOverGlobalCap(t *testing.T) {
	m := newTestManager(t, Config{MaxTotal: 1, MaxPerIP: 10})
	if r := m.Admit("c1", "1.1.1.1", "", ""); !r.OK {
		t.Fatalf("expected first admit to succeed")
	}
	r := m.Admit("c2", "2.2.2.2", "", "")
	if r.OK {
		t.Fatalf("expected second admit to be rejected by global cap")
	}
}

func TestAdmitRejectsOverPerIPCap(t *testing.T) {
	m := newTestManager(t, Config{MaxTotal: 10, MaxPerIP: 1})
	if r := m.Admit("c1", "1.1.1.1", "", ""); !r.OK {
		t.Fatalf("expected first admit from ip to succeed")
	}
	r := m.Admit("c2", "1.1.1.1", "", "")
	if r.OK {
		t.Fatalf("expected second admit from same ip to be rejected by per-IP cap")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	m := newTestManager(t, Config{MaxTotal: 10, MaxPerIP: 10})
	m.Admit("c1", "1.1.1.1", "", "")
	if !m.Remove("c1", "normal_closure") {
		t.Fatalf("expected first remove to succeed")
	}
	if m.Remove("c1", "normal_closure") {
		t.Fatalf("expected second remove to be a no-op returning false")
	}
}

func TestRecordErrorSetsFailedState(t *testing.T) {
	m := newTestManager(t, Config{MaxTotal: 10, MaxPerIP: 10})
	m.Admit("c1", "1.1.1.1", "", "")
	if !m.RecordError("c1", errors.New("connection reset by peer")) {
		t.Fatalf("expected RecordError to find the connection")
	}
	info, ok := m.Get("c1")
	if !ok || info.State != StateFailed {
		t.Fatalf("expected state Failed after RecordError, got %+v ok=%v", info, ok)
	}
}

func TestAttemptReconnectOnlyValidWhenFailed(t *testing.T) {
	m := newTestManager(t, Config{MaxTotal: 10, MaxPerIP: 10})
	m.Admit("c1", "1.1.1.1", "", "")

	result := m.AttemptReconnect("c1", "1.1.1.1", "", "")
	if result.OK {
		t.Fatalf("expected reconnect to be rejected for a connection not in Failed state")
	}

	m.RecordError("c1", errors.New("boom"))
	result = m.AttemptReconnect("c1", "1.1.1.1", "", "")
	if !result.OK {
		t.Fatalf("expected reconnect to succeed from Failed state")
	}
	info, _ := m.Get("c1")
	if info.State != StateConnected {
		t.Fatalf("expected state Connected after successful reconnect, got %s", info.State)
	}
	if info.ReconnectAttempts != 0 {
		t.Fatalf("expected reconnect_attempts reset to 0 after a successful reconnect, got %d", info.ReconnectAttempts)
	}
}

func TestErrorHistoryBoundedAtTen(t *testing.T) {
	m := newTestManager(t, Config{MaxTotal: 10, MaxPerIP: 10})
	m.Admit("c1", "1.1.1.1", "", "")
	for i := 0; i < 15; i++ {
		m.RecordError("c1", errors.New("repeated failure"))
	}
	info, _ := m.Get("c1")
	if len(info.ErrorHistory) != maxErrorHistory {
		t.Fatalf("expected error history capped at %d, got %d", maxErrorHistory, len(info.ErrorHistory))
	}
}

func TestGracefulDegradationReflectsHighLoad(t *testing.T) {
	m := newTestManager(t, Config{MaxTotal: 10, MaxPerIP: 10})
	for i := 0; i < 10; i++ {
		m.Admit(string(rune('a'+i)), "1.1.1.1", "", "")
	}
	d := m.GracefulDegradationCheck()
	if d.Tier != DegradationHighLoad {
		t.Fatalf("expected high_load tier at full utilization, got %s", d.Tier)
	}
}

func TestInternalFailuresOpenBreakerAndBlockAdmit(t *testing.T) {
	m := newTestManager(t, Config{MaxTotal: 10, MaxPerIP: 10})
	m.Admit("c1", "1.1.1.1", "", "")
	for i := 0; i < 3; i++ {
		m.RecordOperationFailure(sberrors.KindInternal)
	}
	r := m.Admit("c2", "2.2.2.2", "", "")
	if r.OK {
		t.Fatalf("expected admit to be rejected once the breaker has tripped open")
	}
	if r.Kind != sberrors.KindNetwork {
		t.Fatalf("expected rejection kind network (breaker open), got %s", r.Kind)
	}
}

func TestNonInternalFailuresDoNotOpenBreaker(t *testing.T) {
	m := newTestManager(t, Config{MaxTotal: 10, MaxPerIP: 10})
	m.Admit("c1", "1.1.1.1", "", "")
	for i := 0; i < 10; i++ {
		m.RecordOperationFailure(sberrors.KindValidation)
	}
	r := m.Admit("c2", "2.2.2.2", "", "")
	if !r.OK {
		t.Fatalf("expected admit to still succeed: validation failures must not trip the breaker")
	}
}

func TestRecordErrorOfInternalKindFeedsBreaker(t *testing.T) {
	m := newTestManager(t, Config{MaxTotal: 10, MaxPerIP: 10})
	m.Admit("c1", "1.1.1.1", "", "")
	for i := 0; i < 3; i++ {
		m.RecordError("c1", errors.New("internal: writing blob: disk full"))
	}
	r := m.Admit("c2", "2.2.2.2", "", "")
	if r.OK {
		t.Fatalf("expected admit to be rejected after 3 internal-classified RecordError calls tripped the breaker")
	}
}

func TestRecordOperationSuccessResetsFailureCount(t *testing.T) {
	m := newTestManager(t, Config{MaxTotal: 10, MaxPerIP: 10})
	m.Admit("c1", "1.1.1.1", "", "")
	m.RecordOperationFailure(sberrors.KindInternal)
	m.RecordOperationFailure(sberrors.KindInternal)
	m.RecordOperationSuccess()
	m.RecordOperationFailure(sberrors.KindInternal)
	r := m.Admit("c2", "2.2.2.2", "", "")
	if !r.OK {
		t.Fatalf("expected admit to succeed: a success should have reset the failure count below threshold")
	}
}

func TestReaperRemovesIdleConnections(t *testing.T) {
	m := newTestManager(t, Config{MaxTotal: 10, MaxPerIP: 10, ConnectionTimeout: 10 * time.Millisecond, ReapInterval: time.Hour})
	m.Admit("c1", "1.1.1.1", "", "")
	time.Sleep(20 * time.Millisecond)
	m.reapOnce()
	if _, ok := m.Get("c1"); ok {
		t.Fatalf("expected idle connection to be reaped")
	}
}
