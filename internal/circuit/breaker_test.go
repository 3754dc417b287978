package circuit

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestOpensAfterFailureThreshold(t *testing.T) {
	b := New(3, time.Minute, zerolog.Nop())
	for i := 0; i < 2; i++ {
		b.RecordFailure()
		if b.Snapshot().State != Closed {
			t.Fatalf("expected breaker to remain closed before threshold, iter %d", i)
		}
	}
	b.RecordFailure()
	if b.Snapshot().State != Open {
		t.Fatalf("expected breaker to open at failure_threshold")
	}
	if b.Allow() {
		t.Fatalf("expected Open breaker to reject calls before recovery_timeout")
	}
}

func TestTransitionsToHalfOpenAfterRecoveryTimeout(t *testing.T) {
	b := New(1, 10*time.Millisecond, zerolog.Nop())
	b.RecordFailure()
	if b.Snapshot().State != Open {
		t.Fatalf("expected Open after 1 failure with threshold 1")
	}
	time.Sleep(15 * time.Millisecond)
	if !b.Allow() {
		t.Fatalf("expected a trial call to be admitted once recovery_timeout elapses")
	}
	if b.Snapshot().State != HalfOpen {
		t.Fatalf("expected state HalfOpen after the trial call is admitted")
	}
}

func TestHalfOpenSuccessCloses(t *testing.T) {
	b := New(1, 10*time.Millisecond, zerolog.Nop())
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	b.Allow()
	b.RecordSuccess()
	if b.Snapshot().State != Closed {
		t.Fatalf("expected HalfOpen success to close the breaker")
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New(1, 10*time.Millisecond, zerolog.Nop())
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	b.Allow()
	b.RecordFailure()
	if b.Snapshot().State != Open {
		t.Fatalf("expected HalfOpen failure to reopen the breaker")
	}
}

func TestOnlyOneTrialCallAdmittedInHalfOpen(t *testing.T) {
	b := New(1, 10*time.Millisecond, zerolog.Nop())
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	if !b.Allow() {
		t.Fatalf("expected first trial call admitted")
	}
	if b.Allow() {
		t.Fatalf("expected a second concurrent call to be rejected while trial is in flight")
	}
}

func TestNeverTransitionsOpenToClosedDirectly(t *testing.T) {
	b := New(1, time.Hour, zerolog.Nop())
	b.RecordFailure()
	if b.Snapshot().State != Open {
		t.Fatalf("expected Open")
	}
	b.RecordSuccess()
	if b.Snapshot().State != Open {
		t.Fatalf("RecordSuccess in Open state must not close the breaker directly, got %s", b.Snapshot().State)
	}
}
