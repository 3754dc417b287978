package ratelimit

import (
	"testing"
	"time"
)

func TestIsAllowedAdmitsUpToMax(t *testing.T) {
	l := New(time.Second, 3, 0, 0)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if d := l.IsAllowed("c1", now); !d.Allowed {
			t.Fatalf("expected request %d to be admitted", i)
		}
	}
	if d := l.IsAllowed("c1", now); d.Allowed {
		t.Fatalf("expected 4th request within the window to be denied")
	}
}

func TestIsAllowedSlidesWindowForward(t *testing.T) {
	l := New(time.Second, 1, 0, 0)
	now := time.Now()
	if d := l.IsAllowed("c1", now); !d.Allowed {
		t.Fatalf("expected first request to be admitted")
	}
	if d := l.IsAllowed("c1", now.Add(500*time.Millisecond)); d.Allowed {
		t.Fatalf("expected request within window to be denied")
	}
	if d := l.IsAllowed("c1", now.Add(1001*time.Millisecond)); !d.Allowed {
		t.Fatalf("expected request after window to slide forward and be admitted")
	}
}

func TestRetryAfterIsPositiveWhenDenied(t *testing.T) {
	l := New(time.Second, 1, 0, 0)
	now := time.Now()
	l.IsAllowed("c1", now)
	d := l.IsAllowed("c1", now.Add(200*time.Millisecond))
	if d.Allowed {
		t.Fatalf("expected denial")
	}
	if d.RetryAfter <= 0 {
		t.Fatalf("expected a positive retry-after, got %v", d.RetryAfter)
	}
}

func TestBurstLimitAppliesIndependently(t *testing.T) {
	l := New(time.Minute, 100, 100*time.Millisecond, 2)
	now := time.Now()
	if d := l.IsAllowed("c1", now); !d.Allowed {
		t.Fatalf("expected request 1 to be admitted")
	}
	if d := l.IsAllowed("c1", now); !d.Allowed {
		t.Fatalf("expected request 2 to be admitted")
	}
	if d := l.IsAllowed("c1", now); d.Allowed {
		t.Fatalf("expected burst limit to deny the 3rd rapid request")
	}
}

func TestEvictRemovesConnectionState(t *testing.T) {
	l := New(time.Second, 1, 0, 0)
	now := time.Now()
	l.IsAllowed("c1", now)
	l.Evict("c1")
	if l.TrackedConnections() != 0 {
		t.Fatalf("expected no tracked connections after evict")
	}
	if d := l.IsAllowed("c1", now); !d.Allowed {
		t.Fatalf("expected a fresh window after evict")
	}
}

func TestSeparateConnectionsHaveIndependentWindows(t *testing.T) {
	l := New(time.Second, 1, 0, 0)
	now := time.Now()
	if d := l.IsAllowed("a", now); !d.Allowed {
		t.Fatalf("expected connection a to be admitted")
	}
	if d := l.IsAllowed("b", now); !d.Allowed {
		t.Fatalf("expected connection b to be admitted independently of a")
	}
}
