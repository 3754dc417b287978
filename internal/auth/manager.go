package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager owns the user store and per-user hourly rate-limit counters,
// grounded on auth.py's AuthenticationManager.authenticate /
// _check_rate_limit. Unlike the Python original it is not persisted to
// disk — users are provisioned in-process via AddUser (a config-loaded
// deployment would call AddUser for each configured entry at startup).
type Manager struct {
	mu         sync.Mutex
	usersByKey map[string]*User
}

// NewManager returns an empty Manager. Call AddUser to provision accounts.
// Authenticate returns a zero AuthResult for an empty key and reports any
// key it does not know as Unauthorized, so with none provisioned every
// non-empty key is rejected.
func NewManager() *Manager {
	return &Manager{usersByKey: map[string]*User{}}
}

// AddUser registers a user under a freshly generated or caller-supplied API
// key and returns the stored record.
func AddUser(m *Manager, username string, role Role, apiKey string, rateLimit int) User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if apiKey == "" {
		apiKey = uuid.NewString()
	}
	if rateLimit <= 0 {
		rateLimit = defaultRateLimitPerHour
	}
	u := &User{
		ID:        uuid.NewString(),
		Username:  username,
		APIKey:    apiKey,
		Role:      role,
		Active:    true,
		RateLimit: rateLimit,
		resetAt:   time.Now().Add(time.Hour),
	}
	m.usersByKey[apiKey] = u
	return *u
}

// AuthResult is the outcome of Authenticate.
type AuthResult struct {
	User         User
	OK           bool
	RateLimited  bool
	Unauthorized bool
}

// Authenticate validates apiKey and enforces the hourly per-user request
// counter, matching auth.py's reset-on-elapsed-hour behavior exactly.
func (m *Manager) Authenticate(apiKey string) AuthResult {
	if apiKey == "" {
		return AuthResult{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.usersByKey[apiKey]
	if !ok || !u.Active {
		return AuthResult{Unauthorized: true}
	}

	now := time.Now()
	if !now.Before(u.resetAt) {
		u.requestCount = 0
		u.resetAt = now.Add(time.Hour)
	}
	if u.requestCount >= u.RateLimit {
		return AuthResult{User: *u, RateLimited: true}
	}
	u.requestCount++
	return AuthResult{User: *u, OK: true}
}

// Authorize reports whether user carries perm, mirroring
// AuthorizationManager.authorize's single permission-set lookup.
func Authorize(user User, perm Permission) bool {
	return user.Permits(perm)
}
