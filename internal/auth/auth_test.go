package auth

import "testing"

func TestAuthenticateUnknownKeyIsUnauthorized(t *testing.T) {
	m := NewManager()
	res := m.Authenticate("nope")
	if !res.Unauthorized || res.OK {
		t.Fatalf("expected unauthorized for unknown key, got %+v", res)
	}
}

func TestAuthenticateValidKeySucceeds(t *testing.T) {
	m := NewManager()
	u := AddUser(m, "alice", RoleDeveloper, "key-1", 0)
	res := m.Authenticate(u.APIKey)
	if !res.OK || res.Unauthorized {
		t.Fatalf("expected success, got %+v", res)
	}
}

func TestAuthenticateEnforcesHourlyRateLimit(t *testing.T) {
	m := NewManager()
	u := AddUser(m, "bob", RoleViewer, "key-2", 2)
	first := m.Authenticate(u.APIKey)
	second := m.Authenticate(u.APIKey)
	third := m.Authenticate(u.APIKey)
	if !first.OK || !second.OK {
		t.Fatalf("expected first two requests admitted")
	}
	if !third.RateLimited {
		t.Fatalf("expected third request to be rate limited, got %+v", third)
	}
}

func TestRolePermissionsMatchTable(t *testing.T) {
	admin := User{Role: RoleAdmin}
	developer := User{Role: RoleDeveloper}
	viewer := User{Role: RoleViewer}

	if !admin.Permits(PermManageUsers) {
		t.Fatalf("expected admin to have manage_users permission")
	}
	if developer.Permits(PermManageUsers) {
		t.Fatalf("expected developer to lack manage_users permission")
	}
	if !developer.Permits(PermExecute) {
		t.Fatalf("expected developer to have execute permission")
	}
	if viewer.Permits(PermExecute) {
		t.Fatalf("expected viewer to lack execute permission")
	}
	if !viewer.Permits(PermViewStatus) {
		t.Fatalf("expected viewer to have view_status permission")
	}
}

func TestInactiveUserIsUnauthorized(t *testing.T) {
	m := NewManager()
	u := AddUser(m, "carol", RoleAdmin, "key-3", 0)
	m.mu.Lock()
	m.usersByKey[u.APIKey].Active = false
	m.mu.Unlock()

	res := m.Authenticate(u.APIKey)
	if !res.Unauthorized {
		t.Fatalf("expected inactive user to be unauthorized, got %+v", res)
	}
}
