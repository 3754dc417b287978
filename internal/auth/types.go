// Package auth implements the MCP Dispatcher's optional API-key
// authentication and role-based authorization (spec §4.9), grounded on
// original_source/src/sandbox/intelligent/mcp/auth.py's AuthenticationManager
// / AuthorizationManager / User dataclasses.
package auth

import "time"

// Role is one of the three roles spec §4.9 names.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
	RoleViewer    Role = "viewer"
)

// Permission gates one category of MCP tool call.
type Permission string

const (
	PermExecute           Permission = "execute"
	PermManageArtifacts   Permission = "manage_artifacts"
	PermViewArtifacts     Permission = "view_artifacts"
	PermManageConnections Permission = "manage_connections"
	PermViewHistory       Permission = "view_history"
	PermViewStatus        Permission = "view_status"
	PermManageUsers       Permission = "manage_users"
)

// rolePermissions mirrors auth.py's _setup_default_permissions role table,
// remapped from the original's workspace/task-plan permissions onto this
// server's actual tool surface.
var rolePermissions = map[Role]map[Permission]bool{
	RoleAdmin: {
		PermExecute:           true,
		PermManageArtifacts:   true,
		PermViewArtifacts:     true,
		PermManageConnections: true,
		PermViewHistory:       true,
		PermViewStatus:        true,
		PermManageUsers:       true,
	},
	RoleDeveloper: {
		PermExecute:           true,
		PermManageArtifacts:   true,
		PermViewArtifacts:     true,
		PermManageConnections: true,
		PermViewHistory:       true,
		PermViewStatus:        true,
	},
	RoleViewer: {
		PermViewArtifacts: true,
		PermViewHistory:   true,
		PermViewStatus:    true,
	},
}

// User is one API-key holder (spec §4.9's "user store").
type User struct {
	ID        string
	Username  string
	APIKey    string
	Role      Role
	Active    bool
	RateLimit int // requests per hour, 0 means use a package default

	requestCount int
	resetAt      time.Time
}

// Permits reports whether u's role grants perm.
func (u User) Permits(perm Permission) bool {
	return rolePermissions[u.Role][perm]
}

const defaultRateLimitPerHour = 100
