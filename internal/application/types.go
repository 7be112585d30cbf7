package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/dbfleet/internal/domain"
)

// GroupRoleRule maps a directory group (by CN) to a local role. Rules are
// evaluated in configuration order and the first matching group wins.
type GroupRoleRule struct {
	Group string
	Role  domain.Role
}

type Config struct {
	DefaultRole          domain.Role
	DefaultDirectoryRole domain.Role
	FailedLoginThreshold int
	LockoutDuration      time.Duration
	SessionTTL           time.Duration
	DirectoryEnabled     bool
	GroupRoleRules       []GroupRoleRule

	BootstrapUsername string
	BootstrapPassword string
}

type AuthRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// AuthResult reports one authentication decision. Identity and Role are only
// populated when Status is AuthSuccess.
type AuthResult struct {
	Status   domain.AuthStatus `json:"status"`
	Method   domain.AuthMethod `json:"method"`
	Username string            `json:"username,omitempty"`
	Role     domain.Role       `json:"role,omitempty"`
}

type LoginResponse struct {
	SessionID string      `json:"session_id"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	Method    string      `json:"auth_method"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type CreateAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type AccountView struct {
	Username       string      `json:"username"`
	Role           domain.Role `json:"role"`
	IsActive       bool        `json:"is_active"`
	FailedAttempts int         `json:"failed_attempts"`
	LockedUntil    *time.Time  `json:"locked_until,omitempty"`
	LastLogin      *time.Time  `json:"last_login,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

type SnapshotRequest struct {
	ServerID uuid.UUID              `json:"server_id"`
	Accounts []SnapshotAccountEntry `json:"accounts"`
}

type SnapshotAccountEntry struct {
	Username        string     `json:"username"`
	Type            string     `json:"type"`
	IsActive        bool       `json:"is_active"`
	LastLogin       *time.Time `json:"last_login,omitempty"`
	PermissionCount int        `json:"permission_count"`
}

type DriftReport struct {
	ServerID     uuid.UUID `json:"server_id"`
	ManualUsers  []string  `json:"manual_users"`
	EventsRaised int       `json:"events_raised"`
}

type Statistics struct {
	ServersScanned       int64 `json:"servers_scanned"`
	TotalServerAccounts  int64 `json:"total_server_accounts"`
	ActiveServerAccounts int64 `json:"active_server_accounts"`
	DistinctIdentities   int64 `json:"distinct_identities"`
	LocalAccounts        int64 `json:"local_accounts"`
	ActiveLocalAccounts  int64 `json:"active_local_accounts"`
	ActiveSessions       int64 `json:"active_sessions"`
	AuthAttempts24h      int64 `json:"auth_attempts_24h"`
	UnresolvedEvents     int64 `json:"unresolved_events"`
}

type StartScanRequest struct {
	ServerID uuid.UUID `json:"server_id"`
}

type CompleteScanRequest struct {
	UsersFound  int `json:"users_found"`
	RolesFound  int `json:"roles_found"`
	TablesFound int `json:"tables_found"`
}
