package postgres

import (
	"time"

	"github.com/google/uuid"
)

type accountModel struct {
	Username       string     `gorm:"column:username;primaryKey"`
	PasswordHash   string     `gorm:"column:password_hash"`
	PasswordSalt   string     `gorm:"column:password_salt"`
	Role           string     `gorm:"column:role"`
	FailedAttempts int        `gorm:"column:failed_attempts"`
	LockedUntil    *time.Time `gorm:"column:locked_until"`
	LastLogin      *time.Time `gorm:"column:last_login"`
	IsActive       bool       `gorm:"column:is_active"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (accountModel) TableName() string { return "local_accounts" }

type sessionModel struct {
	SessionID    string    `gorm:"column:session_id;primaryKey"`
	Username     string    `gorm:"column:username"`
	Role         string    `gorm:"column:role"`
	AuthMethod   string    `gorm:"column:auth_method"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	ExpiresAt    time.Time `gorm:"column:expires_at"`
	LastActivity time.Time `gorm:"column:last_activity"`
	IPAddress    *string   `gorm:"column:ip_address"`
	UserAgent    string    `gorm:"column:user_agent"`
}

func (sessionModel) TableName() string { return "sessions" }

type authAttemptModel struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Username  string    `gorm:"column:username"`
	Method    string    `gorm:"column:method"`
	Success   bool      `gorm:"column:success"`
	AttemptAt time.Time `gorm:"column:attempt_at"`
	IPAddress *string   `gorm:"column:ip_address"`
	UserAgent string    `gorm:"column:user_agent"`
	Detail    string    `gorm:"column:detail"`
}

func (authAttemptModel) TableName() string { return "auth_attempts" }

type securityEventModel struct {
	EventID     uuid.UUID  `gorm:"column:event_id;type:uuid;default:gen_random_uuid();primaryKey"`
	ServerID    uuid.UUID  `gorm:"column:server_id;type:uuid"`
	EventType   string     `gorm:"column:event_type"`
	Severity    string     `gorm:"column:severity"`
	Username    string     `gorm:"column:username"`
	Description string     `gorm:"column:description"`
	Resolved    bool       `gorm:"column:resolved"`
	ResolvedAt  *time.Time `gorm:"column:resolved_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
}

func (securityEventModel) TableName() string { return "security_events" }

type serverAccountModel struct {
	ID                 int64      `gorm:"column:id;primaryKey"`
	ServerID           uuid.UUID  `gorm:"column:server_id;type:uuid"`
	Username           string     `gorm:"column:username"`
	NormalizedUsername string     `gorm:"column:normalized_username"`
	UserType           string     `gorm:"column:user_type"`
	IsActive           bool       `gorm:"column:is_active"`
	LastLogin          *time.Time `gorm:"column:last_login"`
	PermissionCount    int        `gorm:"column:permission_count"`
	DiscoveredAt       time.Time  `gorm:"column:discovered_at"`
}

func (serverAccountModel) TableName() string { return "server_accounts" }

type scanModel struct {
	ScanID       uuid.UUID  `gorm:"column:scan_id;type:uuid;primaryKey"`
	ServerID     uuid.UUID  `gorm:"column:server_id;type:uuid"`
	Status       string     `gorm:"column:status"`
	StartedAt    time.Time  `gorm:"column:started_at"`
	FinishedAt   *time.Time `gorm:"column:finished_at"`
	UsersFound   int        `gorm:"column:users_found"`
	RolesFound   int        `gorm:"column:roles_found"`
	TablesFound  int        `gorm:"column:tables_found"`
	ErrorMessage string     `gorm:"column:error_message"`
}

func (scanModel) TableName() string { return "scans" }
