package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/dbfleet/internal/domain"
)

type sessionView struct {
	SessionID    string    `json:"session_id"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	AuthMethod   string    `json:"auth_method"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
}

func newSessionView(s domain.Session) sessionView {
	return sessionView{
		SessionID:    s.SessionID,
		Username:     s.Username,
		Role:         string(s.Role),
		AuthMethod:   string(s.Method),
		CreatedAt:    s.CreatedAt,
		ExpiresAt:    s.ExpiresAt,
		LastActivity: s.LastActivity,
		IPAddress:    s.IPAddress,
		UserAgent:    s.UserAgent,
	}
}

type attemptView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Method    string    `json:"method"`
	Success   bool      `json:"success"`
	AttemptAt time.Time `json:"attempt_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

func newAttemptView(a domain.AuthAttempt) attemptView {
	return attemptView{
		ID:        a.ID,
		Username:  a.Username,
		Method:    string(a.Method),
		Success:   a.Success,
		AttemptAt: a.AttemptAt,
		IPAddress: a.IPAddress,
		UserAgent: a.UserAgent,
		Detail:    a.Detail,
	}
}

type eventView struct {
	EventID     uuid.UUID  `json:"event_id"`
	ServerID    uuid.UUID  `json:"server_id"`
	EventType   string     `json:"event_type"`
	Severity    string     `json:"severity"`
	Username    string     `json:"username,omitempty"`
	Description string     `json:"description"`
	Resolved    bool       `json:"resolved"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newEventView(e domain.SecurityEvent) eventView {
	return eventView{
		EventID:     e.EventID,
		ServerID:    e.ServerID,
		EventType:   e.EventType,
		Severity:    e.Severity,
		Username:    e.Username,
		Description: e.Description,
		Resolved:    e.Resolved,
		ResolvedAt:  e.ResolvedAt,
		CreatedAt:   e.CreatedAt,
	}
}

type scanView struct {
	ScanID      uuid.UUID  `json:"scan_id"`
	ServerID    uuid.UUID  `json:"server_id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	UsersFound  int        `json:"users_found"`
	RolesFound  int        `json:"roles_found"`
	TablesFound int        `json:"tables_found"`
	Error       string     `json:"error,omitempty"`
}

func newScanView(s domain.ScanRecord) scanView {
	return scanView{
		ScanID:      s.ScanID,
		ServerID:    s.ServerID,
		Status:      string(s.Status),
		StartedAt:   s.StartedAt,
		FinishedAt:  s.FinishedAt,
		UsersFound:  s.UsersFound,
		RolesFound:  s.RolesFound,
		TablesFound: s.TablesFound,
		Error:       s.Error,
	}
}

type identityView struct {
	Username          string      `json:"username"`
	Servers           []uuid.UUID `json:"servers"`
	AppearsOnServers  int         `json:"appears_on_servers"`
	IsActiveSomewhere bool        `json:"is_active_somewhere"`
	TotalPermissions  int         `json:"total_permissions"`
	FirstSeen         time.Time   `json:"first_seen"`
	LastActivity      *time.Time  `json:"last_activity,omitempty"`
}

func newIdentityView(g domain.GlobalIdentity) identityView {
	return identityView{
		Username:          g.Key,
		Servers:           g.Servers,
		AppearsOnServers:  g.AppearsOnServers,
		IsActiveSomewhere: g.IsActiveSomewhere,
		TotalPermissions:  g.TotalPermissions,
		FirstSeen:         g.FirstSeen,
		LastActivity:      g.LastActivity,
	}
}
