package postgres

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/viralforge/dbfleet/internal/domain"
)

func toDomainAccount(row accountModel) domain.Account {
	return domain.Account{
		Username:       row.Username,
		PasswordHash:   row.PasswordHash,
		PasswordSalt:   row.PasswordSalt,
		Role:           domain.Role(row.Role),
		FailedAttempts: row.FailedAttempts,
		LockedUntil:    row.LockedUntil,
		LastLogin:      row.LastLogin,
		IsActive:       row.IsActive,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func toDomainSession(row sessionModel) domain.Session {
	ip := ""
	if row.IPAddress != nil {
		ip = *row.IPAddress
	}
	return domain.Session{
		SessionID:    row.SessionID,
		Username:     row.Username,
		Role:         domain.Role(row.Role),
		Method:       domain.AuthMethod(row.AuthMethod),
		CreatedAt:    row.CreatedAt,
		ExpiresAt:    row.ExpiresAt,
		LastActivity: row.LastActivity,
		IPAddress:    ip,
		UserAgent:    row.UserAgent,
	}
}

func toDomainAttempt(row authAttemptModel) domain.AuthAttempt {
	ip := ""
	if row.IPAddress != nil {
		ip = *row.IPAddress
	}
	return domain.AuthAttempt{
		ID:        row.ID,
		Username:  row.Username,
		Method:    domain.AuthMethod(row.Method),
		Success:   row.Success,
		AttemptAt: row.AttemptAt,
		IPAddress: ip,
		UserAgent: row.UserAgent,
		Detail:    row.Detail,
	}
}

func toDomainEvent(row securityEventModel) domain.SecurityEvent {
	return domain.SecurityEvent{
		EventID:     row.EventID,
		ServerID:    row.ServerID,
		EventType:   row.EventType,
		Severity:    row.Severity,
		Username:    row.Username,
		Description: row.Description,
		Resolved:    row.Resolved,
		ResolvedAt:  row.ResolvedAt,
		CreatedAt:   row.CreatedAt,
	}
}

func toDomainServerAccount(row serverAccountModel) domain.ServerAccount {
	return domain.ServerAccount{
		ServerID:        row.ServerID,
		Username:        row.Username,
		Type:            row.UserType,
		IsActive:        row.IsActive,
		LastLogin:       row.LastLogin,
		PermissionCount: row.PermissionCount,
		DiscoveredAt:    row.DiscoveredAt,
	}
}

func toDomainScan(row scanModel) domain.ScanRecord {
	return domain.ScanRecord{
		ScanID:      row.ScanID,
		ServerID:    row.ServerID,
		Status:      domain.ScanStatus(row.Status),
		StartedAt:   row.StartedAt,
		FinishedAt:  row.FinishedAt,
		UsersFound:  row.UsersFound,
		RolesFound:  row.RolesFound,
		TablesFound: row.TablesFound,
		Error:       row.ErrorMessage,
	}
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
