package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/viralforge/dbfleet/internal/domain"
	"github.com/viralforge/dbfleet/internal/ports"
)

type sessionRepository struct {
	db *gorm.DB
}

func (r *sessionRepository) Create(ctx context.Context, params ports.SessionCreateParams) (domain.Session, error) {
	rec := sessionModel{
		SessionID:    params.SessionID,
		Username:     params.Username,
		Role:         string(params.Role),
		AuthMethod:   string(params.Method),
		CreatedAt:    params.CreatedAt,
		ExpiresAt:    params.ExpiresAt,
		LastActivity: params.LastActivity,
		IPAddress:    nullableString(params.IPAddress),
		UserAgent:    params.UserAgent,
	}
	err := withRetry(func() error {
		if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	return toDomainSession(rec), nil
}

func (r *sessionRepository) GetByID(ctx context.Context, sessionID string) (domain.Session, error) {
	var rec sessionModel
	err := withRetry(func() error {
		if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrSessionNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	return toDomainSession(rec), nil
}

func (r *sessionRepository) TouchActivity(ctx context.Context, sessionID string, touchedAt time.Time) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).
			Model(&sessionModel{}).
			Where("session_id = ?", sessionID).
			Update("last_activity", touchedAt).Error
	})
}

// Delete is idempotent: removing an absent session succeeds.
func (r *sessionRepository) Delete(ctx context.Context, sessionID string) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("session_id = ?", sessionID).
			Delete(&sessionModel{}).Error
	})
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	err := withRetry(func() error {
		res := r.db.WithContext(ctx).
			Where("expires_at < ?", now).
			Delete(&sessionModel{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (r *sessionRepository) ListActive(ctx context.Context, now time.Time, limit, offset int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []sessionModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("expires_at >= ?", now).
			Order("created_at DESC").
			Limit(limit).
			Offset(offset).
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	result := make([]domain.Session, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainSession(row))
	}
	return result, nil
}

func (r *sessionRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Model(&sessionModel{}).
			Where("expires_at >= ?", now).
			Count(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
