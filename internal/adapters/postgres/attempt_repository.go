package postgres

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/viralforge/dbfleet/internal/domain"
)

type attemptRepository struct {
	db *gorm.DB
}

func (r *attemptRepository) Insert(ctx context.Context, attempt domain.AuthAttempt) error {
	rec := authAttemptModel{
		Username:  attempt.Username,
		Method:    string(attempt.Method),
		Success:   attempt.Success,
		AttemptAt: attempt.AttemptAt,
		IPAddress: nullableString(attempt.IPAddress),
		UserAgent: attempt.UserAgent,
		Detail:    attempt.Detail,
	}
	return withRetry(func() error {
		return r.db.WithContext(ctx).Create(&rec).Error
	})
}

func (r *attemptRepository) ListRecent(ctx context.Context, username string, limit, offset int) ([]domain.AuthAttempt, error) {
	query := r.db.WithContext(ctx)
	if username = strings.TrimSpace(username); username != "" {
		query = query.Where("username = ?", username)
	}
	if limit <= 0 {
		limit = 50
	}

	var rows []authAttemptModel
	err := withRetry(func() error {
		return query.Order("attempt_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	result := make([]domain.AuthAttempt, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainAttempt(row))
	}
	return result, nil
}

func (r *attemptRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Model(&authAttemptModel{}).
			Where("attempt_at >= ?", since).
			Count(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
