package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/viralforge/dbfleet/internal/domain"
	"github.com/viralforge/dbfleet/internal/ports"
)

type accountRepository struct {
	db *gorm.DB
}

func (r *accountRepository) Create(ctx context.Context, params ports.AccountCreateParams) (domain.Account, error) {
	rec := accountModel{
		Username:     params.Username,
		PasswordHash: params.PasswordHash,
		PasswordSalt: params.PasswordSalt,
		Role:         string(params.Role),
		IsActive:     true,
		CreatedAt:    params.CreatedAt,
		UpdatedAt:    params.CreatedAt,
	}
	err := withRetry(func() error {
		if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateUser
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	var rec accountModel
	err := withRetry(func() error {
		if err := r.db.WithContext(ctx).Where("username = ?", username).Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return toDomainAccount(rec), nil
}

// RecordFailure performs the increment-and-check as one conditional UPDATE so
// concurrent failures against the same account cannot under-count, then
// reads back the resulting row state inside the same transaction.
func (r *accountRepository) RecordFailure(ctx context.Context, username string, threshold int, lockUntil, now time.Time) (domain.Account, error) {
	var rec accountModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&accountModel{}).
				Where("username = ?", username).
				Updates(map[string]any{
					"failed_attempts": gorm.Expr("failed_attempts + 1"),
					"locked_until":    gorm.Expr("CASE WHEN failed_attempts + 1 >= ? THEN ?::timestamptz ELSE locked_until END", threshold, lockUntil),
					"updated_at":      now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrUserNotFound
			}
			return tx.Where("username = ?", username).Take(&rec).Error
		})
	})
	if err != nil {
		return domain.Account{}, err
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) RecordSuccess(ctx context.Context, username string, now time.Time) error {
	return withRetry(func() error {
		res := r.db.WithContext(ctx).
			Model(&accountModel{}).
			Where("username = ?", username).
			Updates(map[string]any{
				"failed_attempts": 0,
				"locked_until":    nil,
				"last_login":      now,
				"updated_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrUserNotFound
		}
		return nil
	})
}

// ClearLock self-heals an expired lock. The guard keeps it a no-op when a
// concurrent request already cleared the same lock.
func (r *accountRepository) ClearLock(ctx context.Context, username string, now time.Time) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).
			Model(&accountModel{}).
			Where("username = ?", username).
			Where("locked_until IS NOT NULL").
			Where("locked_until <= ?", now).
			Updates(map[string]any{
				"failed_attempts": 0,
				"locked_until":    nil,
				"updated_at":      now,
			}).Error
	})
}

func (r *accountRepository) List(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	var rows []accountModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Order("username ASC").
			Limit(limit).
			Offset(offset).
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	result := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainAccount(row))
	}
	return result, nil
}

func (r *accountRepository) CountAccounts(ctx context.Context) (int64, int64, error) {
	var total, active int64
	err := withRetry(func() error {
		if err := r.db.WithContext(ctx).Model(&accountModel{}).Count(&total).Error; err != nil {
			return err
		}
		return r.db.WithContext(ctx).Model(&accountModel{}).Where("is_active = TRUE").Count(&active).Error
	})
	if err != nil {
		return 0, 0, err
	}
	return total, active, nil
}
