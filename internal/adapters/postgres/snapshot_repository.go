package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viralforge/dbfleet/internal/domain"
)

type snapshotRepository struct {
	db *gorm.DB
}

// ReplaceForServer swaps the server's entire snapshot slice in one
// transaction. The normalized username is computed here, at the persistence
// edge, so cross-server grouping can be answered with one indexed query.
func (r *snapshotRepository) ReplaceForServer(ctx context.Context, serverID uuid.UUID, accounts []domain.ServerAccount) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("server_id = ?", serverID).Delete(&serverAccountModel{}).Error; err != nil {
				return err
			}
			if len(accounts) == 0 {
				return nil
			}

			rows := make([]serverAccountModel, 0, len(accounts))
			for _, acct := range accounts {
				rows = append(rows, serverAccountModel{
					ServerID:           serverID,
					Username:           acct.Username,
					NormalizedUsername: domain.Normalize(acct.Username),
					UserType:           acct.Type,
					IsActive:           acct.IsActive,
					LastLogin:          acct.LastLogin,
					PermissionCount:    acct.PermissionCount,
					DiscoveredAt:       acct.DiscoveredAt,
				})
			}
			return tx.CreateInBatches(rows, 500).Error
		})
	})
}

func (r *snapshotRepository) ListAll(ctx context.Context) ([]domain.ServerAccount, error) {
	var rows []serverAccountModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Order("server_id, username").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	result := make([]domain.ServerAccount, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainServerAccount(row))
	}
	return result, nil
}

func (r *snapshotRepository) ListByServer(ctx context.Context, serverID uuid.UUID) ([]domain.ServerAccount, error) {
	var rows []serverAccountModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("server_id = ?", serverID).
			Order("username").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	result := make([]domain.ServerAccount, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainServerAccount(row))
	}
	return result, nil
}

func (r *snapshotRepository) CountDistinctIdentities(ctx context.Context) (int64, error) {
	var count int64
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Model(&serverAccountModel{}).
			Distinct("normalized_username").
			Count(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *snapshotRepository) CountServers(ctx context.Context) (int64, error) {
	var count int64
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Model(&serverAccountModel{}).
			Distinct("server_id").
			Count(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *snapshotRepository) CountAccounts(ctx context.Context) (total, active int64, err error) {
	err = withRetry(func() error {
		q := r.db.WithContext(ctx).Model(&serverAccountModel{})
		if err := q.Count(&total).Error; err != nil {
			return err
		}
		return r.db.WithContext(ctx).
			Model(&serverAccountModel{}).
			Where("is_active = TRUE").
			Count(&active).Error
	})
	if err != nil {
		return 0, 0, err
	}
	return total, active, nil
}
