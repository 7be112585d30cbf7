package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viralforge/dbfleet/internal/domain"
)

type scanRepository struct {
	db *gorm.DB
}

func (r *scanRepository) Create(ctx context.Context, scan domain.ScanRecord) error {
	rec := scanModel{
		ScanID:       scan.ScanID,
		ServerID:     scan.ServerID,
		Status:       string(scan.Status),
		StartedAt:    scan.StartedAt,
		FinishedAt:   scan.FinishedAt,
		UsersFound:   scan.UsersFound,
		RolesFound:   scan.RolesFound,
		TablesFound:  scan.TablesFound,
		ErrorMessage: scan.Error,
	}
	return withRetry(func() error {
		if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		return nil
	})
}

func (r *scanRepository) Get(ctx context.Context, scanID uuid.UUID) (domain.ScanRecord, error) {
	var rec scanModel
	err := withRetry(func() error {
		if err := r.db.WithContext(ctx).Where("scan_id = ?", scanID).Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.ScanRecord{}, err
	}
	return toDomainScan(rec), nil
}

func (r *scanRepository) MarkRunning(ctx context.Context, scanID uuid.UUID, at time.Time) error {
	return r.transition(ctx, scanID, domain.ScanPending, map[string]any{
		"status":     string(domain.ScanRunning),
		"started_at": at,
	})
}

func (r *scanRepository) Complete(ctx context.Context, scanID uuid.UUID, at time.Time, users, roles, tables int) error {
	return r.transition(ctx, scanID, domain.ScanRunning, map[string]any{
		"status":       string(domain.ScanCompleted),
		"finished_at":  at,
		"users_found":  users,
		"roles_found":  roles,
		"tables_found": tables,
	})
}

func (r *scanRepository) Fail(ctx context.Context, scanID uuid.UUID, at time.Time, message string) error {
	return r.transition(ctx, scanID, domain.ScanRunning, map[string]any{
		"status":        string(domain.ScanFailed),
		"finished_at":   at,
		"error_message": message,
	})
}

// transition applies a guarded status move: the update only matches when the
// record is still in the expected prior state, so completed and failed stay
// terminal under concurrent reporters.
func (r *scanRepository) transition(ctx context.Context, scanID uuid.UUID, from domain.ScanStatus, updates map[string]any) error {
	return withRetry(func() error {
		res := r.db.WithContext(ctx).
			Model(&scanModel{}).
			Where("scan_id = ?", scanID).
			Where("status = ?", string(from)).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var exists int64
			if err := r.db.WithContext(ctx).Model(&scanModel{}).Where("scan_id = ?", scanID).Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				return domain.ErrNotFound
			}
			return domain.ErrConflict
		}
		return nil
	})
}

func (r *scanRepository) ListByServer(ctx context.Context, serverID uuid.UUID, limit int) ([]domain.ScanRecord, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("server_id = ?", serverID), limit)
}

func (r *scanRepository) ListRecent(ctx context.Context, limit int) ([]domain.ScanRecord, error) {
	return r.list(ctx, r.db.WithContext(ctx), limit)
}

func (r *scanRepository) list(_ context.Context, query *gorm.DB, limit int) ([]domain.ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []scanModel
	err := withRetry(func() error {
		return query.Order("started_at DESC").Limit(limit).Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	result := make([]domain.ScanRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainScan(row))
	}
	return result, nil
}
