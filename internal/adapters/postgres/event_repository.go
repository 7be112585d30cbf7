package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viralforge/dbfleet/internal/domain"
	"github.com/viralforge/dbfleet/internal/ports"
)

type eventRepository struct {
	db *gorm.DB
}

func (r *eventRepository) Insert(ctx context.Context, event domain.SecurityEvent) error {
	rec := securityEventModel{
		EventID:     event.EventID,
		ServerID:    event.ServerID,
		EventType:   event.EventType,
		Severity:    event.Severity,
		Username:    event.Username,
		Description: event.Description,
		Resolved:    event.Resolved,
		ResolvedAt:  event.ResolvedAt,
		CreatedAt:   event.CreatedAt,
	}
	return withRetry(func() error {
		return r.db.WithContext(ctx).Create(&rec).Error
	})
}

func (r *eventRepository) List(ctx context.Context, filter ports.SecurityEventFilter) ([]domain.SecurityEvent, error) {
	query := r.db.WithContext(ctx)
	if filter.ServerID != nil {
		query = query.Where("server_id = ?", *filter.ServerID)
	}
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var rows []securityEventModel
	err := withRetry(func() error {
		return query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	result := make([]domain.SecurityEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainEvent(row))
	}
	return result, nil
}

// Resolve transitions an event to resolved exactly once; resolving an
// already-resolved event is a no-op that still succeeds.
func (r *eventRepository) Resolve(ctx context.Context, eventID uuid.UUID, resolvedAt time.Time) error {
	return withRetry(func() error {
		res := r.db.WithContext(ctx).
			Model(&securityEventModel{}).
			Where("event_id = ?", eventID).
			Where("resolved = FALSE").
			Updates(map[string]any{
				"resolved":    true,
				"resolved_at": resolvedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var exists int64
			if err := r.db.WithContext(ctx).Model(&securityEventModel{}).Where("event_id = ?", eventID).Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				return domain.ErrNotFound
			}
		}
		return nil
	})
}

func (r *eventRepository) CountUnresolved(ctx context.Context) (int64, error) {
	var count int64
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Model(&securityEventModel{}).
			Where("resolved = FALSE").
			Count(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
