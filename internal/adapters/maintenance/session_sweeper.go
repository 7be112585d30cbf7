package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/viralforge/dbfleet/internal/application"
)

// SessionSweeper periodically removes expired sessions from the metadata
// store. Lazy eviction on validation already keeps expired sessions unusable;
// the sweeper reclaims rows for sessions nobody presents again.
type SessionSweeper struct {
	logger   *slog.Logger
	service  *application.Service
	interval time.Duration
}

// NewSessionSweeper constructs the sweep loop with a sane default interval.
func NewSessionSweeper(logger *slog.Logger, service *application.Service, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SessionSweeper{
		logger:   logger,
		service:  service,
		interval: interval,
	}
}

// Run executes the periodic sweep until context cancellation. The first sweep
// runs immediately so a restarted worker drains backlog without waiting a
// full interval.
func (w *SessionSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.sweepOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "session sweep failed",
				"module", "maintenance.session_sweeper",
				"layer", "adapter",
				"operation", "sweep_expired_sessions",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *SessionSweeper) sweepOnce(ctx context.Context) error {
	removed, err := w.service.SweepExpiredSessions(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		w.logger.InfoContext(ctx, "expired sessions removed",
			"module", "maintenance.session_sweeper",
			"layer", "adapter",
			"operation", "sweep_expired_sessions",
			"outcome", "success",
			"removed_count", removed,
		)
	}
	return nil
}
