package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/viralforge/dbfleet/internal/domain"
	"github.com/viralforge/dbfleet/internal/ports"
)

// CreateSession opens a session for an authenticated caller. The expiry is
// absolute and fixed here; later activity never extends it.
func (s *Service) CreateSession(ctx context.Context, result AuthResult, req AuthRequest) (domain.Session, error) {
	if result.Status != domain.AuthSuccess {
		return domain.Session{}, fmt.Errorf("%w: session requires a successful authentication", domain.ErrInvalidInput)
	}

	sessionID, err := newSessionID()
	if err != nil {
		return domain.Session{}, err
	}

	now := s.nowFn()
	session, err := s.sessions.Create(ctx, ports.SessionCreateParams{
		SessionID:    sessionID,
		Username:     result.Username,
		Role:         result.Role,
		Method:       result.Method,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.SessionTTL),
		LastActivity: now,
	})
	if err != nil {
		return domain.Session{}, err
	}

	s.metrics.RecordSessionIssued()
	slog.Default().InfoContext(ctx, "session created",
		"service", "dbfleet",
		"module", "application",
		"layer", "application",
		"operation", "create_session",
		"outcome", "success",
		"username", session.Username,
		"auth_method", session.Method,
		"expires_at", session.ExpiresAt,
	)
	return session, nil
}

// ValidateSession resolves a session identifier to its live session. Expired
// sessions are evicted on sight and reported as ErrSessionExpired; unknown
// identifiers report ErrSessionNotFound.
func (s *Service) ValidateSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if sessionID == "" {
		return domain.Session{}, domain.ErrSessionNotFound
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	now := s.nowFn()
	if session.Expired(now) {
		_ = s.sessions.Delete(ctx, sessionID)
		return domain.Session{}, domain.ErrSessionExpired
	}

	// Activity tracking is informational. A failed touch never invalidates an
	// otherwise live session.
	if err := s.sessions.TouchActivity(ctx, sessionID, now); err != nil {
		slog.Default().WarnContext(ctx, "failed to record session activity",
			"service", "dbfleet",
			"module", "application",
			"layer", "application",
			"operation", "validate_session",
			"outcome", "warning",
			"error", err,
		)
	} else {
		session.LastActivity = now
	}
	return session, nil
}

// InvalidateSession ends a session. Unknown identifiers are a no-op so
// logout can be retried safely.
func (s *Service) InvalidateSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	slog.Default().InfoContext(ctx, "session invalidated",
		"service", "dbfleet",
		"module", "application",
		"layer", "application",
		"operation", "invalidate_session",
		"outcome", "success",
	)
	return nil
}

// SweepExpiredSessions removes sessions whose absolute expiry has passed and
// returns how many were dropped.
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	removed, err := s.sessions.DeleteExpired(ctx, s.nowFn())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.metrics.RecordSessionsSwept(removed)
		slog.Default().InfoContext(ctx, "expired sessions swept",
			"service", "dbfleet",
			"module", "application",
			"layer", "application",
			"operation", "sweep_sessions",
			"outcome", "success",
			"removed", removed,
		)
	}
	return removed, nil
}

// ListActiveSessions returns sessions that have not yet reached their
// absolute expiry, newest first.
func (s *Service) ListActiveSessions(ctx context.Context, limit, offset int) ([]domain.Session, error) {
	return s.sessions.ListActive(ctx, s.nowFn(), limit, offset)
}
