package application

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/viralforge/dbfleet/internal/domain"
	"github.com/viralforge/dbfleet/internal/ports"
	"github.com/viralforge/dbfleet/internal/telemetry"
)

// Service is the application-layer facade. It owns the authentication
// decision flow, the session registry, fleet identity aggregation, and the
// scan lifecycle, delegating persistence and directory access to ports.
type Service struct {
	cfg       Config
	accounts  ports.AccountRepository
	sessions  ports.SessionRepository
	attempts  ports.AuthAttemptRepository
	events    ports.SecurityEventRepository
	snapshots ports.SnapshotRepository
	scans     ports.ScanRepository
	directory ports.DirectoryService
	hasher    ports.PasswordHasher
	metrics   *telemetry.Metrics
	nowFn     func() time.Time
}

type Dependencies struct {
	Config    Config
	Accounts  ports.AccountRepository
	Sessions  ports.SessionRepository
	Attempts  ports.AuthAttemptRepository
	Events    ports.SecurityEventRepository
	Snapshots ports.SnapshotRepository
	Scans     ports.ScanRepository
	Directory ports.DirectoryService
	Hasher    ports.PasswordHasher
	Metrics   *telemetry.Metrics
}

func NewService(deps Dependencies) *Service {
	return &Service{
		cfg:       deps.Config,
		accounts:  deps.Accounts,
		sessions:  deps.Sessions,
		attempts:  deps.Attempts,
		events:    deps.Events,
		snapshots: deps.Snapshots,
		scans:     deps.Scans,
		directory: deps.Directory,
		hasher:    deps.Hasher,
		metrics:   deps.Metrics,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// recordAttempt appends one row to the authentication history. History is
// observability, not control flow, so persistence failures are logged and
// swallowed.
func (s *Service) recordAttempt(ctx context.Context, req AuthRequest, method domain.AuthMethod, status domain.AuthStatus) {
	success := status == domain.AuthSuccess
	attempt := domain.AuthAttempt{
		Username:  domain.Normalize(req.Username),
		Method:    method,
		Success:   success,
		AttemptAt: s.nowFn(),
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Detail:    string(status),
	}
	if err := s.attempts.Insert(ctx, attempt); err != nil {
		slog.Default().WarnContext(ctx, "failed to record auth attempt",
			"service", "dbfleet",
			"module", "application",
			"layer", "application",
			"operation", "record_attempt",
			"outcome", "warning",
			"username", attempt.Username,
			"error", err,
		)
	}
	s.metrics.RecordAuthAttempt(string(method), string(status))
}

// newSessionID returns an unguessable session identifier. 32 random bytes
// keep the token outside any enumerable space.
func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
