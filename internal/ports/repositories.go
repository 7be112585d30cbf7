package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/dbfleet/internal/domain"
)

// AccountCreateParams captures the inputs for creating a local account. Hash
// and salt are produced by the hasher before the repository is involved.
type AccountCreateParams struct {
	Username     string
	PasswordHash string
	PasswordSalt string
	Role         domain.Role
	CreatedAt    time.Time
}

// AccountRepository defines persistence for locally managed accounts. The
// failure-counter methods are single atomic store operations so concurrent
// wrong-password attempts cannot under-count.
type AccountRepository interface {
	Create(ctx context.Context, params AccountCreateParams) (domain.Account, error)
	GetByUsername(ctx context.Context, username string) (domain.Account, error)
	// RecordFailure increments failed_attempts and, when the incremented
	// count reaches threshold, sets locked_until = lockUntil in the same
	// statement. Returns the post-update account state.
	RecordFailure(ctx context.Context, username string, threshold int, lockUntil, now time.Time) (domain.Account, error)
	// RecordSuccess resets failed_attempts, clears locked_until, and stamps
	// last_login.
	RecordSuccess(ctx context.Context, username string, now time.Time) error
	// ClearLock resets failed_attempts and locked_until without touching
	// last_login. Used when an expired lock self-heals.
	ClearLock(ctx context.Context, username string, now time.Time) error
	List(ctx context.Context, limit, offset int) ([]domain.Account, error)
	CountAccounts(ctx context.Context) (total, active int64, err error)
}

// SessionCreateParams captures a session record at mint time. ExpiresAt is
// fixed here and never extended.
type SessionCreateParams struct {
	SessionID    string
	Username     string
	Role         domain.Role
	Method       domain.AuthMethod
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
}

// SessionRepository manages persistent session lifecycle.
type SessionRepository interface {
	Create(ctx context.Context, params SessionCreateParams) (domain.Session, error)
	GetByID(ctx context.Context, sessionID string) (domain.Session, error)
	TouchActivity(ctx context.Context, sessionID string, touchedAt time.Time) error
	// Delete is idempotent; deleting an absent session is not an error.
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	ListActive(ctx context.Context, now time.Time, limit, offset int) ([]domain.Session, error)
	CountActive(ctx context.Context, now time.Time) (int64, error)
}

// AuthAttemptRepository stores authentication outcomes for audit and history
// endpoints. Rows are append-only.
type AuthAttemptRepository interface {
	Insert(ctx context.Context, attempt domain.AuthAttempt) error
	ListRecent(ctx context.Context, username string, limit, offset int) ([]domain.AuthAttempt, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// SecurityEventFilter narrows event listings. Nil fields match everything.
type SecurityEventFilter struct {
	ServerID *uuid.UUID
	Resolved *bool
	Limit    int
	Offset   int
}

// SecurityEventRepository persists drift findings and their resolution state.
type SecurityEventRepository interface {
	Insert(ctx context.Context, event domain.SecurityEvent) error
	List(ctx context.Context, filter SecurityEventFilter) ([]domain.SecurityEvent, error)
	Resolve(ctx context.Context, eventID uuid.UUID, resolvedAt time.Time) error
	CountUnresolved(ctx context.Context) (int64, error)
}

// SnapshotRepository owns per-server discovered-account snapshots. Replace is
// transactional: a scan is authoritative for its server, so the previous
// slice is deleted and the new one inserted as one unit.
type SnapshotRepository interface {
	ReplaceForServer(ctx context.Context, serverID uuid.UUID, accounts []domain.ServerAccount) error
	ListAll(ctx context.Context) ([]domain.ServerAccount, error)
	ListByServer(ctx context.Context, serverID uuid.UUID) ([]domain.ServerAccount, error)
	CountDistinctIdentities(ctx context.Context) (int64, error)
	// CountServers reports how many distinct servers currently hold a
	// snapshot.
	CountServers(ctx context.Context) (int64, error)
	CountAccounts(ctx context.Context) (total, active int64, err error)
}

// ScanRepository tracks scan lifecycle records. Transition methods are
// conditional updates: they fail with a conflict when the record is not in
// the expected prior state.
type ScanRepository interface {
	Create(ctx context.Context, scan domain.ScanRecord) error
	Get(ctx context.Context, scanID uuid.UUID) (domain.ScanRecord, error)
	MarkRunning(ctx context.Context, scanID uuid.UUID, at time.Time) error
	Complete(ctx context.Context, scanID uuid.UUID, at time.Time, users, roles, tables int) error
	Fail(ctx context.Context, scanID uuid.UUID, at time.Time, message string) error
	ListByServer(ctx context.Context, serverID uuid.UUID, limit int) ([]domain.ScanRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ScanRecord, error)
}
