package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/viralforge/dbfleet/internal/domain"
	"github.com/viralforge/dbfleet/internal/ports"
)

// Repositories bundles every store-backed port over one shared connection
// pool.
type Repositories struct {
	Accounts       ports.AccountRepository
	Sessions       ports.SessionRepository
	AuthAttempts   ports.AuthAttemptRepository
	SecurityEvents ports.SecurityEventRepository
	Snapshots      ports.SnapshotRepository
	Scans          ports.ScanRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Accounts:       &accountRepository{db: db},
		Sessions:       &sessionRepository{db: db},
		AuthAttempts:   &attemptRepository{db: db},
		SecurityEvents: &eventRepository{db: db},
		Snapshots:      &snapshotRepository{db: db},
		Scans:          &scanRepository{db: db},
	}
}

// domainErrors are outcomes a repository reports deliberately; they pass
// through withRetry untouched.
var domainErrors = []error{
	domain.ErrNotFound,
	domain.ErrUserNotFound,
	domain.ErrDuplicateUser,
	domain.ErrSessionNotFound,
	domain.ErrConflict,
	domain.ErrInvalidInput,
}

func isDomainError(err error) bool {
	for _, sentinel := range domainErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// withRetry runs one store operation, retries it once on a transport-level
// failure, and converts a second failure into ErrStoreUnavailable. Operations
// passed here must be safe to re-run: single statements, or transactions
// that roll back on error.
func withRetry(op func() error) error {
	err := op()
	if err == nil || isDomainError(err) {
		return err
	}
	if err = op(); err == nil || isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}
