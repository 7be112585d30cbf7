package ports

import (
	"context"

	"github.com/viralforge/dbfleet/internal/domain"
)

// DirectoryService is the contract the coordinator consumes from the external
// directory. Authenticate reports (false, nil, nil) both when the user cannot
// be located and when the bind fails, so callers cannot distinguish the two.
// A non-nil error means the directory itself was unreachable; the coordinator
// treats that the same as a denial.
type DirectoryService interface {
	TestConnection(ctx context.Context) (bool, string)
	Authenticate(ctx context.Context, username, password string) (bool, *domain.DirectoryIdentity, error)
	// LookupUser returns (nil, nil) when the user does not exist.
	LookupUser(ctx context.Context, username string) (*domain.DirectoryIdentity, error)
	ListUsers(ctx context.Context) ([]domain.DirectoryIdentity, error)
	GroupsOf(ctx context.Context, dn string) ([]string, error)
}
