package ports

import (
	"context"
	"time"

	"github.com/viralforge/dbfleet/internal/domain"
)

// IdentityCache holds short-lived directory lookup results so repeated
// lookups do not hit the directory on every call. A cache miss is
// (nil, nil); errors are reserved for transport failures, which callers
// treat as a miss.
type IdentityCache interface {
	Get(ctx context.Context, username string) (*domain.DirectoryIdentity, error)
	Put(ctx context.Context, username string, identity domain.DirectoryIdentity, ttl time.Duration) error
	Delete(ctx context.Context, username string) error
}
