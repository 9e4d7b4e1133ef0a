package driven

import (
	"context"

	"github.com/custodia-labs/adconnect/internal/core/domain"
)

// ConnectionStore persists one connection per (user, organization, provider).
// Uniqueness of that tuple is enforced by the store itself.
type ConnectionStore interface {
	// Upsert inserts the connection or, when the tuple already exists,
	// replaces its token and profile fields and bumps UpdatedAt.
	// An empty RefreshToken keeps the previously stored one.
	Upsert(ctx context.Context, conn *domain.Connection) error

	// Get retrieves a connection with decrypted tokens.
	// Returns domain.ErrNotFound if no row matches.
	Get(ctx context.Context, key domain.ConnectionKey) (*domain.Connection, error)

	// Delete removes a connection.
	// Returns domain.ErrNotFound if no row matched.
	Delete(ctx context.Context, key domain.ConnectionKey) error

	// ListByUser lists a user's connections in an organization (tokens omitted).
	ListByUser(ctx context.Context, userID, organizationID string) ([]*domain.Connection, error)
}

// MembershipChecker answers whether a user belongs to an organization.
// Organization and member records are owned by the host application.
type MembershipChecker interface {
	IsMember(ctx context.Context, userID, organizationID string) (bool, error)
}

// StatusCache caches the non-secret status projection of a connection.
//
// Every key carries a generation that Invalidate advances. Get returns the
// generation current at read time (nil status on a miss), and Set only writes
// if the generation is unchanged, so a status read before an invalidation can
// never be cached after it.
type StatusCache interface {
	Get(ctx context.Context, key domain.ConnectionKey) (*domain.ConnectionStatus, int64, error)
	Set(ctx context.Context, key domain.ConnectionKey, status *domain.ConnectionStatus, generation int64) (bool, error)
	Invalidate(ctx context.Context, key domain.ConnectionKey) error
}
