package driven

import (
	"context"

	"github.com/custodia-labs/adconnect/internal/core/domain"
)

// AuthorizationAttemptStore is the ephemeral flow store: short-lived,
// single-use storage for in-flight authorization attempts, keyed by nonce.
type AuthorizationAttemptStore interface {
	// Save stores a new attempt until its ExpiresAt.
	Save(ctx context.Context, attempt *domain.AuthorizationAttempt) error

	// Consume atomically retrieves and deletes the attempt.
	// This ensures single-use semantics: a replayed nonce finds nothing.
	// Returns nil, nil if the attempt doesn't exist or has expired.
	Consume(ctx context.Context, nonce string) (*domain.AuthorizationAttempt, error)

	// Cleanup removes expired attempts that were never consumed.
	Cleanup(ctx context.Context) error
}
