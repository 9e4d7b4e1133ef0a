package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
)

// Ensure AttemptStore implements the interface.
var _ driven.AuthorizationAttemptStore = (*AttemptStore)(nil)

// AttemptStore implements driven.AuthorizationAttemptStore using PostgreSQL.
// It is used when no redis is configured.
type AttemptStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewAttemptStore creates a new PostgreSQL-backed attempt store.
func NewAttemptStore(db *sql.DB) *AttemptStore {
	return &AttemptStore{
		db:  db,
		now: time.Now,
	}
}

// Save stores a new attempt.
func (s *AttemptStore) Save(ctx context.Context, attempt *domain.AuthorizationAttempt) error {
	query := `
		INSERT INTO authorization_attempts (
			nonce, organization_id, user_id, provider, code_verifier, redirect_uri, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		attempt.Nonce,
		attempt.OrganizationID,
		attempt.UserID,
		string(attempt.Provider),
		attempt.CodeVerifier,
		attempt.RedirectURI,
		attempt.CreatedAt,
		attempt.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save authorization attempt: %w", err)
	}
	return nil
}

// Consume atomically retrieves and deletes the attempt.
// DELETE ... RETURNING guarantees that of two concurrent callers only one
// gets the row. Expired rows are consumed too, then reported as absent.
func (s *AttemptStore) Consume(ctx context.Context, nonce string) (*domain.AuthorizationAttempt, error) {
	query := `
		DELETE FROM authorization_attempts
		WHERE nonce = $1
		RETURNING nonce, organization_id, user_id, provider, code_verifier, redirect_uri, created_at, expires_at
	`

	var attempt domain.AuthorizationAttempt
	var provider string
	err := s.db.QueryRowContext(ctx, query, nonce).Scan(
		&attempt.Nonce,
		&attempt.OrganizationID,
		&attempt.UserID,
		&provider,
		&attempt.CodeVerifier,
		&attempt.RedirectURI,
		&attempt.CreatedAt,
		&attempt.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume authorization attempt: %w", err)
	}

	attempt.Provider = domain.ProviderType(provider)
	if attempt.IsExpired(s.now()) {
		return nil, nil
	}
	return &attempt, nil
}

// Cleanup removes expired attempts that were never consumed.
func (s *AttemptStore) Cleanup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM authorization_attempts WHERE expires_at <= NOW()`); err != nil {
		return fmt.Errorf("cleanup authorization attempts: %w", err)
	}
	return nil
}
