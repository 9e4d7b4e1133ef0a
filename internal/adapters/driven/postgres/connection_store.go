package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
)

// Ensure ConnectionStore implements the interface.
var _ driven.ConnectionStore = (*ConnectionStore)(nil)

// ConnectionStore implements driven.ConnectionStore using PostgreSQL.
// Tokens are encrypted per column and bound to their row.
type ConnectionStore struct {
	db        *sql.DB
	encryptor *TokenEncryptor
}

// NewConnectionStore creates a new PostgreSQL-backed connection store.
func NewConnectionStore(db *sql.DB, encryptor *TokenEncryptor) *ConnectionStore {
	return &ConnectionStore{
		db:        db,
		encryptor: encryptor,
	}
}

// tokenAAD binds an encrypted token to its row and column.
func tokenAAD(key domain.ConnectionKey, column string) []byte {
	return []byte(key.UserID + "\x00" + key.OrganizationID + "\x00" + string(key.Provider) + "\x00" + column)
}

// Upsert inserts a connection or replaces the tokens and profile of the
// existing one. created_at survives reconnects; an absent refresh token or
// empty profile field keeps the stored value.
func (s *ConnectionStore) Upsert(ctx context.Context, conn *domain.Connection) error {
	key := conn.Key()

	accessBlob, err := s.encryptor.Encrypt(conn.AccessToken, tokenAAD(key, "access"))
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}

	var refreshBlob []byte
	if conn.RefreshToken != "" {
		refreshBlob, err = s.encryptor.Encrypt(conn.RefreshToken, tokenAAD(key, "refresh"))
		if err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	now := time.Now()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now

	scopes := conn.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	query := `
		INSERT INTO provider_connections (
			user_id, organization_id, provider,
			access_token_enc, refresh_token_enc, token_expires_at, scopes,
			provider_user_id, display_name, email, profile_picture_url,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, organization_id, provider) DO UPDATE SET
			access_token_enc    = EXCLUDED.access_token_enc,
			refresh_token_enc   = COALESCE(EXCLUDED.refresh_token_enc, provider_connections.refresh_token_enc),
			token_expires_at    = EXCLUDED.token_expires_at,
			scopes              = EXCLUDED.scopes,
			provider_user_id    = COALESCE(EXCLUDED.provider_user_id, provider_connections.provider_user_id),
			display_name        = COALESCE(EXCLUDED.display_name, provider_connections.display_name),
			email               = COALESCE(EXCLUDED.email, provider_connections.email),
			profile_picture_url = COALESCE(EXCLUDED.profile_picture_url, provider_connections.profile_picture_url),
			updated_at          = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		key.UserID,
		key.OrganizationID,
		string(key.Provider),
		accessBlob,
		refreshBlob,
		nullTime(conn.TokenExpiresAt),
		pq.Array(scopes),
		nullString(conn.ProviderUserID),
		nullString(conn.DisplayName),
		nullString(conn.Email),
		nullString(conn.ProfilePictureURL),
		conn.CreatedAt,
		conn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert connection: %w", err)
	}
	return nil
}

// Get retrieves a connection with decrypted tokens.
func (s *ConnectionStore) Get(ctx context.Context, key domain.ConnectionKey) (*domain.Connection, error) {
	query := `
		SELECT access_token_enc, refresh_token_enc, token_expires_at, scopes,
			   provider_user_id, display_name, email, profile_picture_url,
			   created_at, updated_at
		FROM provider_connections
		WHERE user_id = $1 AND organization_id = $2 AND provider = $3
	`

	conn := &domain.Connection{
		UserID:         key.UserID,
		OrganizationID: key.OrganizationID,
		Provider:       key.Provider,
	}
	var accessBlob, refreshBlob []byte
	var expiresAt sql.NullTime
	var providerUserID, displayName, email, picture sql.NullString

	err := s.db.QueryRowContext(ctx, query, key.UserID, key.OrganizationID, string(key.Provider)).Scan(
		&accessBlob,
		&refreshBlob,
		&expiresAt,
		pq.Array(&conn.Scopes),
		&providerUserID,
		&displayName,
		&email,
		&picture,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	conn.AccessToken, err = s.encryptor.Decrypt(accessBlob, tokenAAD(key, "access"))
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	if len(refreshBlob) > 0 {
		conn.RefreshToken, err = s.encryptor.Decrypt(refreshBlob, tokenAAD(key, "refresh"))
		if err != nil {
			return nil, fmt.Errorf("decrypt refresh token: %w", err)
		}
	}

	if expiresAt.Valid {
		conn.TokenExpiresAt = &expiresAt.Time
	}
	conn.ProviderUserID = providerUserID.String
	conn.DisplayName = displayName.String
	conn.Email = email.String
	conn.ProfilePictureURL = picture.String

	return conn, nil
}

// Delete removes a connection.
func (s *ConnectionStore) Delete(ctx context.Context, key domain.ConnectionKey) error {
	query := `DELETE FROM provider_connections WHERE user_id = $1 AND organization_id = $2 AND provider = $3`

	result, err := s.db.ExecContext(ctx, query, key.UserID, key.OrganizationID, string(key.Provider))
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByUser lists a user's connections in an organization without tokens.
func (s *ConnectionStore) ListByUser(ctx context.Context, userID, organizationID string) ([]*domain.Connection, error) {
	query := `
		SELECT provider, token_expires_at, scopes,
			   provider_user_id, display_name, email, profile_picture_url,
			   refresh_token_enc IS NOT NULL,
			   created_at, updated_at
		FROM provider_connections
		WHERE user_id = $1 AND organization_id = $2
		ORDER BY provider
	`

	rows, err := s.db.QueryContext(ctx, query, userID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []*domain.Connection
	for rows.Next() {
		conn := &domain.Connection{UserID: userID, OrganizationID: organizationID}
		var provider string
		var expiresAt sql.NullTime
		var providerUserID, displayName, email, picture sql.NullString
		var hasRefresh bool

		if err := rows.Scan(
			&provider,
			&expiresAt,
			pq.Array(&conn.Scopes),
			&providerUserID,
			&displayName,
			&email,
			&picture,
			&hasRefresh,
			&conn.CreatedAt,
			&conn.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}

		conn.Provider = domain.ProviderType(provider)
		if expiresAt.Valid {
			conn.TokenExpiresAt = &expiresAt.Time
		}
		conn.ProviderUserID = providerUserID.String
		conn.DisplayName = displayName.String
		conn.Email = email.String
		conn.ProfilePictureURL = picture.String
		if hasRefresh {
			// Marker only; the token itself is never listed.
			conn.RefreshToken = refreshPresent
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}
	return conns, nil
}

// refreshPresent stands in for a refresh token in listings so that
// Connection.HasRefreshToken and the derived status stay accurate.
const refreshPresent = "[redacted]"
