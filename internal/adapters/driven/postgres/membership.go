package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
)

// Ensure MembershipChecker implements the interface.
var _ driven.MembershipChecker = (*MembershipChecker)(nil)

// MembershipChecker reads organization membership from the
// organization_members table.
type MembershipChecker struct {
	db *sql.DB
}

// NewMembershipChecker creates a new PostgreSQL-backed membership checker.
func NewMembershipChecker(db *sql.DB) *MembershipChecker {
	return &MembershipChecker{db: db}
}

// IsMember reports whether the user belongs to the organization.
func (m *MembershipChecker) IsMember(ctx context.Context, userID, organizationID string) (bool, error) {
	var exists bool
	err := m.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM organization_members WHERE organization_id = $1 AND user_id = $2)`,
		organizationID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

// AddMember grants membership. Idempotent.
func (m *MembershipChecker) AddMember(ctx context.Context, userID, organizationID string) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (organization_id, user_id) DO NOTHING
	`, organizationID, userID)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}
