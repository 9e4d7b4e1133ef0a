package driving

import (
	"context"

	"github.com/custodia-labs/adconnect/internal/core/domain"
)

// AuthService authenticates callers using tokens issued by the host application
type AuthService interface {
	// ValidateToken validates a JWT token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
