package driven

import "github.com/custodia-labs/adconnect/internal/core/domain"

// AuthAdapter handles token cryptographic operations for the host
// application's session tokens.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
