package driven

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/adconnect/internal/core/domain"
)

// ProviderAdapter speaks one advertising platform's OAuth dialect.
// Each provider (Google, Meta, LinkedIn, TikTok) has its own implementation;
// the descriptor carries the client credentials and endpoints to use.
type ProviderAdapter interface {
	// Type returns the provider type.
	Type() domain.ProviderType

	// BuildAuthURL constructs the authorization URL.
	// codeChallenge is empty for providers that don't use PKCE.
	BuildAuthURL(desc *domain.ProviderDescriptor, state, codeChallenge string) string

	// ExchangeCode exchanges an authorization code for tokens.
	// Non-success responses return an error wrapping *TokenExchangeError.
	ExchangeCode(ctx context.Context, desc *domain.ProviderDescriptor, code, codeVerifier string) (*ProviderToken, error)

	// RefreshToken obtains new tokens from a refresh token.
	// Providers that issue no refresh tokens return domain.ErrRefreshUnsupported.
	RefreshToken(ctx context.Context, desc *domain.ProviderDescriptor, refreshToken string) (*ProviderToken, error)

	// RevokeToken asks the provider to invalidate the token.
	RevokeToken(ctx context.Context, desc *domain.ProviderDescriptor, accessToken string) error

	// FetchProfile normalizes the provider's user profile for the token.
	FetchProfile(ctx context.Context, desc *domain.ProviderDescriptor, token *ProviderToken) (*domain.ProviderProfile, error)
}

// ProviderRegistry resolves a provider type to its adapter and descriptor.
type ProviderRegistry interface {
	// Get returns the adapter and descriptor for a provider.
	// Returns domain.ErrUnsupportedProvider for unknown providers and
	// domain.ErrProviderNotConfigured when credentials are missing.
	Get(providerType domain.ProviderType) (ProviderAdapter, *domain.ProviderDescriptor, error)

	// Descriptors lists every known provider, configured or not.
	Descriptors() []*domain.ProviderDescriptor
}

// ProviderToken represents tokens from a provider with expiry normalized to
// an absolute instant.
type ProviderToken struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    *time.Time // nil: provider gave no expiry
	Scopes       []string

	// ProviderUserID is set when the token response already identifies the
	// user (TikTok open_id).
	ProviderUserID string
}

// TokenExchangeError is a non-success answer from a token endpoint.
// StatusCode is 0 for transport failures and timeouts. Body is for server
// logs only.
type TokenExchangeError struct {
	StatusCode int
	Body       string
}

func (e *TokenExchangeError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("token endpoint unreachable: %s", e.Body)
	}
	return fmt.Sprintf("token endpoint returned %d", e.StatusCode)
}

func (e *TokenExchangeError) Unwrap() error {
	return domain.ErrTokenExchangeFailed
}

// RevocationResult records a best-effort provider-side revocation.
// It is logged, never returned as an error.
type RevocationResult struct {
	Attempted bool   `json:"attempted"`
	Succeeded bool   `json:"succeeded"`
	Detail    string `json:"detail,omitempty"`
}

// ExpiresAtFrom normalizes a seconds-until-expiry value to an absolute time.
// Non-positive values mean the provider gave no expiry.
func ExpiresAtFrom(now time.Time, expiresIn int64) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	t := now.Add(time.Duration(expiresIn) * time.Second)
	return &t
}
