package domain

import "time"

// DefaultAttemptTTL bounds how long an authorization attempt can wait for
// its callback.
const DefaultAttemptTTL = 5 * time.Minute

// AuthorizationAttempt is the server-side half of one in-flight
// authorization. It is written once by Authorize and consumed once by Callback.
type AuthorizationAttempt struct {
	Nonce          string       `json:"nonce"`
	OrganizationID string       `json:"organization_id"`
	UserID         string       `json:"user_id"`
	Provider       ProviderType `json:"provider"`

	// CodeVerifier is only set for PKCE providers. It never leaves the server.
	CodeVerifier string `json:"code_verifier,omitempty"`
	RedirectURI  string `json:"redirect_uri"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the attempt is past its TTL at the given instant.
func (a *AuthorizationAttempt) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// StatePayload is the decoded form of the state parameter.
type StatePayload struct {
	Nonce          string
	OrganizationID string
}
