package services

import (
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/adconnect/internal/core/domain"
)

// stateDelimiter separates the nonce from the organization id in the state
// parameter. Neither part may contain it.
const stateDelimiter = "__"

// EncodeState binds a nonce to an organization id.
// Values that would not survive DecodeState are rejected with
// domain.ErrMalformedState rather than silently mangled.
func EncodeState(nonce, organizationID string) (string, error) {
	if nonce == "" || organizationID == "" {
		return "", domain.ErrMalformedState
	}
	if strings.Contains(nonce, stateDelimiter) || strings.HasSuffix(nonce, "_") {
		return "", domain.ErrMalformedState
	}
	if strings.Contains(organizationID, stateDelimiter) {
		return "", domain.ErrMalformedState
	}
	return nonce + stateDelimiter + organizationID, nil
}

// DecodeState splits a state parameter returned by a provider.
// The result is untrusted until its nonce matches a stored attempt.
func DecodeState(state string) (*domain.StatePayload, error) {
	parts := strings.Split(state, stateDelimiter)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, domain.ErrMalformedState
	}
	return &domain.StatePayload{
		Nonce:          parts[0],
		OrganizationID: parts[1],
	}, nil
}

// newNonce returns a random UUIDv4 nonce.
func newNonce() string {
	return uuid.NewString()
}
