package domain

import (
	"errors"
	"strings"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrUnsupportedProvider indicates the provider type is not one we connect to
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrProviderNotConfigured indicates required client credentials are missing
	ErrProviderNotConfigured = errors.New("provider not configured")

	// ErrMissingOrganization indicates no organization was supplied
	ErrMissingOrganization = errors.New("missing organization")

	// ErrMalformedState indicates the state parameter could not be decoded
	ErrMalformedState = errors.New("malformed state")

	// ErrInvalidState indicates no live authorization attempt matches the state
	ErrInvalidState = errors.New("invalid state")

	// ErrProviderDenied indicates the provider returned an error on the callback
	ErrProviderDenied = errors.New("provider denied authorization")

	// ErrTokenExchangeFailed indicates the authorization code could not be exchanged
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrConnectionNotFound indicates no connection exists for the tuple
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrConnectionFailed indicates the connection could not be persisted
	ErrConnectionFailed = errors.New("connection could not be saved")

	// ErrDeletionFailed indicates the local connection record could not be removed
	ErrDeletionFailed = errors.New("deletion failed")

	// ErrRefreshUnsupported indicates the provider issues no refresh tokens
	ErrRefreshUnsupported = errors.New("token refresh not supported")

	// ErrRefreshFailed indicates the provider rejected a refresh
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Reason is a caller-visible failure code. The set is closed; nothing outside
// it is ever surfaced to a browser or API client.
type Reason string

const (
	ReasonProviderNotConfigured Reason = "provider_not_configured"
	ReasonUnsupportedProvider   Reason = "unsupported_provider"
	ReasonMissingOrganization   Reason = "missing_organization"
	ReasonMalformedState        Reason = "malformed_state"
	ReasonInvalidState          Reason = "invalid_state"
	ReasonProviderDenied        Reason = "provider_denied"
	ReasonTokenExchangeFailed   Reason = "token_exchange_failed"
	ReasonConnectionFailed      Reason = "connection_failed"
	ReasonConnectionNotFound    Reason = "connection_not_found"
	ReasonDeletionFailed        Reason = "deletion_failed"
	ReasonRefreshUnsupported    Reason = "refresh_unsupported"
	ReasonRefreshFailed         Reason = "refresh_failed"
	ReasonForbidden             Reason = "forbidden"
	ReasonUnauthorized          Reason = "unauthorized"
	ReasonInternal              Reason = "internal_error"
)

var reasonsByError = []struct {
	err    error
	reason Reason
}{
	{ErrProviderNotConfigured, ReasonProviderNotConfigured},
	{ErrUnsupportedProvider, ReasonUnsupportedProvider},
	{ErrMissingOrganization, ReasonMissingOrganization},
	{ErrMalformedState, ReasonMalformedState},
	{ErrInvalidState, ReasonInvalidState},
	{ErrProviderDenied, ReasonProviderDenied},
	{ErrTokenExchangeFailed, ReasonTokenExchangeFailed},
	{ErrConnectionFailed, ReasonConnectionFailed},
	{ErrConnectionNotFound, ReasonConnectionNotFound},
	{ErrDeletionFailed, ReasonDeletionFailed},
	{ErrRefreshUnsupported, ReasonRefreshUnsupported},
	{ErrRefreshFailed, ReasonRefreshFailed},
	{ErrForbidden, ReasonForbidden},
	{ErrUnauthorized, ReasonUnauthorized},
}

// ReasonFor maps an error to its caller-visible reason code.
// Unknown errors collapse to ReasonInternal.
func ReasonFor(err error) Reason {
	if err == nil {
		return ""
	}
	var fe *FlowError
	if errors.As(err, &fe) && fe.Reason != "" {
		return fe.Reason
	}
	for _, r := range reasonsByError {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonInternal
}

// maxDescriptionLen caps provider-supplied descriptions echoed back to users.
const maxDescriptionLen = 200

// FlowError is a connection-flow failure: a reason code for the caller, an
// optional human-readable description, and the wrapped cause for server logs.
type FlowError struct {
	Reason      Reason
	Description string
	Err         error
}

// NewFlowError builds a FlowError whose reason is derived from the cause.
func NewFlowError(cause error, description string) *FlowError {
	return &FlowError{
		Reason:      ReasonFor(cause),
		Description: SanitizeDescription(description),
		Err:         cause,
	}
}

func (e *FlowError) Error() string {
	msg := string(e.Reason)
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += " (" + e.Err.Error() + ")"
	}
	return msg
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// SanitizeDescription strips control characters and caps the length of a
// description that may be shown to the end user.
func SanitizeDescription(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > maxDescriptionLen {
		s = string(runes[:maxDescriptionLen])
	}
	return s
}
