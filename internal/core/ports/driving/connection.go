package driving

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/custodia-labs/adconnect/internal/core/domain"
)

// ConnectionService runs the connection lifecycle: authorization, callback
// handling, status reads, refresh and disconnect.
type ConnectionService interface {
	// Authorize starts an authorization flow.
	// Returns an authorization URL to redirect the user to.
	// The attempt is stored for state validation during callback.
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error)

	// Callback handles the redirect back from the provider.
	// It validates state, exchanges the code, and upserts the connection.
	// Failures are returned as *domain.FlowError.
	Callback(ctx context.Context, req CallbackRequest) (*CallbackResult, error)

	// Disconnect revokes (best effort) and deletes a connection.
	Disconnect(ctx context.Context, req ConnectionRequest) (*DisconnectResult, error)

	// Status reports whether a connection exists. It never fails.
	Status(ctx context.Context, req ConnectionRequest) *domain.ConnectionStatus

	// List reports the status of every provider for a user in an organization.
	List(ctx context.Context, userID, organizationID string) []*domain.ConnectionStatus

	// Refresh re-obtains tokens using the stored refresh token.
	Refresh(ctx context.Context, req ConnectionRequest) (*domain.ConnectionStatus, error)

	// Providers lists provider metadata for the UI.
	Providers() []*domain.ProviderInfo
}

// AuthorizeRequest represents a request to start an authorization flow.
type AuthorizeRequest struct {
	OrganizationID string
	Provider       domain.ProviderType
	UserID         string
}

// AuthorizeResponse contains the authorization URL and state.
// @Description Response containing the provider authorization URL
type AuthorizeResponse struct {
	// AuthorizationURL is the URL to redirect the user to.
	AuthorizationURL string `json:"authorization_url" example:"https://www.linkedin.com/oauth/v2/authorization?client_id=..."`

	// State is the value the provider will echo back on the callback.
	State string `json:"state" example:"4f0c...__9b1e..."`

	// ExpiresAt is when the attempt expires (typically 5 minutes).
	ExpiresAt time.Time `json:"expires_at" example:"2024-01-15T10:05:00Z"`
}

// CallbackRequest represents the provider redirect.
type CallbackRequest struct {
	Provider         domain.ProviderType
	Code             string
	State            string
	Error            string
	ErrorDescription string

	// UserID is set when the callback request itself is authenticated.
	// It must then match the user who started the attempt.
	UserID string
}

// CallbackResult is the outcome of a successful callback.
type CallbackResult struct {
	OrganizationID string              `json:"organization_id"`
	Provider       domain.ProviderType `json:"provider"`
	RedirectPath   string              `json:"redirect_path"`
}

// ConnectionRequest addresses one connection on behalf of a caller.
type ConnectionRequest struct {
	OrganizationID string
	Provider       domain.ProviderType
	UserID         string
}

// DisconnectResult is the caller-visible outcome of a disconnect.
// @Description Result of disconnecting a provider
type DisconnectResult struct {
	Success bool   `json:"success" example:"true"`
	Error   string `json:"error,omitempty" example:"connection_not_found"`
}

// SuccessRedirect is where the browser lands after a successful connection.
func SuccessRedirect(organizationID string, provider domain.ProviderType) string {
	return fmt.Sprintf("/home/%s?%s=connected&success=1", url.PathEscape(organizationID), provider)
}

// ErrorRedirect is where the browser lands after a failed flow. Only the
// reason code and a sanitized description are carried.
func ErrorRedirect(err error) string {
	target := "/auth/error?error=" + url.QueryEscape(string(domain.ReasonFor(err)))
	var fe *domain.FlowError
	if errors.As(err, &fe) && fe.Description != "" {
		target += "&description=" + url.QueryEscape(fe.Description)
	}
	return target
}
