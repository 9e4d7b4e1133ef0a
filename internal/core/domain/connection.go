package domain

import "time"

// tokenRefreshWindow is how close to expiry a token must be to count as stale.
const tokenRefreshWindow = 5 * time.Minute

// Connection is one user's credential for one provider within one organization.
// (UserID, OrganizationID, Provider) is unique.
type Connection struct {
	UserID         string       `json:"user_id"`
	OrganizationID string       `json:"organization_id"`
	Provider       ProviderType `json:"provider"`

	// Secrets; encrypted at rest and never serialized
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`

	// TokenExpiresAt nil means the provider gave no expiry
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	Scopes         []string   `json:"scopes,omitempty"`

	// Informational profile fields; never used for authorization decisions
	ProviderUserID    string `json:"provider_user_id,omitempty"`
	DisplayName       string `json:"display_name,omitempty"`
	Email             string `json:"email,omitempty"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConnectionKey identifies a connection
type ConnectionKey struct {
	UserID         string
	OrganizationID string
	Provider       ProviderType
}

// Key returns the identity tuple of the connection.
func (c *Connection) Key() ConnectionKey {
	return ConnectionKey{
		UserID:         c.UserID,
		OrganizationID: c.OrganizationID,
		Provider:       c.Provider,
	}
}

// HasRefreshToken reports whether the connection can be refreshed.
func (c *Connection) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// NeedsRevalidation returns true when the token is expired, about to expire,
// or has no known expiry at all.
func (c *Connection) NeedsRevalidation() bool {
	if c.TokenExpiresAt == nil {
		return true
	}
	return time.Until(*c.TokenExpiresAt) < tokenRefreshWindow
}

// ToStatus projects the connection onto its non-secret status view.
func (c *Connection) ToStatus() *ConnectionStatus {
	return &ConnectionStatus{
		Provider:          c.Provider,
		IsConnected:       true,
		DisplayName:       c.DisplayName,
		Email:             c.Email,
		ProfilePictureURL: c.ProfilePictureURL,
		TokenExpiresAt:    c.TokenExpiresAt,
		NeedsReauth:       c.NeedsRevalidation() && !c.HasRefreshToken(),
		ConnectedAt:       &c.CreatedAt,
	}
}

// ConnectionStatus is the only view of a connection handed to UI callers.
type ConnectionStatus struct {
	Provider          ProviderType `json:"provider"`
	IsConnected       bool         `json:"is_connected"`
	DisplayName       string       `json:"display_name,omitempty"`
	Email             string       `json:"email,omitempty"`
	ProfilePictureURL string       `json:"profile_picture,omitempty"`
	TokenExpiresAt    *time.Time   `json:"token_expires_at,omitempty"`
	NeedsReauth       bool         `json:"needs_reauth,omitempty"`
	ConnectedAt       *time.Time   `json:"connected_at,omitempty"`
}

// NotConnected is the negative status. It is returned for every reason a
// connection cannot be reported, so callers cannot tell them apart.
func NotConnected(provider ProviderType) *ConnectionStatus {
	return &ConnectionStatus{Provider: provider, IsConnected: false}
}

// ProviderProfile is the minimal identity a provider reports for a token.
type ProviderProfile struct {
	ID         string
	Name       string
	Email      string
	PictureURL string
}

// ApplyProfile copies informational profile fields onto the connection.
func (c *Connection) ApplyProfile(p *ProviderProfile) {
	if p == nil {
		return
	}
	c.ProviderUserID = p.ID
	c.DisplayName = p.Name
	c.Email = p.Email
	c.ProfilePictureURL = p.PictureURL
}
