package domain

import (
	"strings"
	"time"
)

// ProviderType identifies an advertising platform we connect to
type ProviderType string

const (
	ProviderTypeGoogle   ProviderType = "google"
	ProviderTypeFacebook ProviderType = "facebook"
	ProviderTypeLinkedIn ProviderType = "linkedin"
	ProviderTypeTikTok   ProviderType = "tiktok"
)

// AllProviders returns every supported provider in display order
func AllProviders() []ProviderType {
	return []ProviderType{
		ProviderTypeGoogle,
		ProviderTypeFacebook,
		ProviderTypeLinkedIn,
		ProviderTypeTikTok,
	}
}

// ParseProviderType validates a provider name from a URL or request body.
func ParseProviderType(s string) (ProviderType, error) {
	pt := ProviderType(strings.ToLower(strings.TrimSpace(s)))
	for _, p := range AllProviders() {
		if p == pt {
			return pt, nil
		}
	}
	return "", ErrUnsupportedProvider
}

// DisplayName returns a human-readable name for a provider.
func (p ProviderType) DisplayName() string {
	switch p {
	case ProviderTypeGoogle:
		return "Google Ads"
	case ProviderTypeFacebook:
		return "Meta Ads"
	case ProviderTypeLinkedIn:
		return "LinkedIn Ads"
	case ProviderTypeTikTok:
		return "TikTok"
	default:
		return string(p)
	}
}

// ProviderDescriptor is the static, read-only configuration of one provider.
// It is built once at startup from configuration and never mutated.
type ProviderDescriptor struct {
	Type ProviderType `json:"type"`

	AuthURL       string `json:"auth_url"`
	TokenURL      string `json:"token_url"`
	RevocationURL string `json:"revocation_url,omitempty"` // empty: provider offers no revocation
	UserInfoURL   string `json:"user_info_url,omitempty"`

	Scopes         []string `json:"scopes"`
	ScopeSeparator string   `json:"-"` // defaults to a single space
	RequiresPKCE   bool     `json:"requires_pkce"`
	RedirectURI    string   `json:"redirect_uri"`

	ClientID     string `json:"client_id"` // TikTok calls this the client key
	ClientSecret string `json:"-"`         // never serialize

	// Timeout bounds each token, refresh, revocation and profile call.
	Timeout time.Duration `json:"-"`
}

// IsConfigured reports whether the client credentials needed for any
// network call are present.
func (d *ProviderDescriptor) IsConfigured() bool {
	return d != nil && d.ClientID != "" && d.ClientSecret != "" && d.RedirectURI != ""
}

// SupportsRevocation reports whether a revocation endpoint is known.
func (d *ProviderDescriptor) SupportsRevocation() bool {
	return d != nil && d.RevocationURL != ""
}

// JoinedScopes returns the scope parameter value for the authorization URL.
func (d *ProviderDescriptor) JoinedScopes() string {
	sep := d.ScopeSeparator
	if sep == "" {
		sep = " "
	}
	return strings.Join(d.Scopes, sep)
}

// ProviderInfo is the public view of a configured provider
type ProviderInfo struct {
	Type         ProviderType `json:"type"`
	Name         string       `json:"name"`
	Configured   bool         `json:"configured"`
	RequiresPKCE bool         `json:"requires_pkce"`
	CanRevoke    bool         `json:"can_revoke"`
}

// ToInfo converts a descriptor into its public view.
func (d *ProviderDescriptor) ToInfo() *ProviderInfo {
	return &ProviderInfo{
		Type:         d.Type,
		Name:         d.Type.DisplayName(),
		Configured:   d.IsConfigured(),
		RequiresPKCE: d.RequiresPKCE,
		CanRevoke:    d.SupportsRevocation(),
	}
}
