package providers

import "github.com/custodia-labs/adconnect/internal/core/domain"

const graphAPIVersion = "v19.0"

// DefaultDescriptor returns a fresh descriptor with the provider's production
// endpoints and scopes. Credentials are left empty.
func DefaultDescriptor(pt domain.ProviderType) *domain.ProviderDescriptor {
	switch pt {
	case domain.ProviderTypeGoogle:
		return &domain.ProviderDescriptor{
			Type:          pt,
			AuthURL:       "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:      "https://oauth2.googleapis.com/token",
			RevocationURL: "https://oauth2.googleapis.com/revoke",
			UserInfoURL:   "https://openidconnect.googleapis.com/v1/userinfo",
			Scopes: []string{
				"https://www.googleapis.com/auth/adwords",
				"openid",
				"email",
				"profile",
			},
		}
	case domain.ProviderTypeFacebook:
		return &domain.ProviderDescriptor{
			Type:          pt,
			AuthURL:       "https://www.facebook.com/" + graphAPIVersion + "/dialog/oauth",
			TokenURL:      "https://graph.facebook.com/" + graphAPIVersion + "/oauth/access_token",
			RevocationURL: "https://graph.facebook.com/" + graphAPIVersion + "/me/permissions",
			UserInfoURL:   "https://graph.facebook.com/" + graphAPIVersion + "/me?fields=id,name,email,picture",
			Scopes: []string{
				"ads_management",
				"ads_read",
				"business_management",
				"email",
				"public_profile",
			},
			ScopeSeparator: ",",
		}
	case domain.ProviderTypeLinkedIn:
		return &domain.ProviderDescriptor{
			Type:          pt,
			AuthURL:       "https://www.linkedin.com/oauth/v2/authorization",
			TokenURL:      "https://www.linkedin.com/oauth/v2/accessToken",
			RevocationURL: "https://www.linkedin.com/oauth/v2/revoke",
			UserInfoURL:   "https://api.linkedin.com/v2/userinfo",
			Scopes:        []string{"openid", "profile", "email", "r_ads", "rw_ads"},
		}
	case domain.ProviderTypeTikTok:
		return &domain.ProviderDescriptor{
			Type:           pt,
			AuthURL:        "https://www.tiktok.com/v2/auth/authorize/",
			TokenURL:       "https://open.tiktokapis.com/v2/oauth/token/",
			RevocationURL:  "https://open.tiktokapis.com/v2/oauth/revoke/",
			UserInfoURL:    "https://open.tiktokapis.com/v2/user/info/?fields=open_id,union_id,avatar_url,display_name",
			Scopes:         []string{"user.info.basic"},
			ScopeSeparator: ",",
			RequiresPKCE:   true,
		}
	default:
		return &domain.ProviderDescriptor{Type: pt}
	}
}
