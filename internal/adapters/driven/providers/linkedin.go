package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
)

// Ensure LinkedInAdapter implements the interface.
var _ driven.ProviderAdapter = (*LinkedInAdapter)(nil)

// LinkedInAdapter connects LinkedIn Ads accounts.
type LinkedInAdapter struct {
	flow oauth2Flow
}

// NewLinkedInAdapter creates a LinkedIn adapter. A nil client uses a default one.
func NewLinkedInAdapter(httpClient *http.Client) *LinkedInAdapter {
	return &LinkedInAdapter{
		// LinkedIn rejects HTTP basic client authentication.
		flow: oauth2Flow{httpClient: defaultHTTPClient(httpClient), authStyle: oauth2.AuthStyleInParams},
	}
}

func (a *LinkedInAdapter) Type() domain.ProviderType {
	return domain.ProviderTypeLinkedIn
}

func (a *LinkedInAdapter) BuildAuthURL(desc *domain.ProviderDescriptor, state, codeChallenge string) string {
	return a.flow.authCodeURL(desc, state, codeChallenge)
}

func (a *LinkedInAdapter) ExchangeCode(ctx context.Context, desc *domain.ProviderDescriptor, code, codeVerifier string) (*driven.ProviderToken, error) {
	return a.flow.exchange(ctx, desc, code, codeVerifier)
}

// RefreshToken only succeeds for apps LinkedIn has enabled for programmatic
// refresh; others get an error from the token endpoint.
func (a *LinkedInAdapter) RefreshToken(ctx context.Context, desc *domain.ProviderDescriptor, refreshToken string) (*driven.ProviderToken, error) {
	return a.flow.refresh(ctx, desc, refreshToken)
}

func (a *LinkedInAdapter) RevokeToken(ctx context.Context, desc *domain.ProviderDescriptor, accessToken string) error {
	status, _, err := send(ctx, a.flow.httpClient, http.MethodPost, desc.RevocationURL, url.Values{
		"client_id":     {desc.ClientID},
		"client_secret": {desc.ClientSecret},
		"token":         {accessToken},
	})
	if err != nil {
		return err
	}
	return revocationError(status)
}

func (a *LinkedInAdapter) FetchProfile(ctx context.Context, desc *domain.ProviderDescriptor, token *driven.ProviderToken) (*domain.ProviderProfile, error) {
	var user struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := getJSON(ctx, a.flow.httpClient, desc.UserInfoURL, token.AccessToken, &user); err != nil {
		return nil, fmt.Errorf("linkedin userinfo: %w", err)
	}
	return &domain.ProviderProfile{
		ID:         user.Sub,
		Name:       user.Name,
		Email:      user.Email,
		PictureURL: user.Picture,
	}, nil
}
