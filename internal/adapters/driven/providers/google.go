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

// Ensure GoogleAdapter implements the interface.
var _ driven.ProviderAdapter = (*GoogleAdapter)(nil)

// GoogleAdapter connects Google Ads accounts.
type GoogleAdapter struct {
	flow oauth2Flow
}

// NewGoogleAdapter creates a Google adapter. A nil client uses a default one.
func NewGoogleAdapter(httpClient *http.Client) *GoogleAdapter {
	return &GoogleAdapter{
		flow: oauth2Flow{httpClient: defaultHTTPClient(httpClient), authStyle: oauth2.AuthStyleInParams},
	}
}

func (a *GoogleAdapter) Type() domain.ProviderType {
	return domain.ProviderTypeGoogle
}

// BuildAuthURL requests offline access and forces the consent screen so a
// refresh token is issued on every connection.
func (a *GoogleAdapter) BuildAuthURL(desc *domain.ProviderDescriptor, state, codeChallenge string) string {
	return a.flow.authCodeURL(desc, state, codeChallenge,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

func (a *GoogleAdapter) ExchangeCode(ctx context.Context, desc *domain.ProviderDescriptor, code, codeVerifier string) (*driven.ProviderToken, error) {
	return a.flow.exchange(ctx, desc, code, codeVerifier)
}

func (a *GoogleAdapter) RefreshToken(ctx context.Context, desc *domain.ProviderDescriptor, refreshToken string) (*driven.ProviderToken, error) {
	return a.flow.refresh(ctx, desc, refreshToken)
}

// RevokeToken posts the token to Google's revocation endpoint.
func (a *GoogleAdapter) RevokeToken(ctx context.Context, desc *domain.ProviderDescriptor, accessToken string) error {
	status, _, err := send(ctx, a.flow.httpClient, http.MethodPost, desc.RevocationURL, url.Values{
		"token": {accessToken},
	})
	if err != nil {
		return err
	}
	return revocationError(status)
}

// FetchProfile reads the OpenID Connect userinfo endpoint.
func (a *GoogleAdapter) FetchProfile(ctx context.Context, desc *domain.ProviderDescriptor, token *driven.ProviderToken) (*domain.ProviderProfile, error) {
	var user struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := getJSON(ctx, a.flow.httpClient, desc.UserInfoURL, token.AccessToken, &user); err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	return &domain.ProviderProfile{
		ID:         user.Sub,
		Name:       user.Name,
		Email:      user.Email,
		PictureURL: user.Picture,
	}, nil
}
