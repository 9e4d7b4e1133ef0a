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

// Ensure FacebookAdapter implements the interface.
var _ driven.ProviderAdapter = (*FacebookAdapter)(nil)

// FacebookAdapter connects Meta (Facebook) ad accounts through the Graph API.
// Meta issues no refresh tokens; reconnecting is the only way to renew.
type FacebookAdapter struct {
	flow oauth2Flow
}

// NewFacebookAdapter creates a Facebook adapter. A nil client uses a default one.
func NewFacebookAdapter(httpClient *http.Client) *FacebookAdapter {
	return &FacebookAdapter{
		flow: oauth2Flow{httpClient: defaultHTTPClient(httpClient), authStyle: oauth2.AuthStyleInParams},
	}
}

func (a *FacebookAdapter) Type() domain.ProviderType {
	return domain.ProviderTypeFacebook
}

func (a *FacebookAdapter) BuildAuthURL(desc *domain.ProviderDescriptor, state, codeChallenge string) string {
	return a.flow.authCodeURL(desc, state, codeChallenge)
}

func (a *FacebookAdapter) ExchangeCode(ctx context.Context, desc *domain.ProviderDescriptor, code, codeVerifier string) (*driven.ProviderToken, error) {
	return a.flow.exchange(ctx, desc, code, codeVerifier)
}

func (a *FacebookAdapter) RefreshToken(ctx context.Context, desc *domain.ProviderDescriptor, refreshToken string) (*driven.ProviderToken, error) {
	return nil, domain.ErrRefreshUnsupported
}

// RevokeToken removes every permission the user granted to the app.
func (a *FacebookAdapter) RevokeToken(ctx context.Context, desc *domain.ProviderDescriptor, accessToken string) error {
	target, err := withQuery(desc.RevocationURL, url.Values{"access_token": {accessToken}})
	if err != nil {
		return err
	}
	status, _, err := send(ctx, a.flow.httpClient, http.MethodDelete, target, nil)
	if err != nil {
		return err
	}
	return revocationError(status)
}

func (a *FacebookAdapter) FetchProfile(ctx context.Context, desc *domain.ProviderDescriptor, token *driven.ProviderToken) (*domain.ProviderProfile, error) {
	var me struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := getJSON(ctx, a.flow.httpClient, desc.UserInfoURL, token.AccessToken, &me); err != nil {
		return nil, fmt.Errorf("facebook me: %w", err)
	}
	return &domain.ProviderProfile{
		ID:         me.ID,
		Name:       me.Name,
		Email:      me.Email,
		PictureURL: me.Picture.Data.URL,
	}, nil
}

// withQuery merges params into the query string of rawURL.
func withQuery(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
