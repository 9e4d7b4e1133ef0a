package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
)

// Ensure TikTokAdapter implements the interface.
var _ driven.ProviderAdapter = (*TikTokAdapter)(nil)

// TikTokAdapter connects TikTok accounts via Login Kit v2.
// TikTok names the client id "client_key", separates scopes with commas and
// returns the user's open_id with the token, so it does not fit x/oauth2.
type TikTokAdapter struct {
	httpClient *http.Client
	now        func() time.Time
}

// NewTikTokAdapter creates a TikTok adapter. A nil client uses a default one.
func NewTikTokAdapter(httpClient *http.Client) *TikTokAdapter {
	return &TikTokAdapter{
		httpClient: defaultHTTPClient(httpClient),
		now:        time.Now,
	}
}

func (a *TikTokAdapter) Type() domain.ProviderType {
	return domain.ProviderTypeTikTok
}

// BuildAuthURL constructs the TikTok authorization URL.
func (a *TikTokAdapter) BuildAuthURL(desc *domain.ProviderDescriptor, state, codeChallenge string) string {
	params := url.Values{
		"client_key":    {desc.ClientID},
		"redirect_uri":  {desc.RedirectURI},
		"state":         {state},
		"scope":         {desc.JoinedScopes()},
		"response_type": {"code"},
	}
	if codeChallenge != "" {
		params.Set("code_challenge", codeChallenge)
		params.Set("code_challenge_method", "S256")
	}
	return desc.AuthURL + "?" + params.Encode()
}

// tiktokTokenResponse is the token endpoint payload. Errors may arrive with
// a 200 status, so the error field is checked as well.
type tiktokTokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	OpenID           string `json:"open_id"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeCode exchanges an authorization code for tokens.
func (a *TikTokAdapter) ExchangeCode(ctx context.Context, desc *domain.ProviderDescriptor, code, codeVerifier string) (*driven.ProviderToken, error) {
	params := url.Values{
		"client_key":    {desc.ClientID},
		"client_secret": {desc.ClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {desc.RedirectURI},
	}
	if codeVerifier != "" {
		params.Set("code_verifier", codeVerifier)
	}

	status, body, err := send(ctx, a.httpClient, http.MethodPost, desc.TokenURL, params)
	if err != nil {
		return nil, &driven.TokenExchangeError{Body: err.Error()}
	}

	token, err := a.decodeToken(status, body)
	if err != nil {
		return nil, &driven.TokenExchangeError{StatusCode: status, Body: string(body)}
	}
	return token, nil
}

// RefreshToken refreshes an access token.
func (a *TikTokAdapter) RefreshToken(ctx context.Context, desc *domain.ProviderDescriptor, refreshToken string) (*driven.ProviderToken, error) {
	params := url.Values{
		"client_key":    {desc.ClientID},
		"client_secret": {desc.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	status, body, err := send(ctx, a.httpClient, http.MethodPost, desc.TokenURL, params)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	token, err := a.decodeToken(status, body)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return token, nil
}

func (a *TikTokAdapter) decodeToken(status int, body []byte) (*driven.ProviderToken, error) {
	if status != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned %d", status)
	}

	var resp tiktokTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("oauth error: %s - %s", resp.Error, resp.ErrorDescription)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("missing access_token")
	}

	return &driven.ProviderToken{
		AccessToken:    resp.AccessToken,
		RefreshToken:   resp.RefreshToken,
		TokenType:      resp.TokenType,
		ExpiresAt:      driven.ExpiresAtFrom(a.now(), resp.ExpiresIn),
		Scopes:         splitScopes(resp.Scope),
		ProviderUserID: resp.OpenID,
	}, nil
}

// RevokeToken revokes the access token.
func (a *TikTokAdapter) RevokeToken(ctx context.Context, desc *domain.ProviderDescriptor, accessToken string) error {
	status, _, err := send(ctx, a.httpClient, http.MethodPost, desc.RevocationURL, url.Values{
		"client_key":    {desc.ClientID},
		"client_secret": {desc.ClientSecret},
		"token":         {accessToken},
	})
	if err != nil {
		return err
	}
	return revocationError(status)
}

// FetchProfile fetches the authenticated user's basic info.
func (a *TikTokAdapter) FetchProfile(ctx context.Context, desc *domain.ProviderDescriptor, token *driven.ProviderToken) (*domain.ProviderProfile, error) {
	var resp struct {
		Data struct {
			User struct {
				OpenID      string `json:"open_id"`
				UnionID     string `json:"union_id"`
				AvatarURL   string `json:"avatar_url"`
				DisplayName string `json:"display_name"`
			} `json:"user"`
		} `json:"data"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := getJSON(ctx, a.httpClient, desc.UserInfoURL, token.AccessToken, &resp); err != nil {
		return nil, fmt.Errorf("tiktok user info: %w", err)
	}
	if resp.Error.Code != "" && resp.Error.Code != "ok" {
		return nil, fmt.Errorf("tiktok user info: %s", resp.Error.Code)
	}

	id := resp.Data.User.OpenID
	if id == "" {
		id = token.ProviderUserID
	}
	return &domain.ProviderProfile{
		ID:         id,
		Name:       resp.Data.User.DisplayName,
		PictureURL: resp.Data.User.AvatarURL,
	}, nil
}
