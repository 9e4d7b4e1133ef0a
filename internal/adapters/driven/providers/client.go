package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 1 << 20

func defaultHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// oauth2Flow is the standard authorization-code flow shared by providers
// whose token endpoints speak plain RFC 6749.
type oauth2Flow struct {
	httpClient *http.Client
	authStyle  oauth2.AuthStyle
}

func (f *oauth2Flow) config(desc *domain.ProviderDescriptor) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     desc.ClientID,
		ClientSecret: desc.ClientSecret,
		RedirectURL:  desc.RedirectURI,
		Scopes:       desc.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   desc.AuthURL,
			TokenURL:  desc.TokenURL,
			AuthStyle: f.authStyle,
		},
	}
}

// clientContext makes x/oauth2 use our HTTP client.
func (f *oauth2Flow) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
}

func (f *oauth2Flow) authCodeURL(desc *domain.ProviderDescriptor, state, codeChallenge string, opts ...oauth2.AuthCodeOption) string {
	if codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	if desc.ScopeSeparator != "" && desc.ScopeSeparator != " " {
		opts = append(opts, oauth2.SetAuthURLParam("scope", desc.JoinedScopes()))
	}
	return f.config(desc).AuthCodeURL(state, opts...)
}

func (f *oauth2Flow) exchange(ctx context.Context, desc *domain.ProviderDescriptor, code, codeVerifier string) (*driven.ProviderToken, error) {
	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}
	tok, err := f.config(desc).Exchange(f.clientContext(ctx), code, opts...)
	if err != nil {
		return nil, exchangeError(err)
	}
	return fromOAuth2Token(tok), nil
}

func (f *oauth2Flow) refresh(ctx context.Context, desc *domain.ProviderDescriptor, refreshToken string) (*driven.ProviderToken, error) {
	src := f.config(desc).TokenSource(f.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		status, body := retrieveDetail(err)
		return nil, fmt.Errorf("refresh token: status %d: %s", status, body)
	}
	return fromOAuth2Token(tok), nil
}

// exchangeError converts an x/oauth2 error into a TokenExchangeError.
func exchangeError(err error) error {
	status, body := retrieveDetail(err)
	return &driven.TokenExchangeError{StatusCode: status, Body: body}
}

func retrieveDetail(err error) (int, string) {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return status, string(re.Body)
	}
	return 0, err.Error()
}

func fromOAuth2Token(tok *oauth2.Token) *driven.ProviderToken {
	pt := &driven.ProviderToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		pt.ExpiresAt = &exp
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		pt.Scopes = splitScopes(scope)
	}
	return pt
}

// splitScopes splits a space- or comma-separated scope string.
func splitScopes(scope string) []string {
	return strings.FieldsFunc(scope, func(r rune) bool {
		return r == ' ' || r == ','
	})
}

// getJSON performs a bearer-authenticated GET and decodes the JSON body.
func getJSON(ctx context.Context, client *http.Client, rawURL, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send performs a request with an optional form body and returns the status
// and a bounded copy of the body.
func send(ctx context.Context, client *http.Client, method, rawURL string, form url.Values) (int, []byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// revocationError reports a non-2xx revocation response.
func revocationError(status int) error {
	if status >= 200 && status < 300 {
		return nil
	}
	return fmt.Errorf("revocation returned %d", status)
}
