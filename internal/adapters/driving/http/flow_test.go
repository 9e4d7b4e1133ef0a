package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/adconnect/internal/core/ports/driving"
	"github.com/custodia-labs/adconnect/internal/core/services"
)

// TestConnectionFlow_EndToEnd drives authorize, callback, status and
// disconnect through the real router and connection service.
func TestConnectionFlow_EndToEnd(t *testing.T) {
	registry := mocks.NewMockProviderRegistry()
	adapter := registry.Register(&domain.ProviderDescriptor{
		Type:         domain.ProviderTypeTikTok,
		AuthURL:      "https://www.tiktok.com/v2/auth/authorize/",
		TokenURL:     "https://open.tiktokapis.com/v2/oauth/token/",
		RequiresPKCE: true,
		RedirectURI:  "https://api.example.com/auth/tiktok/callback",
		ClientID:     "client-key",
		ClientSecret: "secret",
	})
	membership := mocks.NewMockMembershipChecker()
	membership.Add("user-1", "org-1")
	connections := mocks.NewMockConnectionStore()

	conn := services.NewConnectionService(services.ConnectionServiceConfig{
		Providers:   registry,
		Attempts:    mocks.NewMockAttemptStore(),
		Connections: connections,
		Membership:  membership,
		StatusCache: mocks.NewMockStatusCache(),
		Logger:      discardLogger(),
	})
	s := newTestServer(conn, nil, nil)

	// Authorize
	req := httptest.NewRequest("GET", "/api/v1/organizations/org-1/connections/tiktok/authorize", nil)
	req.Header.Set("Authorization", "Bearer user-1")
	rr := serve(s, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var auth driving.AuthorizeResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&auth))
	assert.Contains(t, auth.AuthorizationURL, "code_challenge_method=S256")
	stateCookie := findCookie(rr, stateCookieName(domain.ProviderTypeTikTok))
	require.NotNil(t, stateCookie)
	assert.Equal(t, auth.State, stateCookie.Value)

	// Callback from the same browser
	req = httptest.NewRequest("GET", "/auth/tiktok/callback?code=the-code&state="+auth.State, nil)
	req.AddCookie(stateCookie)
	rr = serve(s, req)

	path, q := locationQuery(t, rr)
	assert.Equal(t, "/home/org-1", path)
	assert.Equal(t, "connected", q.Get("tiktok"))
	assert.NotEmpty(t, adapter.LastCodeVerifier)
	assert.Equal(t, 1, connections.Count())

	// Replaying the same callback fails
	req = httptest.NewRequest("GET", "/auth/tiktok/callback?code=the-code&state="+auth.State, nil)
	rr = serve(s, req)
	_, q = locationQuery(t, rr)
	assert.Equal(t, "invalid_state", q.Get("error"))
	assert.Equal(t, 1, adapter.ExchangeCalls)

	// Status
	req = httptest.NewRequest("GET", "/api/v1/organizations/org-1/connections/tiktok", nil)
	req.Header.Set("Authorization", "Bearer user-1")
	rr = serve(s, req)
	var status domain.ConnectionStatus
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
	assert.True(t, status.IsConnected)
	assert.NotContains(t, rr.Body.String(), "access-the-code")

	// Disconnect, then status flips
	req = httptest.NewRequest("DELETE", "/api/v1/organizations/org-1/connections/tiktok", nil)
	req.Header.Set("Authorization", "Bearer user-1")
	rr = serve(s, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, connections.Count())

	req = httptest.NewRequest("GET", "/api/v1/organizations/org-1/connections/tiktok", nil)
	req.Header.Set("Authorization", "Bearer user-1")
	rr = serve(s, req)
	status = domain.ConnectionStatus{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
	assert.False(t, status.IsConnected)
}
