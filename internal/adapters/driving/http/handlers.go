package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driving"
)

const (
	stateCookiePrefix = "oauth_state_"
	stateCookieMaxAge = 5 * time.Minute

	readyTimeout = 2 * time.Second
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid_state"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ConnectionListResponse wraps the per-provider statuses
// @Description Connection status for every provider
type ConnectionListResponse struct {
	Connections []*domain.ConnectionStatus `json:"connections"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings PostgreSQL and Redis
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  StatusResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	for name, p := range map[string]Pinger{"postgres": s.db, "redis": s.redisClient} {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "dependency", name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "not ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Provider endpoints

// handleListProviders godoc
// @Summary      List providers
// @Description  Lists every supported ad platform and whether it is configured
// @Tags         Providers
// @Produce      json
// @Success      200  {array}  domain.ProviderInfo
// @Router       /api/v1/providers [get]
func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.connectionService.Providers())
}

// Connection flow endpoints

// handleAuthorize godoc
// @Summary      Start a provider connection
// @Description  Returns the provider authorization URL and binds the state to this browser with a cookie
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Param        organizationId  path      string  true  "Organization ID"
// @Param        provider        path      string  true  "Provider"  Enums(google, facebook, linkedin, tiktok)
// @Success      200  {object}  driving.AuthorizeResponse
// @Failure      400  {object}  ErrorResponse  "Unsupported or unconfigured provider"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Not a member of the organization"
// @Router       /api/v1/organizations/{organizationId}/connections/{provider}/authorize [get]
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	provider, err := domain.ParseProviderType(r.PathValue("provider"))
	if err != nil {
		writeReason(w, err)
		return
	}

	resp, err := s.connectionService.Authorize(r.Context(), driving.AuthorizeRequest{
		OrganizationID: r.PathValue("organizationId"),
		Provider:       provider,
		UserID:         userID(r),
	})
	if err != nil {
		writeReason(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName(provider),
		Value:    resp.State,
		Path:     "/auth",
		MaxAge:   int(stateCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, resp)
}

// handleCallback godoc
// @Summary      Provider callback
// @Description  Completes the authorization flow and redirects the browser
// @Tags         Connections
// @Param        provider           path   string  true   "Provider"
// @Param        code               query  string  false  "Authorization code"
// @Param        state              query  string  false  "State issued by authorize"
// @Param        error              query  string  false  "Provider error code"
// @Param        error_description  query  string  false  "Provider error description"
// @Success      302
// @Router       /auth/{provider}/callback [get]
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := q.Get("state")

	provider, err := domain.ParseProviderType(r.PathValue("provider"))
	if err != nil {
		s.redirect(w, r, driving.ErrorRedirect(err))
		return
	}

	// The cookie is single-use whatever the outcome
	cookie, cookieErr := r.Cookie(stateCookieName(provider))
	s.clearStateCookie(w, provider)

	if cookieErr == nil && subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		s.logger.Warn("callback state does not match browser cookie", "provider", provider)
		s.redirect(w, r, driving.ErrorRedirect(domain.ErrInvalidState))
		return
	}

	result, err := s.connectionService.Callback(r.Context(), driving.CallbackRequest{
		Provider:         provider,
		Code:             q.Get("code"),
		State:            state,
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
		UserID:           userID(r),
	})
	if err != nil {
		s.redirect(w, r, driving.ErrorRedirect(err))
		return
	}
	s.redirect(w, r, result.RedirectPath)
}

// handleGetStatus godoc
// @Summary      Connection status
// @Description  Reports whether the caller has connected the provider. Never fails.
// @Tags         Connections
// @Produce      json
// @Param        organizationId  path  string  true  "Organization ID"
// @Param        provider        path  string  true  "Provider"
// @Success      200  {object}  domain.ConnectionStatus
// @Router       /api/v1/organizations/{organizationId}/connections/{provider} [get]
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("provider")
	provider, err := domain.ParseProviderType(raw)
	if err != nil {
		writeJSON(w, http.StatusOK, domain.NotConnected(domain.ProviderType(raw)))
		return
	}

	status := s.connectionService.Status(r.Context(), driving.ConnectionRequest{
		OrganizationID: r.PathValue("organizationId"),
		Provider:       provider,
		UserID:         userID(r),
	})
	writeJSON(w, http.StatusOK, status)
}

// handleListConnections godoc
// @Summary      List connections
// @Description  Reports the connection status of every provider for the caller
// @Tags         Connections
// @Produce      json
// @Param        organizationId  path  string  true  "Organization ID"
// @Success      200  {object}  ConnectionListResponse
// @Router       /api/v1/organizations/{organizationId}/connections [get]
func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	statuses := s.connectionService.List(r.Context(), userID(r), r.PathValue("organizationId"))
	writeJSON(w, http.StatusOK, ConnectionListResponse{Connections: statuses})
}

// handleDisconnect godoc
// @Summary      Disconnect a provider
// @Description  Revokes the token at the provider (best effort) and deletes the connection
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Param        organizationId  path  string  true  "Organization ID"
// @Param        provider        path  string  true  "Provider"
// @Success      200  {object}  driving.DisconnectResult
// @Failure      400  {object}  driving.DisconnectResult
// @Failure      404  {object}  driving.DisconnectResult
// @Failure      500  {object}  driving.DisconnectResult
// @Router       /api/v1/organizations/{organizationId}/connections/{provider} [delete]
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	provider, err := domain.ParseProviderType(r.PathValue("provider"))
	if err != nil {
		writeDisconnectError(w, err)
		return
	}

	result, err := s.connectionService.Disconnect(r.Context(), driving.ConnectionRequest{
		OrganizationID: r.PathValue("organizationId"),
		Provider:       provider,
		UserID:         userID(r),
	})
	if err != nil {
		writeDisconnectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRefresh godoc
// @Summary      Refresh provider tokens
// @Description  Uses the stored refresh token to obtain a new access token
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Param        organizationId  path  string  true  "Organization ID"
// @Param        provider        path  string  true  "Provider"
// @Success      200  {object}  domain.ConnectionStatus
// @Failure      400  {object}  ErrorResponse  "Refresh not supported"
// @Failure      404  {object}  ErrorResponse  "Connection not found"
// @Failure      502  {object}  ErrorResponse  "Provider rejected the refresh"
// @Router       /api/v1/organizations/{organizationId}/connections/{provider}/refresh [post]
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	provider, err := domain.ParseProviderType(r.PathValue("provider"))
	if err != nil {
		writeReason(w, err)
		return
	}

	status, err := s.connectionService.Refresh(r.Context(), driving.ConnectionRequest{
		OrganizationID: r.PathValue("organizationId"),
		Provider:       provider,
		UserID:         userID(r),
	})
	if err != nil {
		writeReason(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Helpers

// stateCookieName scopes the state cookie to one provider so attempts
// started in parallel from the same browser do not overwrite each other.
func stateCookieName(provider domain.ProviderType) string {
	return stateCookiePrefix + string(provider)
}

func (s *Server) clearStateCookie(w http.ResponseWriter, provider domain.ProviderType) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName(provider),
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, s.frontendURL+path, http.StatusFound)
}

// httpStatus maps a reason code to a response status
func httpStatus(reason domain.Reason) int {
	switch reason {
	case domain.ReasonUnauthorized:
		return http.StatusUnauthorized
	case domain.ReasonForbidden:
		return http.StatusForbidden
	case domain.ReasonConnectionNotFound:
		return http.StatusNotFound
	case domain.ReasonRefreshFailed:
		return http.StatusBadGateway
	case domain.ReasonDeletionFailed, domain.ReasonConnectionFailed, domain.ReasonInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// writeReason writes only the reason code; wrapped causes stay in server logs
func writeReason(w http.ResponseWriter, err error) {
	reason := domain.ReasonFor(err)
	writeError(w, httpStatus(reason), string(reason))
}

func writeDisconnectError(w http.ResponseWriter, err error) {
	reason := domain.ReasonFor(err)
	writeJSON(w, httpStatus(reason), driving.DisconnectResult{Success: false, Error: string(reason)})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

