package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
	"github.com/custodia-labs/adconnect/internal/core/ports/driving"
)

// Ensure connectionService implements ConnectionService
var _ driving.ConnectionService = (*connectionService)(nil)

const (
	defaultProviderTimeout = 10 * time.Second
	defaultStoreTimeout    = 5 * time.Second
)

// ConnectionServiceConfig holds configuration for the connection service.
type ConnectionServiceConfig struct {
	// Providers resolves adapters and descriptors.
	Providers driven.ProviderRegistry

	// Attempts holds in-flight authorization attempts.
	Attempts driven.AuthorizationAttemptStore

	// Connections persists established connections.
	Connections driven.ConnectionStore

	// Membership checks organization membership. Optional; nil allows every
	// authenticated user.
	Membership driven.MembershipChecker

	// StatusCache caches status reads. Optional.
	StatusCache driven.StatusCache

	// AttemptTTL is how long an authorization attempt stays valid.
	// Defaults to 5 minutes.
	AttemptTTL time.Duration

	// StoreTimeout bounds each persistence call. Defaults to 5 seconds.
	StoreTimeout time.Duration

	Logger *slog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// connectionService implements the ConnectionService interface.
type connectionService struct {
	providers    driven.ProviderRegistry
	attempts     driven.AuthorizationAttemptStore
	connections  driven.ConnectionStore
	membership   driven.MembershipChecker
	statusCache  driven.StatusCache
	attemptTTL   time.Duration
	storeTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewConnectionService creates a new connection service.
func NewConnectionService(cfg ConnectionServiceConfig) driving.ConnectionService {
	if cfg.AttemptTTL <= 0 {
		cfg.AttemptTTL = domain.DefaultAttemptTTL
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &connectionService{
		providers:    cfg.Providers,
		attempts:     cfg.Attempts,
		connections:  cfg.Connections,
		membership:   cfg.Membership,
		statusCache:  cfg.StatusCache,
		attemptTTL:   cfg.AttemptTTL,
		storeTimeout: cfg.StoreTimeout,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
}

// Authorize starts an authorization flow.
// It generates the state (and PKCE pair when required), stores the attempt,
// and returns the provider authorization URL.
func (s *connectionService) Authorize(ctx context.Context, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error) {
	if strings.TrimSpace(req.OrganizationID) == "" {
		return nil, domain.ErrMissingOrganization
	}

	adapter, desc, err := s.providers.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	if err := s.requireMember(ctx, req.UserID, req.OrganizationID); err != nil {
		return nil, err
	}

	nonce := newNonce()
	state, err := EncodeState(nonce, req.OrganizationID)
	if err != nil {
		return nil, err
	}

	var codeVerifier, codeChallenge string
	if desc.RequiresPKCE {
		pkce := GeneratePKCE()
		codeVerifier, codeChallenge = pkce.Verifier, pkce.Challenge
	}

	now := s.now()
	attempt := &domain.AuthorizationAttempt{
		Nonce:          nonce,
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		Provider:       desc.Type,
		CodeVerifier:   codeVerifier,
		RedirectURI:    desc.RedirectURI,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.attemptTTL),
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.attempts.Save(storeCtx, attempt); err != nil {
		return nil, fmt.Errorf("save authorization attempt: %w", err)
	}

	s.logger.Info("authorization started",
		"provider", desc.Type,
		"organization_id", req.OrganizationID,
		"user_id", req.UserID,
		"pkce", desc.RequiresPKCE,
	)

	return &driving.AuthorizeResponse{
		AuthorizationURL: adapter.BuildAuthURL(desc, state, codeChallenge),
		State:            state,
		ExpiresAt:        attempt.ExpiresAt,
	}, nil
}

// Callback handles the redirect back from the provider.
// Every failure is a *domain.FlowError; the attempt is consumed before any
// provider call so a state can never be replayed.
func (s *connectionService) Callback(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResult, error) {
	logger := s.logger.With("provider", req.Provider)

	if req.Error != "" {
		description := req.ErrorDescription
		if description == "" {
			description = req.Error
		}
		return nil, s.fail(logger, "received_callback", domain.ErrProviderDenied, description)
	}

	payload, err := DecodeState(req.State)
	if err != nil {
		return nil, s.fail(logger, "validate_state", err, "")
	}
	logger = logger.With("organization_id", payload.OrganizationID)

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	attempt, err := s.attempts.Consume(storeCtx, payload.Nonce)
	cancel()
	if err != nil {
		return nil, s.fail(logger, "validate_state", fmt.Errorf("consume attempt: %w", err), "")
	}
	if attempt == nil || attempt.IsExpired(s.now()) {
		return nil, s.fail(logger, "validate_state", domain.ErrInvalidState, "")
	}
	if attempt.OrganizationID != payload.OrganizationID || attempt.Provider != req.Provider {
		return nil, s.fail(logger, "validate_state", domain.ErrInvalidState, "")
	}
	if req.UserID != "" && req.UserID != attempt.UserID {
		return nil, s.fail(logger, "validate_state", domain.ErrInvalidState, "")
	}

	adapter, desc, err := s.providers.Get(attempt.Provider)
	if err != nil {
		return nil, s.fail(logger, "exchange_code", err, "")
	}

	if req.Code == "" {
		return nil, s.fail(logger, "exchange_code", domain.ErrTokenExchangeFailed, "missing authorization code")
	}

	callCtx, cancel := s.providerContext(ctx, desc)
	token, err := adapter.ExchangeCode(callCtx, desc, req.Code, attempt.CodeVerifier)
	cancel()
	if err != nil {
		var exchangeErr *driven.TokenExchangeError
		if errors.As(err, &exchangeErr) {
			logger.Warn("token endpoint rejected code",
				"status", exchangeErr.StatusCode,
				"body", truncate(exchangeErr.Body, 512),
			)
		}
		if !errors.Is(err, domain.ErrTokenExchangeFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrTokenExchangeFailed, err)
		}
		return nil, s.fail(logger, "exchange_code", err, "")
	}
	if token == nil || token.AccessToken == "" {
		return nil, s.fail(logger, "exchange_code", domain.ErrTokenExchangeFailed, "no access token returned")
	}

	now := s.now()
	conn := &domain.Connection{
		UserID:         attempt.UserID,
		OrganizationID: attempt.OrganizationID,
		Provider:       attempt.Provider,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		TokenExpiresAt: token.ExpiresAt,
		Scopes:         token.Scopes,
		ProviderUserID: token.ProviderUserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Profile data is informational only.
	callCtx, cancel = s.providerContext(ctx, desc)
	profile, err := adapter.FetchProfile(callCtx, desc, token)
	cancel()
	if err != nil {
		logger.Warn("profile fetch failed", "error", err)
	} else {
		conn.ApplyProfile(profile)
		if conn.ProviderUserID == "" {
			conn.ProviderUserID = token.ProviderUserID
		}
	}

	storeCtx, cancel = context.WithTimeout(ctx, s.storeTimeout)
	err = s.connections.Upsert(storeCtx, conn)
	cancel()
	if err != nil {
		return nil, s.fail(logger, "persist_connection", fmt.Errorf("%w: %w", domain.ErrConnectionFailed, err), "")
	}

	s.invalidate(ctx, conn.Key())

	logger.Info("connection established",
		"user_id", conn.UserID,
		"has_refresh_token", conn.HasRefreshToken(),
	)

	return &driving.CallbackResult{
		OrganizationID: conn.OrganizationID,
		Provider:       conn.Provider,
		RedirectPath:   driving.SuccessRedirect(conn.OrganizationID, conn.Provider),
	}, nil
}

// Disconnect revokes the connection at the provider (best effort) and deletes
// the local record. Revocation failures never block deletion.
func (s *connectionService) Disconnect(ctx context.Context, req driving.ConnectionRequest) (*driving.DisconnectResult, error) {
	key, err := connectionKey(req)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	conn, err := s.connections.Get(storeCtx, key)
	cancel()
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	result := s.revoke(ctx, conn)
	s.logger.Info("provider revocation",
		"provider", key.Provider,
		"organization_id", key.OrganizationID,
		"user_id", key.UserID,
		"attempted", result.Attempted,
		"succeeded", result.Succeeded,
		"detail", result.Detail,
	)

	storeCtx, cancel = context.WithTimeout(ctx, s.storeTimeout)
	err = s.connections.Delete(storeCtx, key)
	cancel()
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", domain.ErrDeletionFailed, err)
	}

	s.invalidate(ctx, key)

	return &driving.DisconnectResult{Success: true}, nil
}

// revoke asks the provider to invalidate the access token. It never fails;
// the outcome is reported for logging.
func (s *connectionService) revoke(ctx context.Context, conn *domain.Connection) driven.RevocationResult {
	if conn.AccessToken == "" {
		return driven.RevocationResult{Detail: "no access token stored"}
	}

	adapter, desc, err := s.providers.Get(conn.Provider)
	if err != nil {
		return driven.RevocationResult{Detail: err.Error()}
	}
	if !desc.SupportsRevocation() {
		return driven.RevocationResult{Detail: "provider has no revocation endpoint"}
	}

	callCtx, cancel := s.providerContext(ctx, desc)
	defer cancel()
	if err := adapter.RevokeToken(callCtx, desc, conn.AccessToken); err != nil {
		return driven.RevocationResult{Attempted: true, Detail: err.Error()}
	}
	return driven.RevocationResult{Attempted: true, Succeeded: true}
}

// Status reports the connection status for one provider.
// Every failure collapses to the not-connected status.
func (s *connectionService) Status(ctx context.Context, req driving.ConnectionRequest) *domain.ConnectionStatus {
	key, err := connectionKey(req)
	if err != nil {
		return domain.NotConnected(req.Provider)
	}
	if err := s.requireMember(ctx, req.UserID, req.OrganizationID); err != nil {
		return domain.NotConnected(req.Provider)
	}

	// generation is read before the store so that an invalidation racing
	// this lookup rejects the write below.
	cacheable := false
	var generation int64
	if s.statusCache != nil {
		cached, gen, err := s.statusCache.Get(ctx, key)
		if err != nil {
			s.logger.Debug("status cache read failed", "error", err)
		} else if cached != nil {
			return cached
		} else {
			cacheable, generation = true, gen
		}
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	conn, err := s.connections.Get(storeCtx, key)
	cancel()
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("status lookup failed", "provider", key.Provider, "error", err)
		}
		return domain.NotConnected(req.Provider)
	}

	status := conn.ToStatus()
	if cacheable {
		if stored, err := s.statusCache.Set(ctx, key, status, generation); err != nil {
			s.logger.Debug("status cache write failed", "error", err)
		} else if !stored {
			s.logger.Debug("status cache write skipped after invalidation", "provider", key.Provider)
		}
	}
	return status
}

// List reports the status of every supported provider, in display order.
func (s *connectionService) List(ctx context.Context, userID, organizationID string) []*domain.ConnectionStatus {
	providers := domain.AllProviders()
	statuses := make([]*domain.ConnectionStatus, 0, len(providers))

	byProvider := make(map[domain.ProviderType]*domain.Connection)
	if userID != "" && organizationID != "" && s.requireMember(ctx, userID, organizationID) == nil {
		storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		conns, err := s.connections.ListByUser(storeCtx, userID, organizationID)
		cancel()
		if err != nil {
			s.logger.Warn("list connections failed", "organization_id", organizationID, "error", err)
		}
		for _, c := range conns {
			byProvider[c.Provider] = c
		}
	}

	for _, p := range providers {
		if c, ok := byProvider[p]; ok {
			statuses = append(statuses, c.ToStatus())
			continue
		}
		statuses = append(statuses, domain.NotConnected(p))
	}
	return statuses
}

// Refresh re-obtains tokens with the stored refresh token and persists them.
func (s *connectionService) Refresh(ctx context.Context, req driving.ConnectionRequest) (*domain.ConnectionStatus, error) {
	key, err := connectionKey(req)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, req.UserID, req.OrganizationID); err != nil {
		return nil, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	conn, err := s.connections.Get(storeCtx, key)
	cancel()
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	adapter, desc, err := s.providers.Get(conn.Provider)
	if err != nil {
		return nil, err
	}
	if !conn.HasRefreshToken() {
		return nil, domain.ErrRefreshUnsupported
	}

	callCtx, cancel := s.providerContext(ctx, desc)
	token, err := adapter.RefreshToken(callCtx, desc, conn.RefreshToken)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrRefreshUnsupported) {
			return nil, err
		}
		s.logger.Warn("token refresh failed", "provider", key.Provider, "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
	}

	conn.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		conn.RefreshToken = token.RefreshToken
	}
	conn.TokenExpiresAt = token.ExpiresAt
	if len(token.Scopes) > 0 {
		conn.Scopes = token.Scopes
	}
	conn.UpdatedAt = s.now()

	storeCtx, cancel = context.WithTimeout(ctx, s.storeTimeout)
	err = s.connections.Upsert(storeCtx, conn)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConnectionFailed, err)
	}

	s.invalidate(ctx, key)
	return conn.ToStatus(), nil
}

// Providers lists metadata for every supported provider.
func (s *connectionService) Providers() []*domain.ProviderInfo {
	descs := s.providers.Descriptors()
	infos := make([]*domain.ProviderInfo, 0, len(descs))
	for _, d := range descs {
		infos = append(infos, d.ToInfo())
	}
	return infos
}

func (s *connectionService) requireMember(ctx context.Context, userID, organizationID string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	if s.membership == nil {
		return nil
	}
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	ok, err := s.membership.IsMember(storeCtx, userID, organizationID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return domain.ErrForbidden
	}
	return nil
}

func (s *connectionService) providerContext(ctx context.Context, desc *domain.ProviderDescriptor) (context.Context, context.CancelFunc) {
	timeout := desc.Timeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *connectionService) invalidate(ctx context.Context, key domain.ConnectionKey) {
	if s.statusCache == nil {
		return
	}
	if err := s.statusCache.Invalidate(ctx, key); err != nil {
		s.logger.Warn("status cache invalidation failed", "provider", key.Provider, "error", err)
	}
}

// fail wraps a cause into a FlowError and logs it with the flow step.
func (s *connectionService) fail(logger *slog.Logger, step string, cause error, description string) error {
	fe := domain.NewFlowError(cause, description)
	logger.Warn("connection flow failed",
		"step", step,
		"reason", fe.Reason,
		"error", cause,
	)
	return fe
}

func connectionKey(req driving.ConnectionRequest) (domain.ConnectionKey, error) {
	if strings.TrimSpace(req.OrganizationID) == "" {
		return domain.ConnectionKey{}, domain.ErrMissingOrganization
	}
	if req.UserID == "" {
		return domain.ConnectionKey{}, domain.ErrUnauthorized
	}
	return domain.ConnectionKey{
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		Provider:       req.Provider,
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
