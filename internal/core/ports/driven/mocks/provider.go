package mocks

import (
	"context"
	"net/url"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
)

var _ driven.ProviderAdapter = (*MockProviderAdapter)(nil)

// MockProviderAdapter is a mock implementation of ProviderAdapter for testing.
// Unset functions return canned successes.
type MockProviderAdapter struct {
	ProviderType domain.ProviderType

	ExchangeCodeFn func(ctx context.Context, desc *domain.ProviderDescriptor, code, codeVerifier string) (*driven.ProviderToken, error)
	RefreshTokenFn func(ctx context.Context, desc *domain.ProviderDescriptor, refreshToken string) (*driven.ProviderToken, error)
	RevokeTokenFn  func(ctx context.Context, desc *domain.ProviderDescriptor, accessToken string) error
	FetchProfileFn func(ctx context.Context, desc *domain.ProviderDescriptor, token *driven.ProviderToken) (*domain.ProviderProfile, error)

	ExchangeCalls int
	RevokeCalls   int

	// LastCodeVerifier records the verifier passed to ExchangeCode
	LastCodeVerifier string
}

// NewMockProviderAdapter creates a new MockProviderAdapter
func NewMockProviderAdapter(pt domain.ProviderType) *MockProviderAdapter {
	return &MockProviderAdapter{ProviderType: pt}
}

func (m *MockProviderAdapter) Type() domain.ProviderType {
	return m.ProviderType
}

func (m *MockProviderAdapter) BuildAuthURL(desc *domain.ProviderDescriptor, state, codeChallenge string) string {
	params := url.Values{}
	params.Set("client_id", desc.ClientID)
	params.Set("redirect_uri", desc.RedirectURI)
	params.Set("state", state)
	if codeChallenge != "" {
		params.Set("code_challenge", codeChallenge)
		params.Set("code_challenge_method", "S256")
	}
	return desc.AuthURL + "?" + params.Encode()
}

func (m *MockProviderAdapter) ExchangeCode(ctx context.Context, desc *domain.ProviderDescriptor, code, codeVerifier string) (*driven.ProviderToken, error) {
	m.ExchangeCalls++
	m.LastCodeVerifier = codeVerifier
	if m.ExchangeCodeFn != nil {
		return m.ExchangeCodeFn(ctx, desc, code, codeVerifier)
	}
	return &driven.ProviderToken{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		TokenType:    "Bearer",
	}, nil
}

func (m *MockProviderAdapter) RefreshToken(ctx context.Context, desc *domain.ProviderDescriptor, refreshToken string) (*driven.ProviderToken, error) {
	if m.RefreshTokenFn != nil {
		return m.RefreshTokenFn(ctx, desc, refreshToken)
	}
	return &driven.ProviderToken{AccessToken: "refreshed-access", TokenType: "Bearer"}, nil
}

func (m *MockProviderAdapter) RevokeToken(ctx context.Context, desc *domain.ProviderDescriptor, accessToken string) error {
	m.RevokeCalls++
	if m.RevokeTokenFn != nil {
		return m.RevokeTokenFn(ctx, desc, accessToken)
	}
	return nil
}

func (m *MockProviderAdapter) FetchProfile(ctx context.Context, desc *domain.ProviderDescriptor, token *driven.ProviderToken) (*domain.ProviderProfile, error) {
	if m.FetchProfileFn != nil {
		return m.FetchProfileFn(ctx, desc, token)
	}
	return &domain.ProviderProfile{ID: "provider-user", Name: "Test User", Email: "user@example.com"}, nil
}

var _ driven.ProviderRegistry = (*MockProviderRegistry)(nil)

// MockProviderRegistry maps provider types to mock adapters and descriptors
type MockProviderRegistry struct {
	Adapters    map[domain.ProviderType]*MockProviderAdapter
	descriptors []*domain.ProviderDescriptor
}

// NewMockProviderRegistry creates an empty registry
func NewMockProviderRegistry() *MockProviderRegistry {
	return &MockProviderRegistry{Adapters: make(map[domain.ProviderType]*MockProviderAdapter)}
}

// Register adds a descriptor and returns its mock adapter
func (m *MockProviderRegistry) Register(desc *domain.ProviderDescriptor) *MockProviderAdapter {
	adapter := NewMockProviderAdapter(desc.Type)
	m.Adapters[desc.Type] = adapter
	m.descriptors = append(m.descriptors, desc)
	return adapter
}

func (m *MockProviderRegistry) Get(pt domain.ProviderType) (driven.ProviderAdapter, *domain.ProviderDescriptor, error) {
	for _, d := range m.descriptors {
		if d.Type != pt {
			continue
		}
		if !d.IsConfigured() {
			return nil, nil, domain.ErrProviderNotConfigured
		}
		return m.Adapters[pt], d, nil
	}
	return nil, nil, domain.ErrUnsupportedProvider
}

func (m *MockProviderRegistry) Descriptors() []*domain.ProviderDescriptor {
	return m.descriptors
}
