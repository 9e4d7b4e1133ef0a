package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
)

var _ driven.AuthorizationAttemptStore = (*MockAttemptStore)(nil)

// MockAttemptStore is an in-memory AuthorizationAttemptStore for testing
type MockAttemptStore struct {
	mu       sync.Mutex
	attempts map[string]*domain.AuthorizationAttempt

	// Now overrides the clock used for expiry checks
	Now func() time.Time

	SaveErr    error
	ConsumeErr error
	CleanupErr error
}

// NewMockAttemptStore creates a new MockAttemptStore
func NewMockAttemptStore() *MockAttemptStore {
	return &MockAttemptStore{
		attempts: make(map[string]*domain.AuthorizationAttempt),
		Now:      time.Now,
	}
}

func (m *MockAttemptStore) Save(ctx context.Context, attempt *domain.AuthorizationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	a := *attempt
	m.attempts[attempt.Nonce] = &a
	return nil
}

func (m *MockAttemptStore) Consume(ctx context.Context, nonce string) (*domain.AuthorizationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ConsumeErr != nil {
		return nil, m.ConsumeErr
	}
	a, ok := m.attempts[nonce]
	if !ok {
		return nil, nil
	}
	delete(m.attempts, nonce)
	if a.IsExpired(m.Now()) {
		return nil, nil
	}
	return a, nil
}

func (m *MockAttemptStore) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CleanupErr != nil {
		return m.CleanupErr
	}
	now := m.Now()
	for k, a := range m.attempts {
		if a.IsExpired(now) {
			delete(m.attempts, k)
		}
	}
	return nil
}

// Get returns a stored attempt without consuming it
func (m *MockAttemptStore) Get(nonce string) *domain.AuthorizationAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[nonce]
}

// Len returns the number of stored attempts
func (m *MockAttemptStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}
