package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
)

var _ driven.StatusCache = (*MockStatusCache)(nil)

// MockStatusCache is an in-memory StatusCache for testing
type MockStatusCache struct {
	mu          sync.Mutex
	entries     map[domain.ConnectionKey]*domain.ConnectionStatus
	generations map[domain.ConnectionKey]int64

	Invalidations int
	// SkippedWrites counts Set calls rejected by a newer generation.
	SkippedWrites int
}

// NewMockStatusCache creates a new MockStatusCache
func NewMockStatusCache() *MockStatusCache {
	return &MockStatusCache{
		entries:     make(map[domain.ConnectionKey]*domain.ConnectionStatus),
		generations: make(map[domain.ConnectionKey]int64),
	}
}

func (m *MockStatusCache) Get(ctx context.Context, key domain.ConnectionKey) (*domain.ConnectionStatus, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key], m.generations[key], nil
}

func (m *MockStatusCache) Set(ctx context.Context, key domain.ConnectionKey, status *domain.ConnectionStatus, generation int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generations[key] != generation {
		m.SkippedWrites++
		return false, nil
	}
	m.entries[key] = status
	return true, nil
}

func (m *MockStatusCache) Invalidate(ctx context.Context, key domain.ConnectionKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invalidations++
	m.generations[key]++
	delete(m.entries, key)
	return nil
}

// Cached returns the cached status for key, if any
func (m *MockStatusCache) Cached(key domain.ConnectionKey) *domain.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key]
}

// MockMembershipChecker answers membership from a fixed set
type MockMembershipChecker struct {
	Members map[string]bool // key: userID:organizationID
	Err     error
}

var _ driven.MembershipChecker = (*MockMembershipChecker)(nil)

// NewMockMembershipChecker creates a checker with the given memberships
func NewMockMembershipChecker() *MockMembershipChecker {
	return &MockMembershipChecker{Members: make(map[string]bool)}
}

// Add grants membership
func (m *MockMembershipChecker) Add(userID, organizationID string) {
	m.Members[userID+":"+organizationID] = true
}

func (m *MockMembershipChecker) IsMember(ctx context.Context, userID, organizationID string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	return m.Members[userID+":"+organizationID], nil
}
