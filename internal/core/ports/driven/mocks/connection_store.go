package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
)

var _ driven.ConnectionStore = (*MockConnectionStore)(nil)

// MockConnectionStore is an in-memory ConnectionStore for testing.
// Set the Err fields to force failures.
type MockConnectionStore struct {
	mu          sync.RWMutex
	connections map[domain.ConnectionKey]*domain.Connection

	UpsertErr error
	GetErr    error
	DeleteErr error
	ListErr   error

	UpsertCalls int
	DeleteCalls int
}

// NewMockConnectionStore creates a new MockConnectionStore
func NewMockConnectionStore() *MockConnectionStore {
	return &MockConnectionStore{
		connections: make(map[domain.ConnectionKey]*domain.Connection),
	}
}

func (m *MockConnectionStore) Upsert(ctx context.Context, conn *domain.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpsertCalls++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}

	stored := *conn
	if existing, ok := m.connections[conn.Key()]; ok {
		stored.CreatedAt = existing.CreatedAt
		if stored.RefreshToken == "" {
			stored.RefreshToken = existing.RefreshToken
		}
	}
	m.connections[conn.Key()] = &stored
	return nil
}

func (m *MockConnectionStore) Get(ctx context.Context, key domain.ConnectionKey) (*domain.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	conn, ok := m.connections[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *conn
	return &c, nil
}

func (m *MockConnectionStore) Delete(ctx context.Context, key domain.ConnectionKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, ok := m.connections[key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.connections, key)
	return nil
}

func (m *MockConnectionStore) ListByUser(ctx context.Context, userID, organizationID string) ([]*domain.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var result []*domain.Connection
	for key, conn := range m.connections {
		if key.UserID == userID && key.OrganizationID == organizationID {
			c := *conn
			c.AccessToken = ""
			if c.RefreshToken != "" {
				c.RefreshToken = "[redacted]"
			}
			result = append(result, &c)
		}
	}
	return result, nil
}

// Count returns the number of stored connections
func (m *MockConnectionStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}
