package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.AuthorizationAttemptStore = (*AttemptStore)(nil)

const attemptPrefix = "adconnect:attempt:"

// AttemptStore implements driven.AuthorizationAttemptStore using Redis.
// Attempts expire through the key TTL; Consume uses GETDEL so a nonce can be
// read at most once.
type AttemptStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewAttemptStore creates a new Redis-backed attempt store.
func NewAttemptStore(client *redis.Client) *AttemptStore {
	return &AttemptStore{
		client: client,
		now:    time.Now,
	}
}

// Save stores an attempt until its ExpiresAt.
func (s *AttemptStore) Save(ctx context.Context, attempt *domain.AuthorizationAttempt) error {
	ttl := attempt.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("authorization attempt already expired")
	}

	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt: %w", err)
	}

	// NX: a nonce is never overwritten.
	ok, err := s.client.SetNX(ctx, attemptPrefix+attempt.Nonce, data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}
	if !ok {
		return fmt.Errorf("authorization attempt %s already exists", attempt.Nonce)
	}
	return nil
}

// Consume atomically retrieves and deletes the attempt.
func (s *AttemptStore) Consume(ctx context.Context, nonce string) (*domain.AuthorizationAttempt, error) {
	data, err := s.client.GetDel(ctx, attemptPrefix+nonce).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume attempt: %w", err)
	}

	var attempt domain.AuthorizationAttempt
	if err := json.Unmarshal(data, &attempt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attempt: %w", err)
	}
	if attempt.IsExpired(s.now()) {
		return nil, nil
	}
	return &attempt, nil
}

// Cleanup is a no-op; Redis expires attempts itself.
func (s *AttemptStore) Cleanup(ctx context.Context) error {
	return nil
}
