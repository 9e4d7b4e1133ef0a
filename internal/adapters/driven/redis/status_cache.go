package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StatusCache = (*StatusCache)(nil)

const (
	statusPrefix     = "adconnect:status:"
	generationPrefix = "adconnect:status-gen:"

	// DefaultStatusTTL bounds how stale a cached status can be.
	DefaultStatusTTL = 60 * time.Second

	// generationTTL outlives any cached status so a stale writer still sees
	// the advanced generation.
	generationTTL = 24 * time.Hour
)

// StatusCache caches connection status projections. Only non-secret fields
// are ever written.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusCache creates a status cache. A non-positive ttl uses DefaultStatusTTL.
func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusCache{client: client, ttl: ttl}
}

// tupleKey length-prefixes the ids so no two tuples share a key,
// whatever characters the ids contain.
func tupleKey(key domain.ConnectionKey) string {
	return fmt.Sprintf("%d:%s:%d:%s:%s",
		len(key.UserID), key.UserID,
		len(key.OrganizationID), key.OrganizationID,
		key.Provider)
}

func statusKey(key domain.ConnectionKey) string {
	return statusPrefix + tupleKey(key)
}

func generationKey(key domain.ConnectionKey) string {
	return generationPrefix + tupleKey(key)
}

// Get returns the cached status (nil on a miss) and the key's current generation.
func (c *StatusCache) Get(ctx context.Context, key domain.ConnectionKey) (*domain.ConnectionStatus, int64, error) {
	pipe := c.client.Pipeline()
	statusCmd := pipe.Get(ctx, statusKey(key))
	genCmd := pipe.Get(ctx, generationKey(key))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("failed to get status: %w", err)
	}

	generation, err := genCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("failed to read status generation: %w", err)
	}

	data, err := statusCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, generation, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get status: %w", err)
	}

	var status domain.ConnectionStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &status, generation, nil
}

// setScript writes the status only while the generation still matches.
var setScript = redis.NewScript(`
	local current = redis.call("get", KEYS[2]) or "0"
	if current ~= ARGV[3] then
		return 0
	end
	redis.call("set", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 1
`)

// Set caches a status for the configured TTL, unless the key was
// invalidated after generation was read. It reports whether it wrote.
func (c *StatusCache) Set(ctx context.Context, key domain.ConnectionKey, status *domain.ConnectionStatus, generation int64) (bool, error) {
	data, err := json.Marshal(status)
	if err != nil {
		return false, fmt.Errorf("failed to marshal status: %w", err)
	}
	written, err := setScript.Run(ctx, c.client,
		[]string{statusKey(key), generationKey(key)},
		data, c.ttl.Milliseconds(), strconv.FormatInt(generation, 10),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to set status: %w", err)
	}
	return written == 1, nil
}

// Invalidate drops the cached status and advances the generation.
func (c *StatusCache) Invalidate(ctx context.Context, key domain.ConnectionKey) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(key))
		pipe.Expire(ctx, generationKey(key), generationTTL)
		pipe.Del(ctx, statusKey(key))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate status: %w", err)
	}
	return nil
}
