package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/adconnect/internal/core/domain"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func newAttempt(nonce string, now time.Time) *domain.AuthorizationAttempt {
	return &domain.AuthorizationAttempt{
		Nonce:          nonce,
		OrganizationID: "org-1",
		UserID:         "user-1",
		Provider:       domain.ProviderTypeTikTok,
		CodeVerifier:   "verifier",
		RedirectURI:    "https://app.example.com/callback",
		CreatedAt:      now,
		ExpiresAt:      now.Add(domain.DefaultAttemptTTL),
	}
}

func TestConnect(t *testing.T) {
	mr, _ := setupTestRedis(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	client.Close()

	_, err = Connect(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestAttemptStore_SaveConsume(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewAttemptStore(client)
	ctx := context.Background()

	attempt := newAttempt("nonce-1", time.Now())
	require.NoError(t, store.Save(ctx, attempt))
	assert.True(t, mr.Exists(attemptPrefix+"nonce-1"))
	assert.Greater(t, mr.TTL(attemptPrefix+"nonce-1"), time.Duration(0))

	got, err := store.Consume(ctx, "nonce-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, attempt.OrganizationID, got.OrganizationID)
	assert.Equal(t, attempt.UserID, got.UserID)
	assert.Equal(t, attempt.Provider, got.Provider)
	assert.Equal(t, "verifier", got.CodeVerifier)

	// Second consume finds nothing
	got, err = store.Consume(ctx, "nonce-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAttemptStore_SaveRejectsDuplicateNonce(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewAttemptStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newAttempt("dup", time.Now())))
	assert.Error(t, store.Save(ctx, newAttempt("dup", time.Now())))
}

func TestAttemptStore_SaveRejectsExpired(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewAttemptStore(client)

	attempt := newAttempt("old", time.Now().Add(-time.Hour))
	assert.Error(t, store.Save(context.Background(), attempt))
}

func TestAttemptStore_ConsumeExpired(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewAttemptStore(client)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.Save(ctx, newAttempt("late", now)))

	store.now = func() time.Time { return now.Add(domain.DefaultAttemptTTL) }
	got, err := store.Consume(ctx, "late")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAttemptStore_KeyExpires(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewAttemptStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newAttempt("ttl", time.Now())))
	mr.FastForward(domain.DefaultAttemptTTL + time.Second)

	got, err := store.Consume(ctx, "ttl")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, store.Cleanup(ctx))
}

func TestAttemptStore_ConcurrentConsume(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewAttemptStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newAttempt("race", time.Now())))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.Consume(ctx, "race")
			if err == nil && got != nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestStatusCache(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewStatusCache(client, 0)
	ctx := context.Background()

	key := domain.ConnectionKey{UserID: "u", OrganizationID: "o", Provider: domain.ProviderTypeGoogle}

	got, gen, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got, "miss returns nil")
	assert.Equal(t, int64(0), gen)

	status := &domain.ConnectionStatus{
		Provider:    domain.ProviderTypeGoogle,
		IsConnected: true,
		DisplayName: "Ada",
		Email:       "ada@example.com",
	}
	stored, err := cache.Set(ctx, key, status, gen)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, DefaultStatusTTL, mr.TTL("adconnect:status:1:u:1:o:google"))

	got, _, err = cache.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsConnected)
	assert.Equal(t, "Ada", got.DisplayName)

	require.NoError(t, cache.Invalidate(ctx, key))
	got, gen, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, int64(1), gen)
}

func TestStatusCache_SetAfterInvalidateIsRejected(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewStatusCache(client, 0)
	ctx := context.Background()

	key := domain.ConnectionKey{UserID: "u", OrganizationID: "o", Provider: domain.ProviderTypeLinkedIn}

	// a reader misses, then a disconnect invalidates before it writes back
	_, gen, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, key))

	stored, err := cache.Set(ctx, key, &domain.ConnectionStatus{Provider: domain.ProviderTypeLinkedIn, IsConnected: true}, gen)
	require.NoError(t, err)
	assert.False(t, stored)

	got, gen, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got, "stale status must not be cached")

	// a reader that started after the invalidation can write
	stored, err = cache.Set(ctx, key, &domain.ConnectionStatus{Provider: domain.ProviderTypeLinkedIn}, gen)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestStatusCache_KeysDoNotCollide(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewStatusCache(client, 0)
	ctx := context.Background()

	a := domain.ConnectionKey{UserID: "a:b", OrganizationID: "c", Provider: domain.ProviderTypeGoogle}
	b := domain.ConnectionKey{UserID: "a", OrganizationID: "b:c", Provider: domain.ProviderTypeGoogle}
	assert.NotEqual(t, statusKey(a), statusKey(b))

	_, gen, err := cache.Get(ctx, a)
	require.NoError(t, err)
	_, err = cache.Set(ctx, a, &domain.ConnectionStatus{Provider: domain.ProviderTypeGoogle, IsConnected: true, Email: "a@example.com"}, gen)
	require.NoError(t, err)

	got, _, err := cache.Get(ctx, b)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStatusCache_Expires(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewStatusCache(client, 10*time.Second)
	ctx := context.Background()

	key := domain.ConnectionKey{UserID: "u", OrganizationID: "o", Provider: domain.ProviderTypeTikTok}
	_, err := cache.Set(ctx, key, domain.NotConnected(domain.ProviderTypeTikTok), 0)
	require.NoError(t, err)

	mr.FastForward(11 * time.Second)

	got, _, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLock_AcquireRelease(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	a := NewLock(client)
	b := NewLock(client)

	ok, err := a.Acquire(ctx, "cleanup", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, "cleanup", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held by another owner")

	// b cannot release a's lock
	require.NoError(t, b.Release(ctx, "cleanup"))
	ok, err = b.Acquire(ctx, "cleanup", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx, "cleanup"))
	ok, err = b.Acquire(ctx, "cleanup", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_Expires(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	a := NewLock(client)
	b := NewLock(client)

	ok, err := a.Acquire(ctx, "job", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = b.Acquire(ctx, "job", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// Release of an expired-and-retaken lock is a no-op for the old owner
	assert.NoError(t, a.Release(ctx, "job"))
	assert.True(t, mr.Exists(lockPrefix+"job"))
}

func TestPinger(t *testing.T) {
	mr, client := setupTestRedis(t)
	p := NewPinger(client)

	assert.NoError(t, p.Ping(context.Background()))

	mr.Close()
	assert.Error(t, p.Ping(context.Background()))
}
