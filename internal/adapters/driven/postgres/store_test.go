package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/adconnect/internal/core/domain"
)

// testDB connects to TEST_DATABASE_URL and resets the tables.
// Tests are skipped when it is not set.
func testDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Connect(ctx, DefaultConfig(url))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.InitSchema(ctx))
	_, err = db.ExecContext(ctx, `TRUNCATE provider_connections, authorization_attempts, organization_members`)
	require.NoError(t, err)
	return db
}

func testConnectionStore(t *testing.T) (*DB, *ConnectionStore) {
	t.Helper()
	db := testDB(t)
	enc, err := NewTokenEncryptor(testKey)
	require.NoError(t, err)
	return db, NewConnectionStore(db.DB, enc)
}

func testConnection() *domain.Connection {
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	return &domain.Connection{
		UserID:         "user-1",
		OrganizationID: "org-1",
		Provider:       domain.ProviderTypeGoogle,
		AccessToken:    "access-1",
		RefreshToken:   "refresh-1",
		TokenExpiresAt: &expires,
		Scopes:         []string{"openid", "email"},
		ProviderUserID: "g-1",
		DisplayName:    "Ada",
		Email:          "ada@example.com",
	}
}

func TestConnectionStore_UpsertAndGet(t *testing.T) {
	db, store := testConnectionStore(t)
	ctx := context.Background()

	conn := testConnection()
	require.NoError(t, store.Upsert(ctx, conn))

	got, err := store.Get(ctx, conn.Key())
	require.NoError(t, err)
	assert.Equal(t, "access-1", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)
	assert.Equal(t, []string{"openid", "email"}, got.Scopes)
	assert.Equal(t, "Ada", got.DisplayName)
	require.NotNil(t, got.TokenExpiresAt)
	assert.True(t, conn.TokenExpiresAt.Equal(*got.TokenExpiresAt))

	var raw []byte
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT access_token_enc FROM provider_connections WHERE user_id = $1`, "user-1").Scan(&raw))
	assert.NotContains(t, string(raw), "access-1")
}

func TestConnectionStore_UpsertIsIdempotentPerTuple(t *testing.T) {
	db, store := testConnectionStore(t)
	ctx := context.Background()

	first := testConnection()
	require.NoError(t, store.Upsert(ctx, first))
	createdAt := first.CreatedAt

	second := testConnection()
	second.AccessToken = "access-2"
	second.RefreshToken = ""
	second.DisplayName = ""
	require.NoError(t, store.Upsert(ctx, second))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM provider_connections`).Scan(&count))
	assert.Equal(t, 1, count)

	got, err := store.Get(ctx, first.Key())
	require.NoError(t, err)
	assert.Equal(t, "access-2", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken, "missing refresh token keeps the stored one")
	assert.Equal(t, "Ada", got.DisplayName)
	assert.WithinDuration(t, createdAt, got.CreatedAt, time.Millisecond)
}

func TestConnectionStore_ConcurrentUpserts(t *testing.T) {
	db, store := testConnectionStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Upsert(ctx, testConnection()))
		}()
	}
	wg.Wait()

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM provider_connections`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestConnectionStore_DeleteAndNotFound(t *testing.T) {
	_, store := testConnectionStore(t)
	ctx := context.Background()

	conn := testConnection()
	_, err := store.Get(ctx, conn.Key())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, conn.Key()), domain.ErrNotFound)

	require.NoError(t, store.Upsert(ctx, conn))
	require.NoError(t, store.Delete(ctx, conn.Key()))

	_, err = store.Get(ctx, conn.Key())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConnectionStore_ListByUser(t *testing.T) {
	_, store := testConnectionStore(t)
	ctx := context.Background()

	google := testConnection()
	tiktok := testConnection()
	tiktok.Provider = domain.ProviderTypeTikTok
	tiktok.RefreshToken = ""
	other := testConnection()
	other.OrganizationID = "org-2"

	for _, c := range []*domain.Connection{google, tiktok, other} {
		require.NoError(t, store.Upsert(ctx, c))
	}

	conns, err := store.ListByUser(ctx, "user-1", "org-1")
	require.NoError(t, err)
	require.Len(t, conns, 2)
	for _, c := range conns {
		assert.Empty(t, c.AccessToken)
		assert.NotEqual(t, "refresh-1", c.RefreshToken)
	}
	assert.True(t, conns[0].HasRefreshToken())
	assert.False(t, conns[1].HasRefreshToken())
}

func TestAttemptStore_ConsumeOnce(t *testing.T) {
	db := testDB(t)
	store := NewAttemptStore(db.DB)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	attempt := &domain.AuthorizationAttempt{
		Nonce:          "11111111-1111-4111-8111-111111111111",
		OrganizationID: "org-1",
		UserID:         "user-1",
		Provider:       domain.ProviderTypeTikTok,
		CodeVerifier:   "verifier",
		RedirectURI:    "https://app/cb",
		CreatedAt:      now,
		ExpiresAt:      now.Add(domain.DefaultAttemptTTL),
	}
	require.NoError(t, store.Save(ctx, attempt))

	var wg sync.WaitGroup
	results := make(chan *domain.AuthorizationAttempt, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.Consume(ctx, attempt.Nonce)
			assert.NoError(t, err)
			results <- got
		}()
	}
	wg.Wait()
	close(results)

	found := 0
	for got := range results {
		if got != nil {
			found++
			assert.Equal(t, "verifier", got.CodeVerifier)
			assert.Equal(t, domain.ProviderTypeTikTok, got.Provider)
		}
	}
	assert.Equal(t, 1, found)
}

func TestAttemptStore_ExpiredAndCleanup(t *testing.T) {
	db := testDB(t)
	store := NewAttemptStore(db.DB)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	for _, nonce := range []string{"expired-1", "expired-2"} {
		require.NoError(t, store.Save(ctx, &domain.AuthorizationAttempt{
			Nonce: nonce, OrganizationID: "org-1", UserID: "user-1",
			Provider: domain.ProviderTypeGoogle, RedirectURI: "https://app/cb",
			CreatedAt: past, ExpiresAt: past.Add(domain.DefaultAttemptTTL),
		}))
	}

	got, err := store.Consume(ctx, "expired-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Cleanup(ctx))
	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM authorization_attempts`).Scan(&count))
	assert.Zero(t, count)
}

func TestMembershipChecker(t *testing.T) {
	db := testDB(t)
	m := NewMembershipChecker(db.DB)
	ctx := context.Background()

	ok, err := m.IsMember(ctx, "user-1", "org-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.AddMember(ctx, "user-1", "org-1"))
	require.NoError(t, m.AddMember(ctx, "user-1", "org-1"))

	ok, err = m.IsMember(ctx, "user-1", "org-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
