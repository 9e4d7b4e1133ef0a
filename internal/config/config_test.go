package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/adconnect/internal/core/domain"
)

// clearEnv blanks every variable Load reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_ENV", "HOST", "PORT", "LOG_LEVEL", "PUBLIC_BASE_URL", "FRONTEND_URL", "CORS_ORIGINS",
		"DATABASE_URL", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_INIT_SCHEMA",
		"REDIS_URL", "ATTEMPT_STORE", "JWT_SECRET", "TOKEN_ENCRYPTION_KEY",
		"ATTEMPT_TTL", "PROVIDER_TIMEOUT", "STORE_TIMEOUT", "STATUS_CACHE_TTL", "CLEANUP_INTERVAL",
		"TIKTOK_CLIENT_KEY",
	}
	for _, pt := range domain.AllProviders() {
		prefix := string(pt)
		for _, suffix := range []string{"_CLIENT_ID", "_CLIENT_SECRET", "_REDIRECT_URI", "_SCOPES"} {
			keys = append(keys, strings.ToUpper(prefix)+suffix)
		}
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.AppEnv)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, AttemptStorePostgres, cfg.AttemptStore)
	assert.Equal(t, domain.DefaultAttemptTTL, cfg.AttemptTTL)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 60*time.Second, cfg.StatusCacheTTL)
	assert.Zero(t, cfg.CleanupInterval)
	assert.True(t, cfg.InitSchema)
	assert.False(t, cfg.SecureCookies())
	assert.Empty(t, cfg.ConfiguredProviders())

	google := cfg.Providers[domain.ProviderTypeGoogle]
	assert.Equal(t, "http://localhost:8080/auth/google/callback", google.RedirectURI)
}

func TestLoad_Providers(t *testing.T) {
	clearEnv(t)
	t.Setenv("PUBLIC_BASE_URL", "https://api.example.com/")
	t.Setenv("GOOGLE_CLIENT_ID", "gid")
	t.Setenv("GOOGLE_CLIENT_SECRET", "gsecret")
	t.Setenv("GOOGLE_SCOPES", "openid, email https://www.googleapis.com/auth/adwords")
	t.Setenv("TIKTOK_CLIENT_KEY", "tkey")
	t.Setenv("TIKTOK_CLIENT_SECRET", "tsecret")
	t.Setenv("LINKEDIN_CLIENT_ID", "lid")
	t.Setenv("LINKEDIN_REDIRECT_URI", "https://custom.example.com/li")

	cfg, err := Load()
	require.NoError(t, err)

	google := cfg.Providers[domain.ProviderTypeGoogle]
	assert.Equal(t, "gid", google.ClientID)
	assert.Equal(t, "https://api.example.com/auth/google/callback", google.RedirectURI)
	assert.Equal(t, []string{"openid", "email", "https://www.googleapis.com/auth/adwords"}, google.Scopes)

	tiktok := cfg.Providers[domain.ProviderTypeTikTok]
	assert.Equal(t, "tkey", tiktok.ClientID)

	linkedin := cfg.Providers[domain.ProviderTypeLinkedIn]
	assert.Equal(t, "https://custom.example.com/li", linkedin.RedirectURI)
	assert.False(t, linkedin.Configured(), "no secret")

	assert.Equal(t, []domain.ProviderType{domain.ProviderTypeGoogle, domain.ProviderTypeTikTok}, cfg.ConfiguredProviders())
}

func TestLoad_RedisSelectsAttemptStore(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, AttemptStoreRedis, cfg.AttemptStore)

	t.Setenv("ATTEMPT_STORE", "postgres")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, AttemptStorePostgres, cfg.AttemptStore)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"redis store without url", map[string]string{"ATTEMPT_STORE": "redis"}, "requires REDIS_URL"},
		{"unknown store", map[string]string{"ATTEMPT_STORE": "memcached"}, "unknown ATTEMPT_STORE"},
		{"bad port", map[string]string{"PORT": "70000"}, "PORT"},
		{"production default jwt", map[string]string{"APP_ENV": "production", "TOKEN_ENCRYPTION_KEY": "k"}, "JWT_SECRET must be set"},
		{"production default key", map[string]string{"APP_ENV": "production", "JWT_SECRET": "s"}, "TOKEN_ENCRYPTION_KEY must be set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Production(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "Production")
	t.Setenv("JWT_SECRET", "real-secret")
	t.Setenv("TOKEN_ENCRYPTION_KEY", "real-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.SecureCookies())
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Minute},
		{"90s", 90 * time.Second},
		{"2m", 2 * time.Minute},
		{"30", 30 * time.Second},
		{"soon", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getEnvDuration("TEST_DURATION", time.Minute))
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, parseLevel("loud"))
}
