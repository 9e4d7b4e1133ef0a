package main

// @title           adconnect API
// @version         1.0
// @description     Connects organization members to advertising platforms (Google Ads, Facebook, LinkedIn, TikTok) over OAuth 2.0.

// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token issued by the host application. Format: "Bearer {token}"

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/adconnect/internal/adapters/driven/auth"
	"github.com/custodia-labs/adconnect/internal/adapters/driven/postgres"
	"github.com/custodia-labs/adconnect/internal/adapters/driven/providers"
	redisadapter "github.com/custodia-labs/adconnect/internal/adapters/driven/redis"
	"github.com/custodia-labs/adconnect/internal/adapters/driving/http"
	"github.com/custodia-labs/adconnect/internal/config"
	"github.com/custodia-labs/adconnect/internal/core/domain"
	"github.com/custodia-labs/adconnect/internal/core/ports/driven"
	"github.com/custodia-labs/adconnect/internal/core/services"
)

var version = "dev"

func main() {
	// Run mode from RUN_MODE or the first argument: api | cleanup
	mode := os.Getenv("RUN_MODE")
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}
	if mode == "" {
		mode = "api"
	}

	log.Printf("adconnect %s starting in %s mode", version, mode)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	// ===== Initialize PostgreSQL =====
	log.Println("Connecting to PostgreSQL...")
	dbConfig := postgres.DefaultConfig(cfg.DatabaseURL)
	dbConfig.MaxOpenConns = cfg.DBMaxOpenConns
	dbConfig.MaxIdleConns = cfg.DBMaxIdleConns
	dbConfig.ConnMaxLifetime = cfg.DBConnMaxLifetime
	db, err := postgres.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if cfg.InitSchema {
		if err := db.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
	}
	log.Println("PostgreSQL connected")

	// ===== Initialize Redis (optional) =====
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		log.Println("Connecting to Redis...")
		redisClient, err = redisadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")
	}

	// ===== Ephemeral flow store =====
	var attempts driven.AuthorizationAttemptStore
	switch cfg.AttemptStore {
	case config.AttemptStoreRedis:
		attempts = redisadapter.NewAttemptStore(redisClient)
	default:
		attempts = postgres.NewAttemptStore(db.DB)
	}
	log.Printf("Authorization attempts stored in %s", cfg.AttemptStore)

	switch mode {
	case "api":
		runAPI(cfg, logger, db, redisClient, attempts)
	case "cleanup":
		runCleanup(ctx, cfg, logger, redisClient, attempts)
	default:
		log.Fatalf("Unknown mode: %s (use api or cleanup)", mode)
	}
}

// runAPI serves the HTTP API until a shutdown signal arrives.
func runAPI(
	cfg *config.Config,
	logger *slog.Logger,
	db *postgres.DB,
	redisClient *redis.Client,
	attempts driven.AuthorizationAttemptStore,
) {
	encryptor, err := postgres.NewTokenEncryptorFromSecret(cfg.TokenEncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize token encryption: %v", err)
	}

	creds := make(map[domain.ProviderType]providers.Credentials, len(cfg.Providers))
	for pt, p := range cfg.Providers {
		creds[pt] = providers.Credentials{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURI:  p.RedirectURI,
			Scopes:       p.Scopes,
		}
	}
	registry := providers.NewDefaultRegistry(nil, creds, cfg.ProviderTimeout)
	log.Printf("Configured providers: %v", cfg.ConfiguredProviders())

	var statusCache driven.StatusCache
	var redisPinger http.Pinger
	if redisClient != nil {
		statusCache = redisadapter.NewStatusCache(redisClient, cfg.StatusCacheTTL)
		redisPinger = redisadapter.NewPinger(redisClient)
	}

	connectionService := services.NewConnectionService(services.ConnectionServiceConfig{
		Providers:    registry,
		Attempts:     attempts,
		Connections:  postgres.NewConnectionStore(db.DB, encryptor),
		Membership:   postgres.NewMembershipChecker(db.DB),
		StatusCache:  statusCache,
		AttemptTTL:   cfg.AttemptTTL,
		StoreTimeout: cfg.StoreTimeout,
		Logger:       logger,
	})
	authService := services.NewAuthService(auth.NewAdapter(cfg.JWTSecret))

	serverCfg := http.Config{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        version,
		FrontendURL:    cfg.FrontendURL,
		SecureCookies:  cfg.SecureCookies(),
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	}
	server := http.NewServer(serverCfg, authService, connectionService, db, redisPinger)

	log.Printf("API server starting on :%d", cfg.Port)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runCleanup purges expired authorization attempts. With CLEANUP_INTERVAL
// unset it runs once and exits; otherwise it loops until shutdown.
func runCleanup(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	redisClient *redis.Client,
	attempts driven.AuthorizationAttemptStore,
) {
	var lock driven.DistributedLock
	if redisClient != nil {
		lock = redisadapter.NewLock(redisClient)
	}

	scheduler := services.NewCleanupScheduler(services.CleanupSchedulerConfig{
		Attempts: attempts,
		Lock:     lock,
		Logger:   logger,
		Interval: cfg.CleanupInterval,
	})

	if cfg.CleanupInterval == 0 {
		if scheduler.RunOnce(ctx) {
			log.Println("Cleanup complete")
		} else {
			log.Println("Cleanup cycle skipped (see logs)")
		}
		return
	}

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start cleanup scheduler: %v", err)
	}
	<-ctx.Done()
	scheduler.Stop()
	log.Println("Cleanup scheduler stopped")
}
