package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warden-auth/warden/internal/account"
	"github.com/warden-auth/warden/internal/app"
	"github.com/warden-auth/warden/internal/authz"
	"github.com/warden-auth/warden/internal/platform/apiclient"
	"github.com/warden-auth/warden/internal/platform/cache"
	"github.com/warden-auth/warden/internal/platform/db"
	"github.com/warden-auth/warden/internal/roles"
	"github.com/warden-auth/warden/internal/shared"
	"github.com/warden-auth/warden/internal/strategy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	var accounts account.AccountStore
	var roleStore account.RoleStore
	if cfg.NeedsStore() {
		switch cfg.StoreBackend {
		case app.StoreBackendPostgres:
			pool, err := db.New(ctx, cfg.PGDSN)
			if err != nil {
				logger.Error("connect database", slog.Any("error", err))
				os.Exit(1)
			}
			defer pool.Close()
			accounts = account.NewPGAccountStore(pool)
			roleStore = account.NewPGRoleStore(pool)
		case app.StoreBackendMemory:
			accounts = account.NewMemoryAccountStore()
			roleStore = account.NewMemoryRoleStore()
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())

	var principalCache authz.PrincipalCache
	switch cfg.CacheBackend {
	case app.CacheBackendRedis:
		principalCache = authz.NewRedisPrincipalCache(redisClient, logger)
	default:
		memCache := authz.NewMemoryPrincipalCache()
		go memCache.Sweep(ctx, cfg.CacheSweepInterval)
		principalCache = memCache
	}

	var apiClient *apiclient.Client
	if cfg.APIBaseURL != "" {
		apiClient = apiclient.New(cfg.APIBaseURL, cfg.APITimeout, cfg.APIHeaders)
	}

	var resolver authz.Resolver
	switch cfg.PrincipalMode {
	case app.PrincipalModeAPI:
		resolver = authz.NewAPIResolver(apiClient, principalCache, authz.APIResolverConfig{
			PrincipalPath: cfg.APIPrincipalPath,
			CacheTTL:      cfg.PrincipalCacheTTL,
			AllowFallback: cfg.APIAllowFallback,
		}, logger)
	default:
		resolver = authz.NewLocalResolver(accounts, roleStore, principalCache, authz.LocalResolverConfig{
			DefaultRoleName: cfg.DefaultRole,
			CacheTTL:        cfg.PrincipalCacheTTL,
		}, logger)
	}

	var authStrategy strategy.Strategy
	var registrar strategy.Registrar
	switch cfg.AuthMode {
	case app.AuthModeCredentials:
		creds := strategy.NewCredentials(accounts, roleStore, strategy.CredentialsConfig{
			BcryptCost:       cfg.BcryptCost,
			DefaultRoleName:  cfg.DefaultRole,
			MergeIdentifiers: cfg.MergeCredentialIdentifiers,
		}, logger)
		authStrategy = creds
		registrar = creds
	case app.AuthModeAPI:
		api := strategy.NewAPI(apiClient, strategy.APIConfig{
			PrimaryIdentifier: cfg.PrimaryIdentifier,
			AuthPath:          cfg.APIAuthPath,
			RegisterPath:      cfg.APIRegisterPath,
			SessionPath:       cfg.APISessionPath,
			LogoutPath:        cfg.APILogoutPath,
		}, logger)
		authStrategy = api
		registrar = api
	default:
		authStrategy = strategy.NewLocal(accounts, roleStore, strategy.LocalConfig{
			PrimaryIdentifier: cfg.PrimaryIdentifier,
			AutoCreate:        cfg.AutoCreate,
			DefaultRoleName:   cfg.DefaultRole,
		}, logger)
	}

	authHandler := strategy.NewHandler(authStrategy, registrar, resolver, logger)

	var rolesHandler *roles.Handler
	if roleStore != nil {
		gate := authz.Middleware{Resolver: resolver, Logger: logger}
		rolesHandler = roles.NewHandler(logger, roleStore, gate)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthHandler:    authHandler,
		RolesHandler:   rolesHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("auth_mode", string(cfg.AuthMode)),
			slog.String("principal_mode", string(cfg.PrincipalMode)))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
