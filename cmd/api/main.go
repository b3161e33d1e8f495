package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/profilehub/internal/auth"
	"github.com/geocoder89/profilehub/internal/cache"
	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/db"
	httpx "github.com/geocoder89/profilehub/internal/http"
	"github.com/geocoder89/profilehub/internal/http/handlers"
	"github.com/geocoder89/profilehub/internal/identity"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/geocoder89/profilehub/internal/repo/memory"
	"github.com/geocoder89/profilehub/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName: cfg.OTelServiceName,
		Env:         cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := config.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	prom := observability.NewProm(prometheus.DefaultRegisterer)
	checks := map[string]handlers.ReadinessCheck{}

	// store
	var users httpx.UserStore
	switch cfg.Store {
	case "memory":
		log.Warn("using in-memory user store; data is lost on restart")
		users = memory.NewUsersRepo()
	default:
		pool, err := db.NewPool(ctx, cfg.DBURL, cfg.DBMaxConns)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}

		users = postgres.NewUsersRepo(pool, prom)
		checks["db"] = pool.Ping
	}

	// profile cache
	var profileCache cache.ProfileCache
	switch cfg.ProfileCache {
	case "redis":
		rdb := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		rc := cache.NewRedisProfileCache(rdb, cfg.ProfileCacheTTL)
		if err := rc.Ping(ctx); err != nil {
			// the cache is optional at runtime; readiness reports it
			log.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "err", err)
		}
		profileCache = rc
		checks["redis"] = rc.Ping
	case "memory":
		profileCache = cache.NewMemoryProfileCache(cfg.ProfileCacheTTL)
	default:
		profileCache = cache.Nop{}
	}

	verifier, err := identity.NewGoogleVerifier(ctx, cfg.GoogleIssuerURL, cfg.GoogleClientID, cfg.IdentityHTTPTimeout)
	if err != nil {
		return err
	}

	sessions := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL())

	health := handlers.NewHealthHandler(checks)

	router := httpx.NewRouter(log, httpx.Deps{
		Config:   cfg,
		Verifier: verifier,
		Sessions: sessions,
		Users:    users,
		Cache:    profileCache,
		Prom:     prom,
		Gatherer: prometheus.DefaultGatherer,
		Health:   health,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store, "profile_cache", cfg.ProfileCache)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-stop:
		log.Info("server shutting down", "signal", sig.String())
	}

	health.MarkShuttingDown()

	sctx, cancel := config.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
