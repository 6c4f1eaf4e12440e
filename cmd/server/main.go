// Package main wires the auction platform: configuration, stores, domain
// services, and the HTTP server lifecycle. Business logic lives in the
// internal service packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sayarat/internal/audit"
	auctionHandler "sayarat/internal/auction/handler"
	auctionService "sayarat/internal/auction/service"
	auctionStore "sayarat/internal/auction/store"
	"sayarat/internal/auction/tracer"
	authHandler "sayarat/internal/auth/handler"
	authService "sayarat/internal/auth/service"
	authStore "sayarat/internal/auth/store"
	"sayarat/internal/platform/config"
	"sayarat/internal/platform/database"
	"sayarat/internal/platform/health"
	"sayarat/internal/platform/logger"
	"sayarat/internal/platform/metrics"
	platformRedis "sayarat/internal/platform/redis"
	rlConfig "sayarat/internal/ratelimit/config"
	rlMiddleware "sayarat/internal/ratelimit/middleware"
	rlService "sayarat/internal/ratelimit/service"
	"sayarat/internal/ratelimit/store/record"
	"sayarat/internal/ratelimit/workers/cleanup"
	"sayarat/internal/token"
	httptransport "sayarat/internal/transport/http"
)

func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	log.Info("initializing sayarat",
		"addr", cfg.Addr,
		"session_ttl", cfg.SessionTTL,
		"idle_ttl", cfg.IdleTTL,
	)

	m := metrics.New()
	healthHandler := health.New()

	// Audit sink: in-memory store behind an async publisher. Nothing in the
	// request path depends on its results.
	auditPublisher := audit.NewPublisher(audit.NewInMemoryStore(),
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	)
	defer auditPublisher.Close()

	// Rate records live in Redis when configured, otherwise in process memory.
	var rateStore record.Store = record.NewInMemoryStore()
	redisClient, err := platformRedis.New(cfg.RedisAddr)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		rateStore = record.NewRedisStore(redisClient.Client)
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(ctx)
		})
		log.Info("rate records backed by redis", "addr", cfg.RedisAddr)
	}

	rateService, err := rlService.New(rateStore,
		rlService.WithConfig(rlConfig.FromEnv()),
		rlService.WithLogger(log),
		rlService.WithMetrics(m),
		rlService.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		log.Error("rate limiter init failed", "error", err)
		os.Exit(1)
	}

	tokenService, err := token.New(cfg.JWTSecret, cfg.SessionTTL, cfg.IdleTTL, cfg.RefreshTTL)
	if err != nil {
		log.Error("token service init failed", "error", err)
		os.Exit(1)
	}

	// Auctions live in PostgreSQL when configured, otherwise in memory.
	var aucStore auctionStore.Store = auctionStore.NewInMemoryStore()
	pool, err := database.New(database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		aucStore = auctionStore.NewPostgres(pool.DB())
		healthHandler.RegisterCheck("postgres", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
		log.Info("auctions backed by postgres")
	}

	aucService, err := auctionService.New(aucStore,
		auctionService.WithLogger(log),
		auctionService.WithMetrics(m),
		auctionService.WithAuditPublisher(auditPublisher),
		auctionService.WithTracer(tracer.NewOTel()),
	)
	if err != nil {
		log.Error("auction service init failed", "error", err)
		os.Exit(1)
	}

	users := authStore.NewInMemoryUserStore()
	authSvc, err := authService.New(users, tokenService,
		authService.WithLogger(log),
		authService.WithMetrics(m),
		authService.WithAuditPublisher(auditPublisher),
		authService.WithRateClearer(rateService),
	)
	if err != nil {
		log.Error("auth service init failed", "error", err)
		os.Exit(1)
	}
	if err := seedUsers(authSvc, log); err != nil {
		log.Error("user seeding failed", "error", err)
		os.Exit(1)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Auth:           authHandler.New(authSvc),
		Auction:        auctionHandler.New(aucService),
		Verifier:       tokenService,
		Rate:           rlMiddleware.New(rateService, log),
		Health:         healthHandler,
		TrustedProxies: cfg.TrustedProxies,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		worker := cleanup.New(rateStore, cleanup.WithLogger(log))
		if err := worker.Start(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// seedUsers provisions demo accounts for local environments. Production
// deployments set SEED_DEMO_USERS to something other than "true" and provision
// accounts out of band.
func seedUsers(svc *authService.Service, log *slog.Logger) error {
	if os.Getenv("SEED_DEMO_USERS") != "true" {
		return nil
	}
	ctx := context.Background()
	if _, err := svc.EnsureUser(ctx, "admin@sayarat.local", "admin-change-me", "Admin", "admin"); err != nil {
		return err
	}
	if _, err := svc.EnsureUser(ctx, "buyer@sayarat.local", "buyer-change-me", "Demo Buyer", "buyer"); err != nil {
		return err
	}
	log.Info("demo users seeded")
	return nil
}
