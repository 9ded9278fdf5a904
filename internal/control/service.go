// Package control wires the application together and runs the cycle
// scheduler.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/andrzw/marketsync/internal/core/config"
	"github.com/andrzw/marketsync/internal/infra/marketplace"
	redisclient "github.com/andrzw/marketsync/internal/infra/redis"
	"github.com/andrzw/marketsync/internal/infra/storage"
	"github.com/andrzw/marketsync/internal/infra/storage/postgres"
	"github.com/andrzw/marketsync/internal/sync/category"
	"github.com/andrzw/marketsync/internal/sync/health"
	"github.com/andrzw/marketsync/internal/sync/reconcile"
)

// MigrationsDir is where goose looks for schema migrations, relative to the
// working directory.
const MigrationsDir = "migrations"

// Service is the composed application: storage, transport, resolver,
// reconciler and the health endpoint.
type Service struct {
	cfg          *config.AppConfig
	db           *postgres.DB
	redisClient  *redisclient.Client
	reconciler   *reconcile.Reconciler
	healthServer *health.Server

	stopped chan struct{}
}

// NewService builds the service from configuration.
func NewService(ctx context.Context, cfg *config.AppConfig) (*Service, error) {
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Migrate(MigrationsDir); err != nil {
		db.Close()
		return nil, err
	}

	var offerRepo storage.OfferRepository = postgres.NewOfferRepo(db)
	var productRepo storage.ProductRepository = postgres.NewProductRepo(db)
	var categoryRepo storage.CategoryRepository = postgres.NewCategoryRepo(db)

	var (
		rdb        *redisclient.Client
		tokenCache marketplace.TokenCache
		queue      reconcile.FailureQueue
	)
	if cfg.Redis.URL != "" {
		rdb, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		tokenCache = redisclient.NewTokenCache(rdb)
		queue = redisclient.NewFailedOfferQueue(rdb)
		slog.Info("redis connected", "failed_offer_queue", true)
	} else {
		slog.Info("redis not configured, skipping token cache and failure queue")
	}

	tokens := marketplace.NewTokenSource(marketplace.AuthConfig{
		TokenURL:     cfg.Marketplace.TokenURL,
		ClientID:     cfg.Marketplace.ClientID,
		ClientSecret: cfg.Marketplace.ClientSecret,
	}, tokenCache)

	client := marketplace.NewClient(marketplace.Config{
		BaseURL:        cfg.Marketplace.BaseURL,
		Timeout:        cfg.Marketplace.Timeout,
		MaxAttempts:    cfg.Marketplace.MaxAttempts,
		RequestsPerSec: cfg.Marketplace.RequestsPerSec,
	}, tokens)
	api := marketplace.NewAPI(client)

	resolver := category.NewResolver(api, categoryRepo, cfg.Sync.Categories)
	reconciler := reconcile.New(
		offerRepo, productRepo, categoryRepo, resolver, api, queue, cfg.Sync.Reconcile)

	checks := map[string]health.Checker{"postgres": db}
	if rdb != nil {
		checks["redis"] = rdb
	}

	return &Service{
		cfg:          cfg,
		db:           db,
		redisClient:  rdb,
		reconciler:   reconciler,
		healthServer: health.NewServer(cfg.Server.Port, checks),
		stopped:      make(chan struct{}),
	}, nil
}

// Start launches the health server and the scheduler loop. Returns
// immediately; use Stop for graceful shutdown.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.healthServer.Start(); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	go s.runScheduler(ctx)

	slog.Info("service started",
		"port", s.cfg.Server.Port, "interval", s.cfg.Sync.Interval)
	return nil
}

// runScheduler runs one cycle per interval. A cycle still in flight when the
// ticker fires is never overlapped; the tick is simply skipped.
func (s *Service) runScheduler(ctx context.Context) {
	defer close(s.stopped)

	// First cycle right away rather than waiting a full interval.
	s.runCycle(ctx)

	ticker := time.NewTicker(s.cfg.Sync.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Service) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.reconciler.RunCycle(ctx); err != nil {
		slog.Error("cycle failed", "error", err)
	}
}

// Stop shuts the service down, waiting for the in-flight cycle to observe
// cancellation.
func (s *Service) Stop(ctx context.Context) error {
	if err := s.healthServer.Stop(ctx); err != nil {
		slog.Warn("health server shutdown", "error", err)
	}

	select {
	case <-s.stopped:
	case <-ctx.Done():
		slog.Warn("shutdown deadline reached while a cycle was in flight")
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			slog.Warn("redis close", "error", err)
		}
	}
	return s.db.Close()
}
