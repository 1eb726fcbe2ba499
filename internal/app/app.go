package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/shop-treasury/internal/api"
	"github.com/ayo6706/shop-treasury/internal/api/middleware"
	"github.com/ayo6706/shop-treasury/internal/config"
	"github.com/ayo6706/shop-treasury/internal/db"
	"github.com/ayo6706/shop-treasury/internal/domain"
	"github.com/ayo6706/shop-treasury/internal/idempotency"
	"github.com/ayo6706/shop-treasury/internal/ledger"
	"github.com/ayo6706/shop-treasury/internal/ledger/memory"
	"github.com/ayo6706/shop-treasury/internal/observability"
	"github.com/ayo6706/shop-treasury/internal/repository"
	"github.com/ayo6706/shop-treasury/internal/service"
	"github.com/ayo6706/shop-treasury/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the ledger, the economy facade and the HTTP server,
// blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	facade, reconciler := buildEconomy(ctx, cfg, logger, backend.client)

	var stopWorker func()
	if reconciler != nil {
		reconWorker := worker.NewReconciliationWorker(reconciler).WithInterval(cfg.ReconciliationInterval)
		stopWorker = reconWorker.Run(ctx)
		logger.Info("reconciliation worker started", zap.Duration("interval", cfg.ReconciliationInterval))
	}

	var pinger ledger.Pinger
	if p, ok := backend.client.(ledger.Pinger); ok {
		pinger = p
	}
	var redisCmd redis.Cmdable
	if backend.redis != nil {
		redisCmd = backend.redis
	}
	router := api.NewRouter(cfg, logger, facade, pinger, redisCmd)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort), zap.String("ledger_backend", cfg.LedgerBackend))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	if stopWorker != nil {
		logger.Info("stopping reconciliation worker")
		stopWorker()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

type ledgerBackend struct {
	client ledger.Client
	pool   *pgxpool.Pool
	redis  *redis.Client
}

func (b *ledgerBackend) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func openLedger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ledgerBackend, error) {
	format := domain.CurrencyFormat{Symbol: cfg.CurrencySymbol, Places: cfg.CurrencyPlaces}

	if cfg.LedgerBackend == config.BackendMemory {
		logger.Warn("using in-memory ledger; balances are lost on restart")
		return &ledgerBackend{client: memory.New(memory.WithCurrencyFormat(format))}, nil
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.DefaultPoolOptions)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	backend := &ledgerBackend{pool: pool}

	var keys *idempotency.Store
	if cfg.RedisURL != "" {
		redisClient, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			// Postgres still enforces key uniqueness; Redis only saves a round trip.
			logger.Warn("redis unavailable, idempotency cache disabled", zap.Error(err))
		} else {
			backend.redis = redisClient
			keys = idempotency.NewStore(redisClient, cfg.IdempotencyTTL)
		}
	}

	repo := repository.NewRepository(pool, keys, format)
	if err := repo.Migrate(ctx); err != nil {
		backend.Close()
		return nil, fmt.Errorf("migrate ledger schema: %w", err)
	}
	backend.client = repo
	return backend, nil
}

// buildEconomy resolves the system account and wires the facade. A failed
// bootstrap leaves the economy disabled instead of stopping the process.
func buildEconomy(ctx context.Context, cfg *config.Config, logger *zap.Logger, client ledger.Client) (*service.EconomyFacade, worker.Reconciler) {
	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	system, err := service.Bootstrap(bootCtx, client, cfg.SystemAccountName)
	if err != nil {
		logger.Error("system account bootstrap failed; economy disabled", zap.Error(err))
		return nil, nil
	}
	logger.Info("system account ready", zap.Uint32("account_id", system.ID))

	opts := []service.OrchestratorOption{service.WithLogger(logger)}
	if auditLog, ok := client.(ledger.AuditLog); ok {
		opts = append(opts, service.WithAudit(service.NewAuditService(auditLog)))
	}
	transfers := service.NewTransferOrchestrator(client, system, opts...)
	facade := service.NewEconomyFacade(client, transfers,
		service.WithColorStripping(cfg.StripPriceColors),
		service.WithFacadeLogger(logger))

	auditor, ok := client.(ledger.Auditor)
	if !ok {
		return facade, nil
	}
	return facade, service.NewReconciliationService(auditor, client, system)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
