package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"driver-settlement-engine/config"
	httpHandler "driver-settlement-engine/internal/adapter/http/handler"
	"driver-settlement-engine/internal/adapter/http/middleware"
	"driver-settlement-engine/internal/adapter/metrics"
	pgStorage "driver-settlement-engine/internal/adapter/storage/postgres"
	redisStorage "driver-settlement-engine/internal/adapter/storage/redis"
	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/internal/scheduler"
	"driver-settlement-engine/internal/service"
	"driver-settlement-engine/pkg/logger"
)

const (
	shutdownTimeout  = 15 * time.Second
	sweepTimeout     = 2 * time.Minute
	alertHTTPTimeout = 10 * time.Second

	openAPIPath = "docs/api/openapi.yaml"
)

func main() {
	cfgPath := os.Getenv("DSE_CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("currency", cfg.Currency).
		Msg("Starting Driver Settlement Engine")

	rules, err := cfg.Settlement.Rules()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid settlement rules")
	}
	policy, err := cfg.Audit.Policy()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid audit policy")
	}
	tipRatio, err := cfg.Audit.TipRatio()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid tip ratio threshold")
	}

	ctx := context.Background()

	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(cfg.Database.MigrationURL(), log); err != nil {
			log.Fatal().Err(err).Msg("Database migration failed")
		}
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Repositories
	orderRepo := pgStorage.NewOrderRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	alertRepo := pgStorage.NewAlertDeliveryRepo(pool)
	transactor := pgStorage.NewTransactor(pool, pgStorage.WithLockTimeout(cfg.Database.LockTimeout))

	// Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	nonceStore := redisStorage.NewNonceStore(rdb)
	rateLimiter := redisStorage.NewRateLimitStore(rdb)

	recorder := metrics.NewRecorder()
	sigSvc := service.NewHMACSignatureService()

	// Audit pipeline
	notifier := service.NewAlertNotifier(
		service.AlertNotifierConfig{
			WebhookURL: cfg.Audit.AlertWebhookURL,
			Secret:     cfg.Audit.AlertSecret,
		},
		sigSvc,
		alertRepo,
		&http.Client{Timeout: alertHTTPTimeout},
		recorder,
		logger.Component(log, "alerts"),
	)
	reconciler := service.NewAuditReconciler(
		auditRepo,
		service.NewCentsCalculator(rules.FixedCommission),
		[]ports.AnomalyDetector{service.NewTipRatioDetector(tipRatio)},
		notifier,
		policy,
		recorder,
		logger.Component(log, "audit"),
	)

	// Settlement and order lifecycle
	settlementSvc := service.NewSettlementService(
		walletRepo,
		ledgerRepo,
		idempotencyRepo,
		idempotencyCache,
		transactor,
		rules,
		recorder,
		logger.Component(log, "settlement"),
	)
	deliveryHandler := service.NewDeliveryHandler(orderRepo, settlementSvc, reconciler, log)
	debtGate := service.NewDebtGate(walletRepo, rules.CreditLimit, log)
	orderSvc := service.NewOrderService(orderRepo, debtGate, deliveryHandler, log)
	ledgerSvc := service.NewLedgerService(
		walletRepo,
		ledgerRepo,
		idempotencyRepo,
		idempotencyCache,
		transactor,
		rules.CreditLimit,
		logger.Component(log, "ledger"),
	)
	reportingSvc := service.NewReportingService(walletRepo, ledgerRepo, auditRepo, rules.CreditLimit)

	var sched *scheduler.Scheduler
	if cfg.Sweep.Enabled {
		sweepSvc := service.NewSweepService(orderRepo, deliveryHandler, cfg.Sweep.BatchSize, logger.Component(log, "sweep"))
		sched, err = scheduler.New(sweepSvc, cfg.Sweep.Schedule, sweepTimeout, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid sweep schedule")
		}
		sched.Start()
		log.Info().Time("next_run", sched.Next()).Msg("Settlement sweep scheduled")
	}

	openAPI, err := os.ReadFile(openAPIPath)
	if err != nil {
		log.Warn().Err(err).Msg("OpenAPI document not found, /swagger disabled")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		OrderSvc:     orderSvc,
		ReportingSvc: reportingSvc,
		LedgerSvc:    ledgerSvc,
		DebtGate:     debtGate,
		SigSvc:       sigSvc,
		NonceStore:   nonceStore,
		WebhookAuth: middleware.WebhookAuthConfig{
			AccessKey: cfg.Webhook.AccessKey,
			Secret:    cfg.Webhook.Secret,
			MaxDrift:  cfg.Webhook.MaxDrift,
			NonceTTL:  cfg.Webhook.NonceTTL,
		},
		RateLimiter:    rateLimiter,
		HealthCheckers: []ports.HealthChecker{
			pgStorage.NewHealthCheck(pool),
			redisStorage.NewHealthCheck(rdb),
		},
		MetricsHandler: recorder.Handler(),
		OpenAPI:        openAPI,
		Currency:       cfg.Currency,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop intake first, then drain background work.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Sweep did not finish before shutdown")
		}
	}
	if err := reconciler.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Pending audits abandoned at shutdown")
	}

	log.Info().Msg("Server exited")
}
