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

	"github.com/gin-gonic/gin"

	"jadbank/internal/config"
	"jadbank/internal/currency"
	"jadbank/internal/database"
	"jadbank/internal/events"
	"jadbank/internal/handlers"
	"jadbank/internal/idempotency"
	"jadbank/internal/logger"
	"jadbank/internal/repository"
	"jadbank/internal/seed"
	"jadbank/internal/server"
	"jadbank/internal/store"
	"jadbank/internal/validator"
)

// @title           JAD Bank Ledger API
// @version         1.0
// @description     Multi-currency accounts, transfers, exchange, loans, stock purchases and bill payments over an intent-based ledger.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Operator key for the admin endpoints.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	validator.Register()
	currency.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rowStore, ping, closeStore, err := openStore(appConfig)
	if err != nil {
		return err
	}
	defer closeStore()
	repo := repository.New(store.WithTimeout(rowStore, appConfig.StoreTimeout))

	if appConfig.SeedDemoData {
		if err := seed.Demo(ctx, repo); err != nil {
			return fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	idem, closeIdem, err := openIdempotency(ctx, appConfig, repo)
	if err != nil {
		return err
	}
	defer closeIdem()

	publisher := openPublisher(appConfig)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warnf("event publisher close error: %v", err)
		}
	}()

	app := server.NewApp(appConfig, server.Deps{
		Repo:        repo,
		Idempotency: idem,
		Publisher:   publisher,
		StorePing:   ping,
	})

	// Resolve whatever a previous process left unfinished before taking traffic.
	report, err := app.Reconciler.Sweep(ctx)
	if err != nil {
		log.Warnf("startup reconciliation failed: %v", err)
	} else if report.Examined > 0 {
		log.Infow("startup reconciliation", "examined", report.Examined,
			"rolled_forward", report.RolledForward, "reversed", report.Reversed, "inconsistent", report.Inconsistent)
	}
	go app.Reconciler.Run(ctx, appConfig.ReconcileInterval)

	router := server.NewRouter(app.Handlers, server.Options{
		OperatorAPIKey: appConfig.OperatorAPIKey,
		RequestLogging: true,
		Swagger:        true,
	})
	if appConfig.OperatorAPIKey == "" {
		log.Warn("OPERATOR_API_KEY is not set, admin endpoints are disabled")
	}

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting JAD Bank ledger on port %s (store: %s)", appConfig.Port, appConfig.StoreBackend)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore returns the configured row store, a health probe for it and a
// close function.
func openStore(cfg *config.Config) (store.RowStore, handlers.HealthCheck, func(), error) {
	if cfg.StoreBackend == config.StoreMemory {
		logger.Get().Warn("Using the in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil, func() {}, nil
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := dbManager.Migrate(); err != nil {
		_ = dbManager.Close()
		return nil, nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	closeFn := func() {
		if err := dbManager.Close(); err != nil {
			logger.Get().Warnf("database close error: %v", err)
		}
	}
	return store.NewGormStore(dbManager.DB()), dbManager.Ping, closeFn, nil
}

// openIdempotency uses Redis when REDIS_ADDR is set and the row store otherwise.
func openIdempotency(ctx context.Context, cfg *config.Config, repo *repository.Repository) (idempotency.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return idempotency.NewRowStore(repo), func() {}, nil
	}
	client, err := idempotency.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	logger.Get().Infof("Idempotency keys stored in Redis at %s", cfg.RedisAddr)
	return idempotency.NewRedisStore(client, cfg.IdempotencyTTL), func() { _ = client.Close() }, nil
}

// openPublisher uses Kafka when KAFKA_BROKERS is set.
func openPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}
	}
	logger.Get().Infof("Publishing ledger events to Kafka %v", cfg.KafkaBrokers)
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
}
