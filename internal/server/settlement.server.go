package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"settlement-service/internal/config"
	hrest "settlement-service/internal/handler/rest"
	"settlement-service/internal/pub"
	"settlement-service/internal/repository"
	"settlement-service/internal/usecase"
	"settlement-service/pkg/utils"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Run wires storage, usecases and the REST surface, then serves until
// SIGINT/SIGTERM. With STORAGE_DRIVER=memory it runs hermetically on the
// in-memory stores, without Postgres, Redis or Kafka.
func Run(cfg config.AppConfig, logger *zap.Logger) error {
	var (
		accountRepo repository.AccountRepository
		ledgerRepo  repository.LedgerRepository
		dbpool      *pgxpool.Pool
		rdb         *redis.Client
		kafkaWriter *kafka.Writer
	)

	switch cfg.StorageDriver {
	case "memory":
		memAccounts := repository.NewMemoryAccountRepo()
		accountRepo = memAccounts
		ledgerRepo = repository.NewMemoryLedgerRepo(memAccounts)
		logger.Info("using in-memory storage")

	case "postgres":
		var err error
		dbpool, err = config.ConnectDB(logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer dbpool.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = repository.EnsureSchema(ctx, dbpool)
		cancel()
		if err != nil {
			return fmt.Errorf("schema: %w", err)
		}

		accountRepo = repository.NewAccountRepo(dbpool, logger)
		ledgerRepo = repository.NewLedgerRepo(dbpool, logger)

		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       0,
		})
		defer rdb.Close()

		kafkaWriter = &kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaBrokers...),
			Topic:        cfg.KafkaTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		}
		defer kafkaWriter.Close()

	default:
		return fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	refGen := utils.NewReferenceGenerator()
	eventPublisher := pub.NewSettlementEventPublisher(rdb, kafkaWriter, logger)

	accountUC := usecase.NewAccountUsecase(accountRepo, refGen, rdb, logger)
	intakeUC := usecase.NewIntakeUsecase(accountRepo, ledgerRepo, refGen, eventPublisher, logger)
	settlementUC := usecase.NewSettlementUsecase(accountRepo, ledgerRepo, accountUC, eventPublisher, logger)

	restHandler := hrest.NewSettlementRestHandler(accountUC, intakeUC, settlementUC, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      restHandler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("settlement REST server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
