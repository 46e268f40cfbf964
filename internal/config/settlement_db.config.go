package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ConnectDB opens the pgx pool with retry and exponential backoff. Connection
// parameters come from the DB_* environment variables.
func ConnectDB(logger *zap.Logger) (*pgxpool.Pool, error) {
	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_NAME"),
	)

	poolCfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolCfg.MaxConns = 25
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	maxRetries := 5
	delay := 2 * time.Second

	var dbpool *pgxpool.Pool
	for i := 1; i <= maxRetries; i++ {
		logger.Info("connecting to database",
			zap.Int("attempt", i),
			zap.Int("max_attempts", maxRetries))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		dbpool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if pingErr := dbpool.Ping(ctx); pingErr == nil {
				cancel()
				logger.Info("database connected")
				return dbpool, nil
			} else {
				err = fmt.Errorf("ping failed: %w", pingErr)
				dbpool.Close()
			}
		}
		cancel()

		logger.Warn("database connection failed", zap.Error(err))

		if i < maxRetries {
			time.Sleep(delay)
			delay *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
}
