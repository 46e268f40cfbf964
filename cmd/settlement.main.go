package main

import (
	"log"

	"settlement-service/internal/config"
	"settlement-service/internal/server"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env (optional)
	if err := godotenv.Load(); err != nil {
		log.Println("Settlement: no .env file found, relying on system env vars")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()

	if err := server.Run(cfg, logger); err != nil {
		logger.Fatal("settlement service failed", zap.Error(err))
	}
}
