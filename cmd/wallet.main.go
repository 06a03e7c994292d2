package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"wallet-service/internal/config"
	"wallet-service/internal/server"
)

func main() {
	// Load .env (optional)
	if err := godotenv.Load(); err != nil {
		log.Println("Wallet: No .env file found, relying on system env vars")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()
	srv := server.NewServer(cfg, logger)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	srv.StartWorkers(workerCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("wallet HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.HTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("wallet service shutting down gracefully")
	case err := <-errCh:
		logger.Error("wallet HTTP server failed", zap.Error(err))
	}

	// Stop taking new requests first, then drain workers so in-flight
	// money movements finish before the pool closes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.HTTP.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}

	stopWorkers()
	srv.StopWorkers()

	if err := srv.KafkaWriter.Close(); err != nil {
		logger.Warn("failed to close kafka writer", zap.Error(err))
	}
	if err := srv.Redis.Close(); err != nil {
		logger.Warn("failed to close redis client", zap.Error(err))
	}
	srv.DB.Close()
	logger.Info("wallet service stopped")
}
