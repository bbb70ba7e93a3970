package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"jobboard/application-portal/application-portal-backend/internal/config"
	"jobboard/application-portal/application-portal-backend/internal/notifications"
	"jobboard/application-portal/application-portal-backend/internal/platform"
)

// The worker retries failed email and push deliveries out of process. It
// has no sockets, so WEBSOCKET deliveries are only retried by the API.
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic(err)
	}

	logger, err := platform.NewLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbs, err := platform.OpenDatabases(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbs.Close()

	store := notifications.NewGormStore(dbs.Gorm)
	senders, err := notifications.BuildSenders(ctx, cfg, store, nil)
	if err != nil {
		logger.Fatal("Failed to configure notification channels", zap.Error(err))
	}
	service := notifications.NewService(store, logger, senders...)

	worker := notifications.NewRetryWorker(service, store, notifications.RetryConfig{
		Schedule:   cfg.Notifications.RetrySchedule,
		MaxRetries: cfg.Notifications.MaxRetries,
		BatchSize:  cfg.Notifications.RetryBatchSize,
	}, logger)

	// Drain anything left over before waiting on the schedule
	if n, err := worker.RunOnce(ctx); err != nil {
		logger.Error("Initial retry batch failed", zap.Error(err))
	} else {
		logger.Info("Initial retry batch finished", zap.Int("succeeded", n))
	}

	if err := worker.Start(ctx); err != nil {
		logger.Fatal("Failed to start delivery retry worker", zap.Error(err))
	}

	<-ctx.Done()
	logger.Info("Shutting down notification worker...")
	worker.Stop()
}
