package notifications

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RetryConfig configures the delivery retry worker
type RetryConfig struct {
	Schedule   string `json:"schedule"`
	MaxRetries int    `json:"max_retries"`
	BatchSize  int    `json:"batch_size"`
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Schedule:   "0 */2 * * * *",
		MaxRetries: 5,
		BatchSize:  100,
	}
}

// RetryWorker periodically re-attempts failed deliveries
type RetryWorker struct {
	service *Service
	store   Store
	config  RetryConfig
	cron    *cron.Cron
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	busy    sync.Mutex
}

// NewRetryWorker creates a new retry worker
func NewRetryWorker(service *Service, store Store, config RetryConfig, logger *zap.Logger) *RetryWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryWorker{
		service: service,
		store:   store,
		config:  config,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
	}
}

// Start schedules RunOnce on the configured cron expression
func (w *RetryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("retry worker already running")
	}

	_, err := w.cron.AddFunc(w.config.Schedule, func() {
		// skip the tick if the previous batch is still running
		if !w.busy.TryLock() {
			w.logger.Debug("Previous retry batch still running")
			return
		}
		defer w.busy.Unlock()

		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("Delivery retry batch failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retry schedule %q: %w", w.config.Schedule, err)
	}

	w.cron.Start()
	w.running = true
	w.logger.Info("Delivery retry worker started", zap.String("schedule", w.config.Schedule))
	return nil
}

// Stop stops scheduling and waits for a running batch to finish
func (w *RetryWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	<-w.cron.Stop().Done()
	w.running = false
	w.logger.Info("Delivery retry worker stopped")
}

// RunOnce retries one batch of failed deliveries and returns how many
// succeeded.
func (w *RetryWorker) RunOnce(ctx context.Context) (int, error) {
	logs, err := w.store.RetryableDeliveries(ctx, w.config.MaxRetries, w.config.BatchSize)
	if err != nil {
		return 0, err
	}

	succeeded := 0
	for i := range logs {
		if ctx.Err() != nil {
			return succeeded, ctx.Err()
		}
		log := &logs[i]
		if !w.service.Handles(log.Channel) {
			continue
		}
		if err := w.service.Retry(ctx, log, w.config.MaxRetries); err != nil {
			w.logger.Error("Failed to retry delivery",
				zap.String("delivery_log_id", log.ID.String()),
				zap.Error(err))
			continue
		}
		if log.Status == StatusSent || log.Status == StatusDelivered {
			succeeded++
		}
	}

	if len(logs) > 0 {
		w.logger.Info("Delivery retry batch finished",
			zap.Int("attempted", len(logs)),
			zap.Int("succeeded", succeeded))
	}
	return succeeded, nil
}
