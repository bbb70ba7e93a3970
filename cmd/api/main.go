package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"jobboard/application-portal/application-portal-backend/internal/applications"
	"jobboard/application-portal/application-portal-backend/internal/auth"
	"jobboard/application-portal/application-portal-backend/internal/config"
	"jobboard/application-portal/application-portal-backend/internal/jobs"
	"jobboard/application-portal/application-portal-backend/internal/notifications"
	"jobboard/application-portal/application-portal-backend/internal/notifications/websocket"
	"jobboard/application-portal/application-portal-backend/internal/platform"
	"jobboard/application-portal/application-portal-backend/pkg/workflows"
)

func main() {
	// .env is optional outside local development
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

	// Jobs directory
	jobDirectory := jobs.NewResolver(dbs.Gorm, logger)
	if err := jobDirectory.AutoMigrate(); err != nil {
		logger.Fatal("Failed to migrate jobs schema", zap.Error(err))
	}

	// Notifications
	notificationStore := notifications.NewGormStore(dbs.Gorm)
	if err := notificationStore.AutoMigrate(); err != nil {
		logger.Fatal("Failed to migrate notifications schema", zap.Error(err))
	}
	wsManager := websocket.NewManager(cfg.WebSocket.AllowedOrigins, logger)
	defer wsManager.Close()

	senders, err := notifications.BuildSenders(ctx, cfg, notificationStore, wsManager)
	if err != nil {
		logger.Fatal("Failed to configure notification channels", zap.Error(err))
	}
	notificationService := notifications.NewService(notificationStore, logger, senders...)
	notificationHandler := notifications.NewHandler(notificationService, wsManager, logger)

	retryWorker := notifications.NewRetryWorker(notificationService, notificationStore, notifications.RetryConfig{
		Schedule:   cfg.Notifications.RetrySchedule,
		MaxRetries: cfg.Notifications.MaxRetries,
		BatchSize:  cfg.Notifications.RetryBatchSize,
	}, logger)
	if err := retryWorker.Start(ctx); err != nil {
		logger.Fatal("Failed to start delivery retry worker", zap.Error(err))
	}
	defer retryWorker.Stop()

	// Applications
	machine := applications.NewStateMachine(workflows.NewTransitionTable(), func() time.Time { return time.Now().UTC() })
	applicationService := applications.NewService(
		applications.NewPostgresRepository(dbs.SQL),
		jobDirectory,
		machine,
		applications.NewNotifier(cfg.Notifications.Channels),
		notificationService,
		logger,
	)
	applicationHandler := applications.NewHandler(applicationService, logger)

	// Setup Router
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), platform.RequestLogger(logger), platform.CORS(cfg.WebSocket.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		state := "healthy"
		if err := dbs.SQL.PingContext(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			state = "unhealthy"
		}
		c.JSON(status, gin.H{
			"status":      state,
			"timestamp":   time.Now(),
			"connections": wsManager.GetConnectionCount(),
		})
	})

	tokens := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.TokenTTL)
	api := router.Group("/api/v1")
	api.Use(auth.Middleware(tokens, logger))
	{
		auth.RegisterRoutes(api)
		applicationHandler.RegisterRoutes(api)
		notificationHandler.RegisterRoutes(api)
	}

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
