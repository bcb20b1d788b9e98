// Package main runs the class scheduling HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/skillbatch/backend/config"
	"github.com/skillbatch/backend/internal/batches"
	"github.com/skillbatch/backend/internal/middleware"
	"github.com/skillbatch/backend/internal/recordings"
	"github.com/skillbatch/backend/internal/schedule"
	"github.com/skillbatch/backend/internal/sessions"
	"github.com/skillbatch/backend/internal/worker"
	"github.com/skillbatch/backend/internal/zoom"
	"github.com/skillbatch/backend/pkg/database"
	"github.com/skillbatch/backend/pkg/queue"
	"github.com/skillbatch/backend/pkg/redis"
	"github.com/skillbatch/backend/pkg/response"
	"github.com/skillbatch/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:           cfg.AWS.Region,
		AccessKeyID:      cfg.AWS.AccessKeyID,
		SecretAccessKey:  cfg.AWS.SecretAccessKey,
		RecordingsBucket: cfg.AWS.RecordingsBucket,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	zoomClient := zoom.NewClient(zoom.Config{
		AccountID:    cfg.Zoom.AccountID,
		ClientID:     cfg.Zoom.ClientID,
		ClientSecret: cfg.Zoom.ClientSecret,
		OAuthURL:     cfg.Zoom.OAuthURL,
		APIBaseURL:   cfg.Zoom.APIBaseURL,
	}, logger)

	batchRepo := batches.NewRepository(pool)
	sessionRepo := sessions.NewRepository(pool)
	recordingRepo := recordings.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	scheduleService := schedule.NewService(batchRepo, sessionRepo, recordingRepo, zoomClient, jobQueue, schedule.Defaults{
		Timezone:        cfg.Schedule.DefaultTimezone,
		StartTime:       cfg.Schedule.DefaultStartTime,
		DurationMinutes: cfg.Schedule.DefaultDurationMinutes,
	}, logger)
	scheduleHandler := schedule.NewHandler(scheduleService, logger)

	ingestor := recordings.NewIngestor(sessionRepo, recordingRepo, zoomClient, s3Client, logger)
	webhookHandler := recordings.NewWebhookHandler(ingestor, recordings.WebhookConfig{
		SecretToken:       cfg.Zoom.WebhookSecretToken,
		VerificationToken: cfg.Zoom.WebhookVerificationToken,
		AllowUnverified:   cfg.Zoom.WebhookAllowUnverified,
	}, logger)

	backfillProcessor := worker.NewBackfillProcessor(sessionRepo, batchRepo, zoomClient, jobQueue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	router.POST("/schedule-batch", scheduleHandler.ScheduleBatch)
	router.GET("/batches", scheduleHandler.ListBatches)
	router.GET("/sessions/:batchId", scheduleHandler.ListSessions)
	router.POST("/batches/:batchId/backfill", scheduleHandler.BackfillBatch)

	// Provider callback (shared-secret check in handler, no other auth)
	router.POST("/webhook", webhookHandler.Handle)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (operator-triggered meeting backfill jobs)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go backfillProcessor.Run(workerCtx)
	logger.Info("backfill worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
