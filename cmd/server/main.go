// Package main runs the live classroom HTTP server with WebSocket signaling
// and graceful shutdown.
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

	"github.com/skillverse/live-backend/config"
	"github.com/skillverse/live-backend/internal/auth"
	"github.com/skillverse/live-backend/internal/control"
	"github.com/skillverse/live-backend/internal/courses"
	"github.com/skillverse/live-backend/internal/middleware"
	"github.com/skillverse/live-backend/internal/participants"
	"github.com/skillverse/live-backend/internal/recordings"
	"github.com/skillverse/live-backend/internal/sessions"
	"github.com/skillverse/live-backend/internal/sessiontoken"
	"github.com/skillverse/live-backend/internal/signaling"
	"github.com/skillverse/live-backend/internal/worker"
	"github.com/skillverse/live-backend/pkg/database"
	"github.com/skillverse/live-backend/pkg/locks"
	"github.com/skillverse/live-backend/pkg/queue"
	"github.com/skillverse/live-backend/pkg/redis"
	"github.com/skillverse/live-backend/pkg/response"
	"github.com/skillverse/live-backend/pkg/storage"
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

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			RecordingsBucket:     cfg.AWS.RecordingsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	sessionLocks := locks.NewPerKey()
	tokenStore := sessiontoken.NewStore(rdb.Client, time.Duration(cfg.Signaling.TokenTTLMinutes)*time.Minute)
	signalRouter := signaling.NewRouter(logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Courses
	courseRepo := courses.NewRepository(pool)
	courseHandler := courses.NewHandler(courseRepo)

	// Session lifecycle
	sessionRepo := sessions.NewRepository(pool)
	sessionManager := sessions.NewManager(sessionRepo, courseRepo, sessionLocks, cfg.Session.DefaultMaxParticipants, logger)
	sessionHandler := sessions.NewHandler(sessionManager)

	// Participants
	participantRepo := participants.NewRepository(pool)
	participantRegistry := participants.NewRegistry(participantRepo, sessionRepo, courseRepo, tokenStore,
		sessionLocks, cfg.Signaling.WSURL, cfg.WebRTC.ICEUrls, logger)
	participantHandler := participants.NewHandler(participantRegistry)

	// Moderator control
	controlDispatcher := control.NewDispatcher(sessionRepo, participantRepo, signalRouter, logger)
	controlHandler := control.NewHandler(controlDispatcher)

	// Recordings
	recordingRepo := recordings.NewRepository(pool)
	recordingHandler := recordings.NewHandler(recordingRepo, s3Client)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	recordingWebhook := recordings.NewWebhook(recordingRepo, sessionRepo, jobQueue, logger)
	recordingWorker := worker.New(jobQueue, recordingRepo, s3Client, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Courses
		api.GET("/courses", courseHandler.List)
		api.POST("/courses", middleware.RequireRole("creator", "admin"), courseHandler.Create)
		api.POST("/courses/:id/enroll", courseHandler.Enroll)

		// Session lifecycle
		api.GET("/live-sessions", sessionHandler.List)
		api.POST("/live-sessions", middleware.RequireRole("creator", "admin"), sessionHandler.Create)
		api.GET("/live-sessions/:id", sessionHandler.Get)
		api.POST("/live-sessions/:id/start", sessionHandler.Start)
		api.POST("/live-sessions/:id/end", sessionHandler.End)
		api.POST("/live-sessions/:id/cancel", sessionHandler.Cancel)

		// Participation
		api.POST("/live-sessions/:id/join", participantHandler.Join)
		api.POST("/live-sessions/:id/leave", participantHandler.Leave)
		api.POST("/live-sessions/:id/quality", participantHandler.ReportQuality)
		api.GET("/live-sessions/:id/participants", participantHandler.ListActive)

		// Moderator control
		api.POST("/live-sessions/control", controlHandler.Dispatch)

		// Recordings
		api.GET("/live-sessions/:id/recordings", recordingHandler.ListBySession)
		api.GET("/recordings/:id/download", recordingHandler.Download)
	}

	// Webhooks (no JWT; called by the media pipeline)
	router.POST("/webhooks/recording-ready", recordingWebhook.RecordingReady)

	// WebSocket (single-use token in query; no Authorization header required)
	router.GET("/ws", signaling.ServeWs(signalRouter, sessionManager, authRepo, tokenStore, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (recording ingestion to S3)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil {
		go recordingWorker.Run(workerCtx)
	}

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
