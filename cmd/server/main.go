// Package main runs the venue HTTP server: world resolution, file uploads, schedule
// imports and room polls, with graceful shutdown.
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

	"github.com/aura-webinar/venue/config"
	"github.com/aura-webinar/venue/internal/auth"
	"github.com/aura-webinar/venue/internal/media"
	"github.com/aura-webinar/venue/internal/middleware"
	"github.com/aura-webinar/venue/internal/models"
	"github.com/aura-webinar/venue/internal/polls"
	"github.com/aura-webinar/venue/internal/realtime"
	"github.com/aura-webinar/venue/internal/schedule"
	"github.com/aura-webinar/venue/internal/upload"
	"github.com/aura-webinar/venue/internal/worlds"
	"github.com/aura-webinar/venue/pkg/database"
	"github.com/aura-webinar/venue/pkg/redis"
	"github.com/aura-webinar/venue/pkg/response"
	"github.com/aura-webinar/venue/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: cfg.Database.MaxConns}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Events are optional: without Redis, mutations still succeed and nothing is fanned out.
	var (
		roomEvents  polls.Publisher
		worldEvents worlds.EventPublisher
	)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		publisher := realtime.NewRedisPublisher(rdb.Client, logger)
		roomEvents, worldEvents = publisher, publisher
	} else {
		logger.Warn("REDIS_ADDR not set, realtime events disabled")
	}

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		Bucket:          cfg.AWS.FilesBucket,
		PublicBaseURL:   cfg.AWS.PublicBaseURL,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)
	authRepo := auth.NewRepository(pool)
	gate := auth.NewGate(jwtService, authRepo, logger)

	// Worlds
	worldRepo := worlds.NewRepository(pool)
	notifier := worlds.NewNotifier(worldEvents, logger)

	// Uploads
	normalizer := media.NewNormalizer(cfg.Upload.JPEGQuality, cfg.Upload.MaxImagePixels)
	uploadSvc := upload.NewService(cfg.Upload, normalizer, s3Client, upload.NewRepository(pool),
		schedule.NewConverter(), notifier, logger)
	uploadHandler := upload.NewHandler(uploadSvc, logger)

	// Polls
	var pollStore polls.Store = polls.NewPostgresStore(pool)
	if cfg.Store.Driver == "memory" {
		logger.Warn("polls kept in memory, they are lost on restart")
		pollStore = polls.NewMemoryStore()
	}
	pollHandler := polls.NewHandler(polls.NewService(pollStore, roomEvents, logger), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	api := router.Group("/api")
	api.Use(worlds.Resolve(worldRepo, logger))
	{
		require := func(roomParam string, perms ...models.Permission) gin.HandlerFunc {
			return middleware.RequirePermissions(gate, logger, roomParam, perms...)
		}

		// Files
		api.POST("/upload", require("", upload.Permissions...), uploadHandler.Upload)
		api.POST("/schedule_import", require("", upload.SchedulePermissions...), uploadHandler.ScheduleImport)

		// Polls
		read := require(polls.RoomParam, models.PermRoomPollRead, models.PermRoomPollManage)
		vote := require(polls.RoomParam, models.PermRoomPollVote)
		manage := require(polls.RoomParam, models.PermRoomPollManage)
		roomPolls := api.Group("/rooms/:" + polls.RoomParam + "/polls")
		roomPolls.GET("", read, pollHandler.List)
		roomPolls.POST("", manage, pollHandler.Create)
		roomPolls.GET("/voted", read, pollHandler.Voted)
		roomPolls.GET("/:id", read, pollHandler.Get)
		roomPolls.PATCH("/:id", manage, pollHandler.Update)
		roomPolls.DELETE("/:id", manage, pollHandler.Delete)
		roomPolls.POST("/:id/pin", manage, pollHandler.Pin)
		roomPolls.POST("/:id/vote", vote, pollHandler.Vote)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
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
