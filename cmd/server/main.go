// Package main runs the trip matching HTTP server with live trip chat and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yatri-app/backend/config"
	"github.com/yatri-app/backend/internal/auth"
	"github.com/yatri-app/backend/internal/discovery"
	"github.com/yatri-app/backend/internal/hotels"
	"github.com/yatri-app/backend/internal/middleware"
	"github.com/yatri-app/backend/internal/presence"
	"github.com/yatri-app/backend/internal/realtime"
	"github.com/yatri-app/backend/internal/store"
	"github.com/yatri-app/backend/internal/store/memory"
	"github.com/yatri-app/backend/internal/store/postgres"
	"github.com/yatri-app/backend/internal/tripchat"
	"github.com/yatri-app/backend/internal/trips"
	"github.com/yatri-app/backend/internal/worker"
	"github.com/yatri-app/backend/pkg/cache"
	"github.com/yatri-app/backend/pkg/database"
	"github.com/yatri-app/backend/pkg/queue"
	"github.com/yatri-app/backend/pkg/redis"
	"github.com/yatri-app/backend/pkg/response"
	"github.com/yatri-app/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	// Store
	var st store.Store
	if cfg.Store.Driver == "memory" {
		logger.Warn("using in-memory store; data is lost on restart")
		st = memory.New()
	} else {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
			MaxConns:         int32(cfg.Database.MaxConns),
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			StatementTimeout: cfg.Store.OpTimeout,
			ApplicationName:  "yatri-server",
		}, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, pool); err != nil {
				logger.Fatal("migrate", zap.Error(err))
			}
		}
		st = postgres.New(pool)
	}

	// Redis-backed collaborators, or in-process fallbacks for a single instance.
	var (
		rdb          *goredis.Client
		hub          *realtime.Hub
		presenceSt   presence.Store
		revoker      auth.Revoker
		hotelCache   cache.Cache
		discoverySet cache.Cache
		jobs         worker.JobQueue
	)
	if cfg.Redis.Enabled() {
		client, err := redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer client.Close()
		rdb = client.Client
		pubsub := realtime.NewRedisPubSub(rdb, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
		stopSignOuts, err := hub.ListenSignOuts(pubsub)
		if err != nil {
			logger.Fatal("redis sign-outs", zap.Error(err))
		}
		defer stopSignOuts()
		presenceSt = presence.NewRedisStore(rdb)
		revoker = auth.NewRedisRevoker(rdb)
		hotelCache = cache.NewRedis(rdb, "cache:hotels:")
		discoverySet = cache.NewRedis(rdb, "cache:discover:")
		jobs = queue.NewQueue(rdb, logger)
	} else {
		logger.Warn("REDIS_ADDR not set; realtime, presence, caches and jobs are in-process only")
		hub = realtime.NewHub(logger, nil, nil)
		presenceSt = presence.NewMemoryStore(nil)
		revoker = auth.NewMemoryRevoker()
		hotelCache = cache.NewMemory(nil, 512)
		discoverySet = cache.NewMemory(nil, 512)
		jobs = queue.NewMemory(0, logger)
	}

	// Transcript storage
	var s3Client *storage.S3
	var signer tripchat.TranscriptSigner
	if cfg.AWS.Enabled() {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			TranscriptsBucket:    cfg.AWS.TranscriptsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
			Endpoint:             cfg.AWS.S3Endpoint,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			signer = s3Client
		}
	}

	// Presence
	presenceSvc := presence.NewService(presenceSt, cfg.Presence.HeartbeatInterval, logger)
	presenceHandler := presence.NewHandler(presenceSvc, logger)

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authenticator := auth.NewAuthenticator(jwtService, revoker)
	authHandler := auth.NewHandler(st.Users(), jwtService, authenticator, logger,
		func(ctx context.Context, userID uuid.UUID) {
			n, err := hub.SignOut(ctx, userID)
			if err != nil {
				logger.Warn("sign-out not propagated to other instances", zap.String("user_id", userID.String()), zap.Error(err))
			}
			logger.Debug("closed trip chats on sign-out", zap.String("user_id", userID.String()), zap.Int("subscriptions", n))
		},
		func(ctx context.Context, userID uuid.UUID) {
			if err := presenceSvc.SetOffline(ctx, userID); err != nil {
				logger.Warn("set offline on sign-out", zap.String("user_id", userID.String()), zap.Error(err))
			}
		},
	)

	// Trips and requests
	tripSvc := trips.NewService(st, logger, trips.WithTimeout(cfg.Store.OpTimeout))
	tripHandler := trips.NewHandler(tripSvc, logger)

	// Trip chat
	channel := tripchat.NewChannel(st, hub, signer, logger, cfg.Store.OpTimeout)
	chatHandler := tripchat.NewHandler(channel)
	wsHandler := tripchat.NewWSHandler(channel, presenceSvc, func(ctx context.Context, token string) (uuid.UUID, error) {
		claims, err := authenticator.Authenticate(ctx, token)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.UserID, nil
	}, middleware.ParseOrigins(cfg.Server.CORSAllowedOrigins), logger)

	// Collaborators outside the core
	hotelHandler := hotels.NewHandler(hotels.NewClient(hotels.Config{
		BaseURL:        cfg.Hotels.BaseURL,
		APIKey:         cfg.Hotels.APIKey,
		RequestsPerSec: cfg.Hotels.RequestsPerSec,
		Burst:          cfg.Hotels.Burst,
		CacheTTL:       cfg.Hotels.CacheTTL,
	}, nil, hotelCache, logger))
	discoveryHandler := discovery.NewHandler(discovery.NewGenerator(discovery.Config{
		Endpoint: cfg.Discovery.Endpoint,
		APIKey:   cfg.Discovery.APIKey,
		Model:    cfg.Discovery.Model,
		CacheTTL: cfg.Discovery.CacheTTL,
	}, nil, discoverySet, logger))

	router := gin.New()
	router.Use(gin.Recovery())
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
	api.Use(middleware.JWT(authenticator, logger))
	{
		api.POST("/auth/logout", authHandler.Logout)
		api.GET("/profiles/me", authHandler.Me)
		api.PATCH("/profiles/me", authHandler.UpdateMe)

		// Trip directory
		api.GET("/trips", tripHandler.Search)
		api.GET("/trips/mine", tripHandler.ListMine)
		api.POST("/trips", tripHandler.Create)
		api.GET("/trips/:id", tripHandler.Get)

		// Join requests
		api.POST("/trips/:id/requests", tripHandler.RequestToJoin)
		api.GET("/trips/:id/requests", tripHandler.ListPending)
		api.POST("/trips/:id/requests/:requestId/review", tripHandler.Review)

		// Trip chat
		api.GET("/trips/:id/messages", chatHandler.History)
		api.POST("/trips/:id/messages", chatHandler.Send)
		api.GET("/trips/:id/transcript", chatHandler.Transcript)

		// Presence
		api.POST("/presence/heartbeat", presenceHandler.Heartbeat)
		api.POST("/presence/offline", presenceHandler.Offline)
		api.GET("/presence", presenceHandler.Lookup)

		// Hotels and discovery
		api.GET("/hotels", hotelHandler.List)
		api.POST("/discover", discoveryHandler.Discover)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", wsHandler.Serve)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      middleware.CORS(cfg.Server.CORSAllowedOrigins, router),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Without Redis there is no shared queue for cmd/worker, so archive in-process.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if !cfg.Redis.Enabled() {
		var uploader worker.TranscriptUploader
		if s3Client != nil {
			uploader = s3Client
		}
		archiver := worker.NewArchiver(st, jobs, uploader, logger)
		go archiver.Run(workerCtx)
		go archiver.RunSweeper(workerCtx, cfg.Archive.SweepInterval)
		logger.Info("in-process archive worker started")
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
