// Package main runs the background worker that closes finished trips and archives their chat.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yatri-app/backend/config"
	"github.com/yatri-app/backend/internal/store/postgres"
	"github.com/yatri-app/backend/internal/worker"
	"github.com/yatri-app/backend/pkg/database"
	"github.com/yatri-app/backend/pkg/queue"
	"github.com/yatri-app/backend/pkg/redis"
	"github.com/yatri-app/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Store.Driver != "postgres" {
		logger.Fatal("worker requires STORE_DRIVER=postgres; the server archives in-process for the memory store")
	}
	if !cfg.Redis.Enabled() {
		logger.Fatal("worker requires REDIS_ADDR for the job queue")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:         4,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		StatementTimeout: cfg.Store.OpTimeout,
		ApplicationName:  "yatri-worker",
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var uploader worker.TranscriptUploader
	if cfg.AWS.Enabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			TranscriptsBucket:    cfg.AWS.TranscriptsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
			Endpoint:             cfg.AWS.S3Endpoint,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		uploader = s3Client
	} else {
		logger.Warn("AWS_S3_TRANSCRIPTS_BUCKET not set; trips will close without a transcript")
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	archiver := worker.NewArchiver(postgres.New(pool), jobQueue, uploader, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go archiver.Run(workerCtx)
	go archiver.RunSweeper(workerCtx, cfg.Archive.SweepInterval)
	logger.Info("worker started", zap.Duration("sweep_interval", cfg.Archive.SweepInterval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
