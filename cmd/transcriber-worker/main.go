package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scribehub/transcriber/internal/cache"
	"github.com/scribehub/transcriber/internal/config"
	"github.com/scribehub/transcriber/internal/engine"
	"github.com/scribehub/transcriber/internal/events"
	"github.com/scribehub/transcriber/internal/pubsub"
	"github.com/scribehub/transcriber/internal/storage"
	"github.com/scribehub/transcriber/internal/store"
	"github.com/scribehub/transcriber/internal/worker"
	"github.com/scribehub/transcriber/pkg/log"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		zap.S().Fatalw("reading configuration", "error", err)
	}

	logLvl, err := zap.ParseAtomicLevel(cfg.Service.LogLevel)
	if err != nil {
		logLvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger := log.InitLog(logLvl)
	defer func() { _ = logger.Sync() }()

	undo := zap.ReplaceGlobals(logger)
	defer undo()

	zap.S().Info("Starting transcription worker")
	defer zap.S().Info("Transcription worker stopped")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	zap.S().Info("Initializing data store")
	db, err := store.InitDB(cfg)
	if err != nil {
		zap.S().Fatalw("initializing data store", "error", err)
	}

	s := store.NewStore(db)
	defer s.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Service.Redis.Address,
		Password: cfg.Service.Redis.Password,
		DB:       cfg.Service.Redis.DB,
	})
	defer redisClient.Close()

	jobs := cache.NewJobManager(redisClient, cfg.Service.Redis.JobTTL)
	publisher := pubsub.NewPublisher(redisClient)

	objects, err := storage.NewMinioStore(
		storage.WithEndpoint(cfg.Service.Minio.Endpoint),
		storage.WithBucket(cfg.Service.Minio.Bucket),
		storage.WithAccessKey(cfg.Service.Minio.AccessKey),
		storage.WithSecretKey(cfg.Service.Minio.SecretKey),
		storage.WithSSL(cfg.Service.Minio.UseSSL),
	)
	if err != nil {
		zap.S().Fatalw("initializing object store", "error", err)
	}

	transcriber := engine.NewTranscriber(
		engine.NewSpeechEngine(cfg.Service.Engines.SpeechURL, cfg.Service.Engines.SpeechTimeout, s.Context()),
		engine.NewWhisperXEngine(cfg.Service.Engines.WhisperXURL, cfg.Service.Engines.WhisperXTimeout, strings.Split(cfg.Service.Engines.WhisperXModels, ",")),
	)
	normalizer := engine.NewNormalizer(cfg.Service.Engines.FFmpegPath)

	producer := newEventProducer(cfg)
	defer func() { _ = producer.Close() }()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "worker"
	}
	workerID := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	processor := worker.NewProcessor(
		s, jobs, publisher, objects, transcriber, normalizer, workerID,
		worker.WithEventProducer(producer),
		worker.WithDownloadRetry(cfg.Service.Worker.DownloadRetries, cfg.Service.Worker.DownloadRetryDelay),
	)

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		zap.S().Fatalw("creating pgx pool", "error", err)
	}
	defer pool.Close()

	client, err := worker.NewClient(ctx, pool, processor, cfg.Service.Worker.MaxWorkers,
		cfg.Service.Worker.JobTimeout, cfg.Service.Worker.MaxRetries)
	if err != nil {
		zap.S().Fatalw("creating queue client", "error", err)
	}

	if err := client.Start(ctx); err != nil {
		zap.S().Fatalw("starting queue client", "error", err)
	}

	sweeper := worker.NewSweeper(s, cfg.Service.Worker.RetentionAge)
	go sweeper.Run(ctx)

	zap.S().Infow("worker running", "worker_id", workerID, "max_workers", cfg.Service.Worker.MaxWorkers)
	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := client.Stop(stopCtx); err != nil {
		zap.S().Errorw("queue client stopped with error", "error", err)
	}
}

func newEventProducer(cfg *config.Config) *events.EventProducer {
	var writer events.Writer = &events.StdoutWriter{}
	if len(cfg.Service.Kafka.Brokers) > 0 && cfg.Service.Kafka.Brokers[0] != "" {
		kw, err := events.NewKafkaWriter(cfg.Service.Kafka.Brokers, nil)
		if err != nil {
			zap.S().Errorw("failed to create kafka writer, falling back to stdout", "error", err)
		} else {
			writer = kw
		}
	}
	return events.NewEventProducer(writer, events.WithOutputTopic(cfg.Service.Kafka.StatusTopic))
}

func newPgxPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s port=%d dbname=%s",
		cfg.Database.Hostname,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Port,
		cfg.Database.Name,
	)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 5
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	return pool, nil
}
