package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scribehub/transcriber/internal/cache"
	"github.com/scribehub/transcriber/internal/config"
	"github.com/scribehub/transcriber/internal/consumer"
	"github.com/scribehub/transcriber/internal/pubsub"
	"github.com/scribehub/transcriber/internal/store"
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

	zap.S().Info("Starting result consumer")
	defer zap.S().Info("Result consumer stopped")

	if len(cfg.Service.Kafka.Brokers) == 0 || cfg.Service.Kafka.Brokers[0] == "" {
		zap.S().Fatal("no kafka brokers configured")
	}

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

	reconciler := consumer.NewReconciler(s, jobs, publisher)

	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = cfg.Service.Kafka.ClientID
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	kc, err := consumer.NewKafkaConsumer(
		cfg.Service.Kafka.Brokers,
		cfg.Service.Kafka.ConsumerGroup,
		cfg.Service.Kafka.ResultsTopic,
		reconciler,
		saramaCfg,
	)
	if err != nil {
		zap.S().Fatalw("creating kafka consumer", "error", err)
	}
	defer kc.Close()

	zap.S().Infow("consuming results",
		"topic", cfg.Service.Kafka.ResultsTopic,
		"group", cfg.Service.Kafka.ConsumerGroup,
	)

	if err := kc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zap.S().Fatalw("consumer terminated", "error", err)
	}
}
