package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scribehub/transcriber/internal/cache"
	"github.com/scribehub/transcriber/internal/config"
	"github.com/scribehub/transcriber/internal/pubsub"
	"github.com/scribehub/transcriber/internal/service"
	"github.com/scribehub/transcriber/internal/store"
	"github.com/scribehub/transcriber/internal/worker"
	"github.com/scribehub/transcriber/pkg/log"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the transcription api",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		zap.S().Info("Starting transcription API")
		defer zap.S().Info("Transcription API stopped")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := s.InitialMigration(); err != nil {
			zap.S().Fatalw("running initial migration", "error", err)
		}

		pool, err := newPgxPool(ctx, cfg)
		if err != nil {
			zap.S().Fatalw("creating pgx pool", "error", err)
		}
		defer pool.Close()

		queue, err := worker.NewInsertOnlyClient(ctx, pool, cfg.Service.Worker.MaxRetries)
		if err != nil {
			zap.S().Fatalw("creating queue client", "error", err)
		}

		redisClient := newRedisClient(cfg)
		defer redisClient.Close()

		jobs := cache.NewJobManager(redisClient, cfg.Service.Redis.JobTTL)
		subscriber := pubsub.NewSubscriber(redisClient)

		objects, err := newObjectStore(ctx, cfg)
		if err != nil {
			zap.S().Fatalw("initializing object store", "error", err)
		}

		transcriptions := service.NewTranscriptionService(
			s,
			jobs,
			subscriber,
			objects,
			queue,
			cfg.Service.Worker.MaxUploadBytes,
			cfg.Service.Engines.DefaultLanguage,
			cfg.Service.Worker.MaxRetries,
		)
		contexts := service.NewContextService(s)

		srv := &http.Server{
			Addr:    cfg.Service.Address,
			Handler: newRouter(transcriptions, contexts),
		}

		go func() {
			defer cancel()
			zap.S().Infow("listening", "address", cfg.Service.Address)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zap.S().Errorw("server stopped", "error", err)
			}
		}()

		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)

		return nil
	},
}
