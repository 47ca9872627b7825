package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/scribehub/transcriber/internal/config"
	"github.com/scribehub/transcriber/internal/storage"
)

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

	// River needs headroom for LISTEN/NOTIFY on top of job processing
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

func newRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Service.Redis.Address,
		Password: cfg.Service.Redis.Password,
		DB:       cfg.Service.Redis.DB,
	})
}

func newObjectStore(ctx context.Context, cfg *config.Config) (*storage.MinioStore, error) {
	objects, err := storage.NewMinioStore(
		storage.WithEndpoint(cfg.Service.Minio.Endpoint),
		storage.WithBucket(cfg.Service.Minio.Bucket),
		storage.WithAccessKey(cfg.Service.Minio.AccessKey),
		storage.WithSecretKey(cfg.Service.Minio.SecretKey),
		storage.WithSSL(cfg.Service.Minio.UseSSL),
	)
	if err != nil {
		return nil, err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return objects, nil
}
