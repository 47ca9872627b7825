package worker

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

type Client struct {
	*river.Client[pgx.Tx]
	maxAttempts int
}

// NewClient builds a working client: it both inserts and processes jobs.
func NewClient(ctx context.Context, pool *pgxpool.Pool, processor *Processor, maxWorkers int, jobTimeout time.Duration, maxRetries int) (*Client, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	if maxRetries <= 0 {
		maxRetries = MaxJobRetries
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewTranscribeWorker(processor, jobTimeout))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			DefaultQueue: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, err
	}

	return &Client{Client: riverClient, maxAttempts: maxRetries}, nil
}

// NewInsertOnlyClient builds a client for the API side: it enqueues jobs but
// never runs them.
func NewInsertOnlyClient(ctx context.Context, pool *pgxpool.Pool, maxRetries int) (*Client, error) {
	if maxRetries <= 0 {
		maxRetries = MaxJobRetries
	}

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		return nil, err
	}

	return &Client{Client: riverClient, maxAttempts: maxRetries}, nil
}

func (c *Client) InsertJob(ctx context.Context, args TranscribeArgs) (int64, error) {
	result, err := c.Insert(ctx, args, &river.InsertOpts{
		Queue:       DefaultQueue,
		MaxAttempts: c.maxAttempts,
	})
	if err != nil {
		return 0, err
	}
	return result.Job.ID, nil
}
