// Package cache is the ephemeral status tier: a TTL'd Redis accelerator in
// front of the durable store. Every write carries the configured TTL and a
// miss is always reconstructable from the job row.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	api "github.com/scribehub/transcriber/api/v1alpha1"
)

var ErrNotFound = errors.New("job not found in cache")

type JobManager struct {
	client     *redis.Client
	defaultTTL time.Duration
}

func NewJobManager(client *redis.Client, defaultTTL time.Duration) *JobManager {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &JobManager{client: client, defaultTTL: defaultTTL}
}

func statusKey(jobID string) string {
	return fmt.Sprintf("job:%s:status", jobID)
}

func resultKey(jobID string) string {
	return fmt.Sprintf("job:%s:result", jobID)
}

// CreateJob seeds the entry in the queued state.
func (m *JobManager) CreateJob(ctx context.Context, jobID string) error {
	entry := api.JobStatusEntry{
		JobID:    jobID,
		Status:   "queued",
		Progress: 0,
	}
	return m.set(ctx, statusKey(jobID), entry)
}

// UpdateStatus overwrites the entry and resets its TTL. Last writer wins:
// the cache is derived state and needs no locking.
func (m *JobManager) UpdateStatus(ctx context.Context, entry api.JobStatusEntry) error {
	return m.set(ctx, statusKey(entry.JobID), entry)
}

func (m *JobManager) GetStatus(ctx context.Context, jobID string) (*api.JobStatusEntry, error) {
	data, err := m.client.Get(ctx, statusKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "reading job status")
	}

	var entry api.JobStatusEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, errors.Wrap(err, "decoding job status")
	}
	return &entry, nil
}

func (m *JobManager) SetResult(ctx context.Context, jobID string, result api.ResultPayload) error {
	return m.set(ctx, resultKey(jobID), result)
}

func (m *JobManager) GetResult(ctx context.Context, jobID string) (*api.ResultPayload, error) {
	data, err := m.client.Get(ctx, resultKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "reading job result")
	}

	var result api.ResultPayload
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "decoding job result")
	}
	return &result, nil
}

func (m *JobManager) DeleteJob(ctx context.Context, jobID string) error {
	if err := m.client.Del(ctx, statusKey(jobID), resultKey(jobID)).Err(); err != nil {
		return errors.Wrap(err, "deleting job entries")
	}
	return nil
}

func (m *JobManager) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encoding cache entry")
	}
	if err := m.client.Set(ctx, key, data, m.defaultTTL).Err(); err != nil {
		return errors.Wrap(err, "writing cache entry")
	}
	return nil
}
