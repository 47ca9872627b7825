// Package pubsub fans job status transitions out to live listeners over
// per-job Redis channels. Nothing is persisted: a subscriber that connects
// after the terminal event sees nothing, which is why callers consult the
// cache and durable tiers first.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	api "github.com/scribehub/transcriber/api/v1alpha1"
)

func channel(jobID string) string {
	return fmt.Sprintf("transcription:status:%s", jobID)
}

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, event api.StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "encoding status event")
	}
	if err := p.client.Publish(ctx, channel(event.JobID), data).Err(); err != nil {
		return errors.Wrap(err, "publishing status event")
	}
	return nil
}

func (p *Publisher) PublishProgress(ctx context.Context, jobID string, progress int, message string) error {
	return p.Publish(ctx, api.StatusEvent{
		JobID:    jobID,
		Status:   "processing",
		Progress: progress,
		Message:  message,
	})
}

func (p *Publisher) PublishCompleted(ctx context.Context, jobID string, result api.ResultPayload) error {
	return p.Publish(ctx, api.StatusEvent{
		JobID:    jobID,
		Status:   "completed",
		Progress: 100,
		Result:   &result,
	})
}

func (p *Publisher) PublishFailed(ctx context.Context, jobID string, errMessage string) error {
	return p.Publish(ctx, api.StatusEvent{
		JobID:  jobID,
		Status: "failed",
		Error:  errMessage,
	})
}
