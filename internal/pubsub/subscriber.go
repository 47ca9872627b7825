package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	api "github.com/scribehub/transcriber/api/v1alpha1"
)

type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe streams status events for one job onto the returned channel.
// The subscription ends, and the channel closes, after a terminal event or
// when ctx is cancelled. This bounds the subscription lifetime without any
// external cancellation signal.
func (s *Subscriber) Subscribe(ctx context.Context, jobID string) (<-chan api.StatusEvent, error) {
	pubsub := s.client.Subscribe(ctx, channel(jobID))

	// force the subscription onto the wire before returning so callers do not
	// race a fast-completing job
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	events := make(chan api.StatusEvent)
	go func() {
		defer close(events)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				var event api.StatusEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					zap.S().Named("pubsub").Warnw("dropping malformed status event", "job_id", jobID, "error", err)
					continue
				}

				select {
				case events <- event:
				case <-ctx.Done():
					return
				}

				if event.Terminal() {
					return
				}
			}
		}
	}()

	return events, nil
}
