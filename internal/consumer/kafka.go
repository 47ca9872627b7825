package consumer

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	api "github.com/scribehub/transcriber/api/v1alpha1"
)

// KafkaConsumer reads result messages off the result topic and feeds them to
// the reconciler. Malformed payloads are logged and skipped so one bad
// message cannot wedge the partition.
type KafkaConsumer struct {
	group      sarama.ConsumerGroup
	topic      string
	reconciler *Reconciler
	logger     *zap.SugaredLogger
}

func NewKafkaConsumer(brokers []string, group string, topic string, reconciler *Reconciler, cfg *sarama.Config) (*KafkaConsumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	}

	cg, err := sarama.NewConsumerGroup(brokers, group, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create consumer group")
	}

	return &KafkaConsumer{
		group:      cg,
		topic:      topic,
		reconciler: reconciler,
		logger:     zap.S().Named("kafka_consumer"),
	}, nil
}

// Run blocks until ctx is cancelled, rejoining the group after rebalances.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	handler := &groupHandler{reconciler: c.reconciler, logger: c.logger}

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Errorw("consumer group session ended", "error", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	reconciler *Reconciler
	logger     *zap.SugaredLogger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var result api.TranscriptionResultMessage
		if err := json.Unmarshal(msg.Value, &result); err != nil {
			h.logger.Warnw("skipping malformed result message",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			session.MarkMessage(msg, "")
			continue
		}

		if err := h.reconciler.Apply(session.Context(), result); err != nil {
			// leave the offset unmarked, the message is retried after rejoin
			h.logger.Errorw("failed to apply result message", "job_id", result.JobID, "error", err)
			return err
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
