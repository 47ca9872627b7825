package events

import (
	"context"

	"github.com/IBM/sarama"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/pkg/errors"
)

// KafkaWriter publishes cloudevents to kafka using a synchronous producer.
// Event type is carried as a header so consumers can dispatch without
// decoding the envelope.
type KafkaWriter struct {
	producer sarama.SyncProducer
}

func NewKafkaWriter(brokers []string, cfg *sarama.Config) (*KafkaWriter, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
		cfg.Producer.Return.Successes = true
		cfg.Producer.RequiredAcks = sarama.WaitForAll
	}

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kafka producer")
	}

	return &KafkaWriter{producer: producer}, nil
}

func (w *KafkaWriter) Write(_ context.Context, topic string, e cloudevents.Event) error {
	data, err := e.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(e.ID()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("ce_type"), Value: []byte(e.Type())},
			{Key: []byte("ce_source"), Value: []byte(e.Source())},
		},
	}

	if _, _, err := w.producer.SendMessage(msg); err != nil {
		return errors.Wrap(err, "failed to send message")
	}
	return nil
}

func (w *KafkaWriter) Close(_ context.Context) error {
	return w.producer.Close()
}
