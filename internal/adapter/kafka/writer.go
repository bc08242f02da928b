package kafka

import (
	"context"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-parametric-settlement/internal/config"
	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
)

// Writer produces notification messages to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
}

// NewWriter creates a Kafka producer for the configured notification topic.
func NewWriter(cfg *config.Config) *Writer {
	return NewTopicWriter(cfg.KafkaBrokers, cfg.KafkaNotificationTopic)
}

// NewTopicWriter creates a producer for an arbitrary topic.
func NewTopicWriter(brokers []string, topic string) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		// Callers already batch; don't hold messages for the default second.
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w}
}

// LoadBatch publishes the events in a single WriteMessages call. Messages
// with the same key land on the same partition.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msgs[i] = toMessage(events[i])
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// toMessage maps an OutputEvent to a Kafka message with sorted headers.
func toMessage(event domain.OutputEvent) kafkago.Message {
	msg := kafkago.Message{
		Key:   event.Key,
		Value: event.Value,
	}
	for _, k := range sortedKeys(event.Headers) {
		msg.Headers = append(msg.Headers, kafkago.Header{Key: k, Value: []byte(event.Headers[k])})
	}
	return msg
}
