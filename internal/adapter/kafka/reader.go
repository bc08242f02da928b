// Package kafka adapts segmentio/kafka-go to the intake and notification
// pipelines.
package kafka

import (
	"context"
	"sort"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-parametric-settlement/internal/config"
	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
)

// Reader consumes the attestation topic as part of a consumer group.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader        *kafkago.Reader
	flushInterval time.Duration
}

// NewReader creates a consumer group reader for the attestation topic.
func NewReader(cfg *config.Config) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaAttestationTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Reader{reader: r, flushInterval: cfg.BatchFlushInterval}
}

// ExtractBatch blocks for the first message, then collects more until
// batchSize is reached or the flush interval passes with nothing new.
// Offsets are not committed; each message carries its own Commit.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.InboundMessage, error) {
	first, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	batch := make([]domain.InboundMessage, 0, batchSize)
	batch = append(batch, r.toInbound(first))

	for len(batch) < batchSize {
		fetchCtx, cancel := context.WithTimeout(ctx, r.flushInterval)
		msg, err := r.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			// Quiet for a flush interval, shutting down, or a fetch error:
			// deliver what we have. The next call surfaces persistent errors.
			break
		}
		batch = append(batch, r.toInbound(msg))
	}
	return batch, nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

func (r *Reader) toInbound(msg kafkago.Message) domain.InboundMessage {
	in := mapMessage(msg)
	in.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return in
}

// mapMessage converts a Kafka message into an InboundMessage without a commit hook.
func mapMessage(msg kafkago.Message) domain.InboundMessage {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.InboundMessage{
		Key:       msg.Key,
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Headers:   headers,
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
