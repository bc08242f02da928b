// Package pipeline runs the attestation intake loop and the batched
// notification publisher.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-parametric-settlement/internal/attestation"
	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
)

// BatchExtractor reads up to batchSize inbound messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.InboundMessage, error)
}

// Attester applies one operator attestation.
type Attester interface {
	Attest(ctx context.Context, id uint64, operator string, sig []byte) (domain.AttestationResult, error)
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Pipeline consumes signed attestations and applies them to the registry.
// Messages that can never succeed (undecodable, or rejected by a domain
// rule) are committed and skipped. Anything else is retried with backoff
// and the offset is left uncommitted.
type Pipeline struct {
	extractor BatchExtractor
	attester  Attester
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, a Attester, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor: e,
		attester:  a,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil if the pipeline has processed at least one message,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Run executes the batch intake loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("attestation intake started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("attestation intake stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one extract-apply cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := time.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return backoffOrStop(ctx, backoff)
	}

	if len(batch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))
	*backoff = initialBackoff

	for _, msg := range batch {
		if !p.apply(ctx, msg, backoff) {
			return false
		}
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	return true
}

// apply decodes and applies one message, retrying transient failures until
// they succeed or ctx ends. Returns false if the pipeline should stop.
func (p *Pipeline) apply(ctx context.Context, msg domain.InboundMessage, backoff *time.Duration) bool {
	sub, sig, err := attestation.DecodeSubmission(msg.Value)
	if err != nil {
		p.logger.Warn("undecodable attestation, skipping message",
			"error", err, "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
		p.metrics.IntakeRejected.Inc()
		p.commitOffset(ctx, msg)
		return true
	}

	for {
		res, err := p.attester.Attest(ctx, sub.EventID, sub.Operator, sig)
		switch {
		case err == nil:
			p.logger.Debug("attestation applied",
				"event_id", res.EventID, "operator", res.Operator, "attestations", res.Attestations)
			p.commitOffset(ctx, msg)
			return true
		case domain.ErrorCode(err) != "":
			p.logger.Warn("attestation rejected, skipping message",
				"error", err, "code", domain.ErrorCode(err), "event_id", sub.EventID, "operator", sub.Operator)
			p.metrics.IntakeRejected.Inc()
			p.commitOffset(ctx, msg)
			return true
		}

		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("apply attestation failed, retrying",
			"error", err, "event_id", sub.EventID, "operator", sub.Operator, "backoff", *backoff)
		if !backoffOrStop(ctx, backoff) {
			return false
		}
	}
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, msg domain.InboundMessage) {
	if msg.Commit == nil {
		return
	}
	if err := msg.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
	}
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the caller should stop.
func backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
