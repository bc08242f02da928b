package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
)

// BatchLoader writes multiple output events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// ErrPublisherFull is returned by Notify when the buffer cannot take more.
var ErrPublisherFull = errors.New("notification buffer full")

// ErrPublisherClosed is returned by Notify after Run has returned.
var ErrPublisherClosed = errors.New("notification publisher closed")

// Publisher buffers notifications and loads them in batches of up to
// batchSize, or whatever has accumulated after flushInterval. It implements
// domain.Notifier without blocking the caller on the sink.
type Publisher struct {
	loader        BatchLoader
	logger        *slog.Logger
	metrics       *observability.Metrics
	batchSize     int
	flushInterval time.Duration

	queue  chan domain.Notification
	mu     sync.RWMutex
	closed bool
}

// NewPublisher creates a Publisher buffering up to 4×batchSize notifications.
func NewPublisher(l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int, flushInterval time.Duration) *Publisher {
	if batchSize <= 0 {
		batchSize = 1
	}
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	return &Publisher{
		loader:        l,
		logger:        logger,
		metrics:       metrics,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		queue:         make(chan domain.Notification, 4*batchSize),
	}
}

func (p *Publisher) Notify(_ context.Context, n domain.Notification) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- n:
		return nil
	default:
		return ErrPublisherFull
	}
}

// Run flushes batches until ctx is cancelled, then drains what is buffered
// using a fresh context bounded by drainTimeout.
func (p *Publisher) Run(ctx context.Context, drainTimeout time.Duration) error {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	pending := make([]domain.Notification, 0, p.batchSize)
	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.closed = true
			p.mu.Unlock()
			pending = p.drain(pending)
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			p.flush(drainCtx, pending)
			cancel()
			return nil
		case n := <-p.queue:
			pending = append(pending, n)
			if len(pending) >= p.batchSize {
				p.flush(ctx, pending)
				pending = pending[:0]
			}
		case <-ticker.C:
			if len(pending) > 0 {
				p.flush(ctx, pending)
				pending = pending[:0]
			}
		}
	}
}

func (p *Publisher) flush(ctx context.Context, batch []domain.Notification) {
	if len(batch) == 0 {
		return
	}
	out := make([]domain.OutputEvent, 0, len(batch))
	for _, n := range batch {
		ev, err := domain.SerializeNotification(n)
		if err != nil {
			p.logger.Warn("serialize notification failed, dropping", "error", err, "id", n.ID)
			p.metrics.NotificationFailures.Inc()
			continue
		}
		out = append(out, ev)
	}
	if err := p.loader.LoadBatch(ctx, out); err != nil {
		p.logger.Error("publish notifications failed", "error", err, "batch_size", len(out))
		p.metrics.NotificationFailures.Add(float64(len(out)))
		return
	}
	for _, ev := range out {
		p.metrics.NotificationsPublished.WithLabelValues(ev.Headers["kind"]).Inc()
	}
}

func (p *Publisher) drain(pending []domain.Notification) []domain.Notification {
	for {
		select {
		case n := <-p.queue:
			pending = append(pending, n)
		default:
			return pending
		}
	}
}
