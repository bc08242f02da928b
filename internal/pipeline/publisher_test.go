package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
	"github.com/couchcryptid/storm-parametric-settlement/internal/pipeline"
)

type mockLoader struct {
	mu      sync.Mutex
	batches [][]domain.OutputEvent
	err     error
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, append([]domain.OutputEvent(nil), events...))
	return nil
}

func (m *mockLoader) Loaded() []domain.OutputEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OutputEvent
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func (m *mockLoader) BatchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func runPublisher(t *testing.T, p *pipeline.Publisher) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx, time.Second)
	}()
	return func() {
		stop()
		<-done
	}
}

func TestPublisher_FlushesFullBatch(t *testing.T) {
	loader := &mockLoader{}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.NewPublisher(loader, slog.Default(), metrics, 2, time.Hour)
	stop := runPublisher(t, p)
	defer stop()

	now := time.Now()
	require.NoError(t, p.Notify(context.Background(), domain.NewNotification(domain.PolicyCreated, now)))
	require.NoError(t, p.Notify(context.Background(), domain.NewNotification(domain.EventReported, now)))

	require.Eventually(t, func() bool { return len(loader.Loaded()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, loader.BatchCount())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.NotificationsPublished.WithLabelValues("policy.created")), 0)
}

func TestPublisher_FlushesOnInterval(t *testing.T) {
	loader := &mockLoader{}
	p := pipeline.NewPublisher(loader, slog.Default(), observability.NewMetricsForTesting(), 100, 20*time.Millisecond)
	stop := runPublisher(t, p)
	defer stop()

	n := domain.NewNotification(domain.ClaimPaid, time.Now())
	n.PolicyID = 9
	require.NoError(t, p.Notify(context.Background(), n))

	require.Eventually(t, func() bool { return len(loader.Loaded()) == 1 }, time.Second, 5*time.Millisecond)
	out := loader.Loaded()[0]
	assert.Equal(t, []byte("policy-9"), out.Key)
	assert.Equal(t, "claim.paid", out.Headers["kind"])

	var decoded domain.Notification
	require.NoError(t, json.Unmarshal(out.Value, &decoded))
	assert.Equal(t, n.ID, decoded.ID)
}

func TestPublisher_DrainsOnShutdown(t *testing.T) {
	loader := &mockLoader{}
	p := pipeline.NewPublisher(loader, slog.Default(), observability.NewMetricsForTesting(), 100, time.Hour)
	stop := runPublisher(t, p)

	for range 3 {
		require.NoError(t, p.Notify(context.Background(), domain.NewNotification(domain.EventAttested, time.Now())))
	}
	stop()

	assert.Len(t, loader.Loaded(), 3)
	assert.ErrorIs(t, p.Notify(context.Background(), domain.NewNotification(domain.EventAttested, time.Now())), pipeline.ErrPublisherClosed)
}

func TestPublisher_BufferFull(t *testing.T) {
	p := pipeline.NewPublisher(&mockLoader{}, slog.Default(), observability.NewMetricsForTesting(), 1, time.Hour)

	// Not running: the buffer holds 4×batchSize.
	for range 4 {
		require.NoError(t, p.Notify(context.Background(), domain.NewNotification(domain.EventAttested, time.Now())))
	}
	assert.ErrorIs(t, p.Notify(context.Background(), domain.NewNotification(domain.EventAttested, time.Now())), pipeline.ErrPublisherFull)
}

func TestPublisher_LoadFailureCounted(t *testing.T) {
	loader := &mockLoader{err: errors.New("broker down")}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.NewPublisher(loader, slog.Default(), metrics, 1, time.Hour)
	stop := runPublisher(t, p)
	defer stop()

	require.NoError(t, p.Notify(context.Background(), domain.NewNotification(domain.PolicyCancelled, time.Now())))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.NotificationFailures) == 1
	}, time.Second, 5*time.Millisecond)
}
