package events_test

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-parametric-settlement/internal/attestation"
	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/events"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
)

// --- helpers ---

type recorder struct {
	mu    sync.Mutex
	kinds []domain.NotificationKind
}

func (r *recorder) Notify(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, n.Kind)
	return nil
}

func (r *recorder) count(kind domain.NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, k := range r.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

type operators struct {
	reg  *attestation.Registry
	keys map[string]ed25519.PrivateKey
}

func newOperators(t *testing.T, n int) *operators {
	t.Helper()
	ops := &operators{reg: attestation.NewRegistry(), keys: map[string]ed25519.PrivateKey{}}
	for i := 1; i <= n; i++ {
		pub, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		id := fmt.Sprintf("op-%d", i)
		require.NoError(t, ops.reg.Register(id, pub))
		ops.keys[id] = priv
	}
	return ops
}

func (o *operators) sign(op string, ev domain.DisasterEvent) []byte {
	return attestation.Sign(o.keys[op], attestation.Digest(ev))
}

var epoch = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func newRegistry(v attestation.Verifier, n domain.Notifier, opts events.Options) *events.Registry {
	return events.NewRegistry(v, n, clockwork.NewFakeClockAt(epoch), slog.Default(), observability.NewMetricsForTesting(), opts)
}

type failingVerifier struct{}

func (failingVerifier) IsValidSignature(context.Context, string, [32]byte, []byte) (bool, error) {
	return false, errors.New("hsm unavailable")
}

// --- tests ---

func TestReport_AssignsMonotonicIDs(t *testing.T) {
	rec := &recorder{}
	r := newRegistry(attestation.AlwaysValid{}, rec, events.Options{})
	ctx := context.Background()

	id1, err := r.Report(ctx, "reporter", "San Francisco", domain.Earthquake, 70)
	require.NoError(t, err)
	id2, err := r.Report(ctx, "reporter", "Miami", domain.Hurricane, 40)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)

	ev, err := r.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "reported", ev.State())
	assert.Equal(t, uint64(epoch.Unix()), ev.ReportedAt)
	assert.Equal(t, uint64(0), ev.Attestations)
	assert.Equal(t, "reporter", ev.Reporter)
	assert.Equal(t, 2, rec.count(domain.EventReported))
}

func TestReport_InvalidType(t *testing.T) {
	r := newRegistry(attestation.AlwaysValid{}, nil, events.Options{})
	_, err := r.Report(context.Background(), "x", "SF", domain.DisasterType(9), 1)
	require.ErrorIs(t, err, domain.ErrUnknownDisasterType)
}

func TestAttest_QuorumEdge(t *testing.T) {
	ops := newOperators(t, 3)
	rec := &recorder{}
	r := newRegistry(ops.reg, rec, events.Options{})
	ctx := context.Background()

	id, err := r.Report(ctx, "reporter", "San Francisco", domain.Earthquake, 70)
	require.NoError(t, err)
	ev, _ := r.Get(ctx, id)

	for i, op := range []string{"op-1", "op-2"} {
		res, err := r.Attest(ctx, id, op, ops.sign(op, ev))
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), res.Attestations)
		assert.False(t, res.Validated)
		assert.False(t, res.Transitioned)
	}

	res, err := r.Attest(ctx, id, "op-3", ops.sign("op-3", ev))
	require.NoError(t, err)
	assert.True(t, res.Validated)
	assert.True(t, res.Transitioned)

	got, _ := r.Get(ctx, id)
	assert.True(t, got.Validated)
	require.NotNil(t, got.ValidatedAt)
	assert.Equal(t, uint64(3), got.Attestations)
	assert.Equal(t, 3, rec.count(domain.EventAttested))
	assert.Equal(t, 1, rec.count(domain.EventValidated))

	attestors, err := r.Attestors(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"op-1", "op-2", "op-3"}, attestors)
}

func TestAttest_LateAcceptedByDefault(t *testing.T) {
	ops := newOperators(t, 4)
	rec := &recorder{}
	r := newRegistry(ops.reg, rec, events.Options{})
	ctx := context.Background()

	id, _ := r.Report(ctx, "reporter", "San Francisco", domain.Earthquake, 70)
	ev, _ := r.Get(ctx, id)
	for _, op := range []string{"op-1", "op-2", "op-3"} {
		_, err := r.Attest(ctx, id, op, ops.sign(op, ev))
		require.NoError(t, err)
	}

	res, err := r.Attest(ctx, id, "op-4", ops.sign("op-4", ev))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), res.Attestations)
	assert.True(t, res.Validated)
	assert.False(t, res.Transitioned)
	assert.Equal(t, 1, rec.count(domain.EventValidated), "validated is emitted only on the edge")
}

func TestAttest_LateRejected(t *testing.T) {
	r := newRegistry(attestation.AlwaysValid{}, nil, events.Options{Threshold: 1, RejectLate: true})
	ctx := context.Background()

	id, _ := r.Report(ctx, "reporter", "SF", domain.Flood, 20)
	_, err := r.Attest(ctx, id, "op-1", nil)
	require.NoError(t, err)

	_, err = r.Attest(ctx, id, "op-2", nil)
	require.ErrorIs(t, err, domain.ErrAlreadyValidated)

	// AlreadyValidated takes precedence over duplicate.
	_, err = r.Attest(ctx, id, "op-1", nil)
	require.ErrorIs(t, err, domain.ErrAlreadyValidated)
}

func TestAttest_Errors(t *testing.T) {
	ops := newOperators(t, 2)
	r := newRegistry(ops.reg, nil, events.Options{})
	ctx := context.Background()

	id, _ := r.Report(ctx, "reporter", "San Francisco", domain.Earthquake, 70)
	ev, _ := r.Get(ctx, id)
	_, err := r.Attest(ctx, id, "op-1", ops.sign("op-1", ev))
	require.NoError(t, err)

	t.Run("unknown event", func(t *testing.T) {
		_, err := r.Attest(ctx, 99, "op-1", nil)
		require.ErrorIs(t, err, domain.ErrUnknownEvent)
	})

	t.Run("duplicate is checked before the signature", func(t *testing.T) {
		_, err := r.Attest(ctx, id, "op-1", []byte("garbage"))
		require.ErrorIs(t, err, domain.ErrDuplicateAttestation)
	})

	t.Run("signature over different fields", func(t *testing.T) {
		forged := ev
		forged.Severity = 99
		_, err := r.Attest(ctx, id, "op-2", ops.sign("op-2", forged))
		require.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("unregistered operator", func(t *testing.T) {
		_, err := r.Attest(ctx, id, "op-9", ops.sign("op-1", ev))
		require.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	got, _ := r.Get(ctx, id)
	assert.Equal(t, uint64(1), got.Attestations, "failed attestations leave the count unchanged")

	attested, err := r.HasAttested(ctx, id, "op-2")
	require.NoError(t, err)
	assert.False(t, attested, "rejected operator may retry")
}

func TestAttest_VerifierErrorIsNotInvalidSignature(t *testing.T) {
	r := newRegistry(failingVerifier{}, nil, events.Options{})
	ctx := context.Background()

	id, _ := r.Report(ctx, "reporter", "SF", domain.Flood, 20)
	_, err := r.Attest(ctx, id, "op-1", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidSignature)
	assert.Contains(t, err.Error(), "hsm unavailable")
}

func TestAttest_ConcurrentSingleTransition(t *testing.T) {
	rec := &recorder{}
	r := newRegistry(attestation.AlwaysValid{}, rec, events.Options{})
	ctx := context.Background()
	id, _ := r.Report(ctx, "reporter", "SF", domain.Hurricane, 80)

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	transitions := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(op string) {
			defer wg.Done()
			res, err := r.Attest(ctx, id, op, nil)
			if assert.NoError(t, err) && res.Transitioned {
				mu.Lock()
				transitions++
				mu.Unlock()
			}
		}(fmt.Sprintf("op-%d", i))
	}
	wg.Wait()

	got, _ := r.Get(ctx, id)
	assert.Equal(t, uint64(n), got.Attestations)
	assert.Equal(t, 1, transitions)
	assert.Equal(t, 1, rec.count(domain.EventValidated))
}

func TestRegistry_CustomThreshold(t *testing.T) {
	r := newRegistry(attestation.AlwaysValid{}, nil, events.Options{Threshold: 5})
	assert.Equal(t, uint64(5), r.Threshold())

	r = newRegistry(attestation.AlwaysValid{}, nil, events.Options{})
	assert.Equal(t, uint64(events.DefaultThreshold), r.Threshold())
}

func TestRegistry_UnknownReads(t *testing.T) {
	r := newRegistry(attestation.AlwaysValid{}, nil, events.Options{})
	ctx := context.Background()

	_, err := r.Get(ctx, 1)
	require.ErrorIs(t, err, domain.ErrUnknownEvent)
	_, err = r.HasAttested(ctx, 1, "op")
	require.ErrorIs(t, err, domain.ErrUnknownEvent)
	_, err = r.Attestors(ctx, 1)
	require.ErrorIs(t, err, domain.ErrUnknownEvent)
}

func TestRegistry_NotifierFailureDoesNotRollBack(t *testing.T) {
	failing := domain.NotifierFunc(func(context.Context, domain.Notification) error {
		return errors.New("broker down")
	})
	r := newRegistry(attestation.AlwaysValid{}, failing, events.Options{Threshold: 1})
	ctx := context.Background()

	id, err := r.Report(ctx, "reporter", "SF", domain.Flood, 20)
	require.NoError(t, err)
	res, err := r.Attest(ctx, id, "op-1", nil)
	require.NoError(t, err)
	assert.True(t, res.Validated)
}
