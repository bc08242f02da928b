// Package events is the disaster event registry: reported events gather
// signed operator attestations until a quorum validates them.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-parametric-settlement/internal/attestation"
	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
)

// DefaultThreshold is the number of distinct attestations that validates an event.
const DefaultThreshold = 3

// Options tunes quorum behaviour.
type Options struct {
	Threshold uint64
	// RejectLate fails attestations on validated events with
	// ErrAlreadyValidated. When false they are recorded and counted but
	// change nothing else.
	RejectLate bool
}

type record struct {
	mu        sync.Mutex
	event     domain.DisasterEvent
	attestors map[string]struct{}
	order     []string
}

// Registry stores disaster events and their attestations. Attestations on one
// event are serialized; different events proceed independently.
type Registry struct {
	verifier attestation.Verifier
	notifier domain.Notifier
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     Options

	mu     sync.RWMutex
	nextID uint64
	events map[uint64]*record
}

// NewRegistry creates an empty registry. A zero threshold falls back to
// DefaultThreshold.
func NewRegistry(v attestation.Verifier, n domain.Notifier, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Registry {
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}
	return &Registry{
		verifier: v,
		notifier: n,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
		events:   make(map[uint64]*record),
	}
}

// Threshold is the configured quorum size.
func (r *Registry) Threshold() uint64 { return r.opts.Threshold }

// Report records a new event in the Reported state and returns its id.
// Reporting is permissionless; validity comes only from quorum.
func (r *Registry) Report(ctx context.Context, reporter, location string, t domain.DisasterType, severity uint64) (uint64, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("report event: %w: %d", domain.ErrUnknownDisasterType, uint8(t))
	}
	now := r.clock.Now()

	r.mu.Lock()
	r.nextID++
	ev := domain.DisasterEvent{
		ID:           r.nextID,
		Location:     location,
		DisasterType: t,
		Severity:     severity,
		ReportedAt:   uint64(now.Unix()),
		Reporter:     reporter,
	}
	r.events[ev.ID] = &record{event: ev, attestors: make(map[string]struct{})}
	r.mu.Unlock()

	r.metrics.EventsReported.WithLabelValues(t.String()).Inc()
	r.logger.Info("disaster event reported",
		"event_id", ev.ID, "location", location, "disaster_type", t.String(), "severity", severity)

	r.notify(ctx, domain.NewNotification(domain.EventReported, now).
		ForEvent(ev).WithActor(reporter).WithAttr("severity", strconv.FormatUint(severity, 10)))
	return ev.ID, nil
}

// Attest records operator's signed confirmation of event id. Checks run in
// order: unknown event, already validated (when late attestations are
// rejected), duplicate, signature. The signed digest is rebuilt from the
// stored event.
func (r *Registry) Attest(ctx context.Context, id uint64, operator string, sig []byte) (domain.AttestationResult, error) {
	rec, ok := r.lookup(id)
	if !ok {
		r.metrics.Attestations.WithLabelValues("unknown_event").Inc()
		return domain.AttestationResult{}, fmt.Errorf("attest event %d: %w", id, domain.ErrUnknownEvent)
	}

	rec.mu.Lock()
	if rec.event.Validated && r.opts.RejectLate {
		rec.mu.Unlock()
		r.metrics.Attestations.WithLabelValues("already_validated").Inc()
		return domain.AttestationResult{}, fmt.Errorf("attest event %d: %w", id, domain.ErrAlreadyValidated)
	}
	if _, dup := rec.attestors[operator]; dup {
		rec.mu.Unlock()
		r.metrics.Attestations.WithLabelValues("duplicate").Inc()
		return domain.AttestationResult{}, fmt.Errorf("attest event %d by %s: %w", id, operator, domain.ErrDuplicateAttestation)
	}

	valid, err := r.verifier.IsValidSignature(ctx, operator, attestation.Digest(rec.event), sig)
	if err != nil {
		rec.mu.Unlock()
		r.metrics.Attestations.WithLabelValues("verifier_error").Inc()
		return domain.AttestationResult{}, fmt.Errorf("attest event %d: verify signature: %w", id, err)
	}
	if !valid {
		rec.mu.Unlock()
		r.metrics.Attestations.WithLabelValues("invalid_signature").Inc()
		return domain.AttestationResult{}, fmt.Errorf("attest event %d by %s: %w", id, operator, domain.ErrInvalidSignature)
	}

	now := r.clock.Now()
	late := rec.event.Validated
	rec.attestors[operator] = struct{}{}
	rec.order = append(rec.order, operator)
	rec.event.Attestations++
	transitioned := !rec.event.Validated && rec.event.Attestations >= r.opts.Threshold
	if transitioned {
		rec.event.Validated = true
		at := now.UTC()
		rec.event.ValidatedAt = &at
	}
	ev := rec.event
	rec.mu.Unlock()

	outcome := "accepted"
	if late {
		outcome = "late"
	}
	r.metrics.Attestations.WithLabelValues(outcome).Inc()
	r.logger.Info("attestation recorded",
		"event_id", id, "operator", operator, "attestations", ev.Attestations, "late", late)

	r.notify(ctx, domain.NewNotification(domain.EventAttested, now).
		ForEvent(ev).
		WithActor(operator).
		WithAttr("attestations", strconv.FormatUint(ev.Attestations, 10)))

	if transitioned {
		r.metrics.EventsValidated.WithLabelValues(ev.DisasterType.String()).Inc()
		r.logger.Info("disaster event validated", "event_id", id, "attestations", ev.Attestations)
		r.notify(ctx, domain.NewNotification(domain.EventValidated, now).ForEvent(ev))
	}

	return domain.AttestationResult{
		EventID:      id,
		Operator:     operator,
		Attestations: ev.Attestations,
		Validated:    ev.Validated,
		Transitioned: transitioned,
	}, nil
}

// Get returns a copy of the event.
func (r *Registry) Get(_ context.Context, id uint64) (domain.DisasterEvent, error) {
	rec, ok := r.lookup(id)
	if !ok {
		return domain.DisasterEvent{}, fmt.Errorf("event %d: %w", id, domain.ErrUnknownEvent)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return copyEvent(rec.event), nil
}

// HasAttested reports whether operator has attested event id.
func (r *Registry) HasAttested(_ context.Context, id uint64, operator string) (bool, error) {
	rec, ok := r.lookup(id)
	if !ok {
		return false, fmt.Errorf("event %d: %w", id, domain.ErrUnknownEvent)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	_, attested := rec.attestors[operator]
	return attested, nil
}

// Attestors lists the operators that attested event id, in arrival order.
func (r *Registry) Attestors(_ context.Context, id uint64) ([]string, error) {
	rec, ok := r.lookup(id)
	if !ok {
		return nil, fmt.Errorf("event %d: %w", id, domain.ErrUnknownEvent)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]string(nil), rec.order...), nil
}

func (r *Registry) lookup(id uint64) (*record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.events[id]
	return rec, ok
}

func (r *Registry) notify(ctx context.Context, n domain.Notification) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, n); err != nil {
		r.metrics.NotificationFailures.Inc()
		r.logger.Warn("notification failed", "kind", n.Kind, "event_id", n.EventID, "error", err)
		return
	}
	r.metrics.NotificationsPublished.WithLabelValues(string(n.Kind)).Inc()
}

func copyEvent(e domain.DisasterEvent) domain.DisasterEvent {
	if e.ValidatedAt != nil {
		at := *e.ValidatedAt
		e.ValidatedAt = &at
	}
	return e
}
