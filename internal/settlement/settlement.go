// Package settlement pays parametric claims: a validated event matching an
// active policy's location and disaster type releases the full coverage.
package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
)

// PolicyStore is the subset of the policy ledger settlement needs.
type PolicyStore interface {
	Get(ctx context.Context, id uint64) (domain.Policy, error)
	Settle(ctx context.Context, id uint64, fn func(ctx context.Context, p domain.Policy) error) (domain.Policy, error)
}

// EventSource reads disaster events.
type EventSource interface {
	Get(ctx context.Context, id uint64) (domain.DisasterEvent, error)
}

// Service processes claims.
type Service struct {
	policies PolicyStore
	events   EventSource
	treasury domain.Treasury
	notifier domain.Notifier
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu      sync.RWMutex
	payouts []domain.Payout
}

// NewService wires a claim processor.
func NewService(p PolicyStore, e EventSource, t domain.Treasury, n domain.Notifier, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		policies: p,
		events:   e,
		treasury: t,
		notifier: n,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Process settles policyID against eventID on behalf of requester.
//
// Failures are reported in this order: unknown policy, unknown event, policy
// not active, event not validated, requester not the holder, location
// mismatch, disaster type mismatch. On success the full coverage is paid to
// the holder and the policy is closed; a second call fails with
// ErrPolicyNotActive.
func (s *Service) Process(ctx context.Context, policyID, eventID uint64, requester string) (domain.Payout, error) {
	payout, err := s.process(ctx, policyID, eventID, requester)
	if err != nil {
		reason := domain.ErrorCode(err)
		if reason == "" {
			reason = "internal"
		}
		s.metrics.ClaimsRejected.WithLabelValues(reason).Inc()
		s.logger.Warn("claim rejected",
			"policy_id", policyID, "event_id", eventID, "requester", requester, "error", err)
		return domain.Payout{}, err
	}

	s.mu.Lock()
	s.payouts = append(s.payouts, payout)
	s.mu.Unlock()

	s.metrics.ClaimsPaid.Inc()
	s.metrics.PayoutAmount.Add(payout.Amount.InexactFloat64())
	s.logger.Info("claim paid",
		"policy_id", policyID, "event_id", eventID, "recipient", payout.Recipient, "amount", payout.Amount.String())

	s.notify(ctx, payout)
	return payout, nil
}

func (s *Service) process(ctx context.Context, policyID, eventID uint64, requester string) (domain.Payout, error) {
	if _, err := s.policies.Get(ctx, policyID); err != nil {
		return domain.Payout{}, fmt.Errorf("process claim: %w", err)
	}
	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		return domain.Payout{}, fmt.Errorf("process claim: %w", err)
	}

	var payout domain.Payout
	_, err = s.policies.Settle(ctx, policyID, func(ctx context.Context, p domain.Policy) error {
		if err := eligible(p, ev, requester); err != nil {
			return err
		}
		if err := s.treasury.Pay(ctx, p.Holder, p.Coverage, fmt.Sprintf("claim policy-%d event-%d", p.ID, ev.ID)); err != nil {
			return fmt.Errorf("pay claim: %w", err)
		}
		payout = domain.Payout{
			PolicyID:  p.ID,
			EventID:   ev.ID,
			Recipient: p.Holder,
			Amount:    p.Coverage,
			PaidAt:    s.clock.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return domain.Payout{}, fmt.Errorf("process claim: %w", err)
	}
	return payout, nil
}

// eligible runs the checks that follow the active-policy check.
func eligible(p domain.Policy, ev domain.DisasterEvent, requester string) error {
	switch {
	case !ev.Validated:
		return fmt.Errorf("event %d: %w", ev.ID, domain.ErrEventNotValidated)
	case p.Holder != requester:
		return fmt.Errorf("policy %d: %w", p.ID, domain.ErrNotPolicyholder)
	case !domain.SameLocation(p.Location, ev.Location):
		return fmt.Errorf("policy %q, event %q: %w", p.Location, ev.Location, domain.ErrLocationMismatch)
	case p.DisasterType != ev.DisasterType:
		return fmt.Errorf("policy %s, event %s: %w", p.DisasterType, ev.DisasterType, domain.ErrDisasterTypeMismatch)
	}
	return nil
}

// Payouts returns completed payouts in settlement order.
func (s *Service) Payouts(_ context.Context) []domain.Payout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Payout(nil), s.payouts...)
}

func (s *Service) notify(ctx context.Context, p domain.Payout) {
	if s.notifier == nil {
		return
	}
	n := domain.NewNotification(domain.ClaimPaid, p.PaidAt).WithActor(p.Recipient).WithAmount(p.Amount)
	n.PolicyID = p.PolicyID
	n.EventID = p.EventID
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.metrics.NotificationFailures.Inc()
		s.logger.Warn("notification failed", "kind", n.Kind, "policy_id", p.PolicyID, "error", err)
		return
	}
	s.metrics.NotificationsPublished.WithLabelValues(string(n.Kind)).Inc()
}
