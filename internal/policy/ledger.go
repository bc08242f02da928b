// Package policy is the policy ledger: creation with premium accounting,
// holder cancellation, and the atomic settle step used by claim settlement.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
)

// Defaults for Terms.
const (
	DefaultPremiumRateBPS  = 500
	DefaultCancelRefundBPS = 5000
	DefaultDuration        = 720 * time.Hour
)

var bpsDenominator = decimal.NewFromInt(10_000)

// Terms are the underwriting constants applied to every policy.
type Terms struct {
	PremiumRateBPS  int64
	CancelRefundBPS int64
	Duration        time.Duration
}

// DefaultTerms returns the standard underwriting terms.
func DefaultTerms() Terms {
	return Terms{
		PremiumRateBPS:  DefaultPremiumRateBPS,
		CancelRefundBPS: DefaultCancelRefundBPS,
		Duration:        DefaultDuration,
	}
}

// Premium computes coverage × rate / 10000 with integer division.
func Premium(coverage decimal.Decimal, rateBPS int64) decimal.Decimal {
	return bpsShare(coverage, rateBPS)
}

func bpsShare(amount decimal.Decimal, bps int64) decimal.Decimal {
	q, _ := amount.Mul(decimal.NewFromInt(bps)).QuoRem(bpsDenominator, 0)
	return q
}

type record struct {
	mu     sync.Mutex
	policy domain.Policy
}

// Ledger stores policies. Mutations on one policy are serialized; different
// policies proceed independently.
type Ledger struct {
	treasury domain.Treasury
	notifier domain.Notifier
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	terms    Terms

	// createMu serializes creation so ids are only consumed by policies
	// whose premium was collected.
	createMu sync.Mutex
	mu       sync.RWMutex
	nextID   uint64
	policies map[uint64]*record
}

// NewLedger creates an empty ledger.
func NewLedger(t domain.Treasury, n domain.Notifier, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, terms Terms) *Ledger {
	return &Ledger{
		treasury: t,
		notifier: n,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		terms:    terms,
		policies: make(map[uint64]*record),
	}
}

// Terms returns the ledger's underwriting terms.
func (l *Ledger) Terms() Terms { return l.terms }

// Quote returns the premium for coverage without creating anything.
func (l *Ledger) Quote(coverage decimal.Decimal) (decimal.Decimal, error) {
	if err := validateCoverage(coverage); err != nil {
		return decimal.Zero, err
	}
	return Premium(coverage, l.terms.PremiumRateBPS), nil
}

// Create opens an active policy for holder. The whole paid amount is
// collected; anything above the premium is recorded as surplus.
func (l *Ledger) Create(ctx context.Context, holder string, coverage decimal.Decimal, location string, t domain.DisasterType, paid decimal.Decimal) (uint64, error) {
	premium, err := l.Quote(coverage)
	if err != nil {
		return 0, err
	}
	if !t.Valid() {
		return 0, fmt.Errorf("create policy: %w: %d", domain.ErrUnknownDisasterType, uint8(t))
	}
	if paid.LessThan(premium) {
		return 0, fmt.Errorf("create policy: paid %s, premium %s: %w", paid, premium, domain.ErrInsufficientPremium)
	}

	p, err := l.open(ctx, holder, coverage, premium, location, t, paid)
	if err != nil {
		return 0, err
	}
	id, now := p.ID, p.CreatedAt

	l.metrics.PoliciesCreated.Inc()
	l.metrics.PremiumCollected.Add(paid.InexactFloat64())
	l.logger.Info("policy created",
		"policy_id", id, "holder", holder, "location", location,
		"disaster_type", t.String(), "coverage", coverage.String(), "premium", premium.String())

	l.notify(ctx, domain.NewNotification(domain.PolicyCreated, now).
		ForPolicy(p).WithActor(holder).WithAmount(premium).
		WithAttr("coverage", coverage.String()))
	return id, nil
}

func (l *Ledger) open(ctx context.Context, holder string, coverage, premium decimal.Decimal, location string, t domain.DisasterType, paid decimal.Decimal) (domain.Policy, error) {
	l.createMu.Lock()
	defer l.createMu.Unlock()

	l.mu.RLock()
	id := l.nextID + 1
	l.mu.RUnlock()
	if err := l.treasury.Collect(ctx, holder, paid, fmt.Sprintf("premium policy-%d", id)); err != nil {
		return domain.Policy{}, fmt.Errorf("create policy: collect premium: %w", err)
	}

	now := l.clock.Now().UTC()
	p := domain.Policy{
		ID:           id,
		Holder:       holder,
		Coverage:     coverage,
		Premium:      premium,
		Surplus:      paid.Sub(premium),
		Location:     location,
		DisasterType: t,
		StartsAt:     now,
		EndsAt:       now.Add(l.terms.Duration),
		Active:       true,
		CreatedAt:    now,
	}
	l.mu.Lock()
	l.nextID = id
	l.policies[id] = &record{policy: p}
	l.mu.Unlock()
	return p, nil
}

// Get returns a copy of the policy.
func (l *Ledger) Get(_ context.Context, id uint64) (domain.Policy, error) {
	rec, ok := l.lookup(id)
	if !ok {
		return domain.Policy{}, fmt.Errorf("policy %d: %w", id, domain.ErrUnknownPolicy)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return copyPolicy(rec.policy), nil
}

// ListByHolder returns holder's policies ordered by id.
func (l *Ledger) ListByHolder(_ context.Context, holder string) []domain.Policy {
	l.mu.RLock()
	recs := make([]*record, 0)
	for _, rec := range l.policies {
		recs = append(recs, rec)
	}
	l.mu.RUnlock()

	var out []domain.Policy
	for _, rec := range recs {
		rec.mu.Lock()
		if rec.policy.Holder == holder {
			out = append(out, copyPolicy(rec.policy))
		}
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Cancel deactivates a policy at its holder's request and refunds the
// configured share of the premium. Checks run in order: unknown policy,
// not the holder, not active.
func (l *Ledger) Cancel(ctx context.Context, id uint64, requester string) (decimal.Decimal, error) {
	rec, ok := l.lookup(id)
	if !ok {
		return decimal.Zero, fmt.Errorf("cancel policy %d: %w", id, domain.ErrUnknownPolicy)
	}

	rec.mu.Lock()
	p := rec.policy
	if p.Holder != requester {
		rec.mu.Unlock()
		return decimal.Zero, fmt.Errorf("cancel policy %d: %w", id, domain.ErrNotPolicyholder)
	}
	if !p.Active {
		rec.mu.Unlock()
		return decimal.Zero, fmt.Errorf("cancel policy %d: %w", id, domain.ErrPolicyNotActive)
	}

	refund := bpsShare(p.Premium, l.terms.CancelRefundBPS)
	if refund.IsPositive() {
		if err := l.treasury.Pay(ctx, p.Holder, refund, fmt.Sprintf("refund policy-%d", id)); err != nil {
			rec.mu.Unlock()
			return decimal.Zero, fmt.Errorf("cancel policy %d: pay refund: %w", id, err)
		}
	}
	now := l.clock.Now().UTC()
	deactivate(&rec.policy, domain.CloseCancelled, now)
	p = copyPolicy(rec.policy)
	rec.mu.Unlock()

	l.metrics.PoliciesCancelled.Inc()
	l.metrics.RefundsPaid.Add(refund.InexactFloat64())
	l.logger.Info("policy cancelled", "policy_id", id, "refund", refund.String())

	l.notify(ctx, domain.NewNotification(domain.PolicyCancelled, now).
		ForPolicy(p).WithActor(requester).WithAmount(refund))
	return refund, nil
}

// Settle runs fn against an active policy and deactivates it when fn
// succeeds, all under the policy lock. A failing fn leaves the policy
// active. Returns ErrUnknownPolicy or ErrPolicyNotActive before calling fn.
func (l *Ledger) Settle(ctx context.Context, id uint64, fn func(ctx context.Context, p domain.Policy) error) (domain.Policy, error) {
	rec, ok := l.lookup(id)
	if !ok {
		return domain.Policy{}, fmt.Errorf("settle policy %d: %w", id, domain.ErrUnknownPolicy)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.policy.Active {
		return domain.Policy{}, fmt.Errorf("settle policy %d: %w", id, domain.ErrPolicyNotActive)
	}
	if err := fn(ctx, copyPolicy(rec.policy)); err != nil {
		return domain.Policy{}, err
	}
	deactivate(&rec.policy, domain.CloseSettled, l.clock.Now().UTC())
	return copyPolicy(rec.policy), nil
}

func (l *Ledger) lookup(id uint64) (*record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.policies[id]
	return rec, ok
}

func (l *Ledger) notify(ctx context.Context, n domain.Notification) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Notify(ctx, n); err != nil {
		l.metrics.NotificationFailures.Inc()
		l.logger.Warn("notification failed", "kind", n.Kind, "policy_id", n.PolicyID, "error", err)
		return
	}
	l.metrics.NotificationsPublished.WithLabelValues(string(n.Kind)).Inc()
}

func validateCoverage(coverage decimal.Decimal) error {
	if !coverage.IsPositive() || !coverage.Equal(coverage.Truncate(0)) {
		return fmt.Errorf("coverage %s: %w", coverage, domain.ErrInvalidCoverage)
	}
	return nil
}

func deactivate(p *domain.Policy, reason domain.CloseReason, at time.Time) {
	p.Active = false
	p.CloseReason = reason
	p.ClosedAt = &at
}

func copyPolicy(p domain.Policy) domain.Policy {
	if p.ClosedAt != nil {
		at := *p.ClosedAt
		p.ClosedAt = &at
	}
	return p
}
