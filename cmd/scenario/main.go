// Command scenario replays the reference settlement scenario against
// in-process components with a fixed clock and generated operator keys. It
// checks policy accounting, attestation quorum, single-fire settlement and
// the advisory scoring engines, then prints a pass/fail report.
//
// Usage:
//
//	go run ./cmd/scenario -threshold 3 -coverage 1000000000000000000
package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/couchcryptid/storm-parametric-settlement/internal/attestation"
	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/events"
	"github.com/couchcryptid/storm-parametric-settlement/internal/impact"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
	"github.com/couchcryptid/storm-parametric-settlement/internal/policy"
	"github.com/couchcryptid/storm-parametric-settlement/internal/refdata"
	"github.com/couchcryptid/storm-parametric-settlement/internal/risk"
	"github.com/couchcryptid/storm-parametric-settlement/internal/settlement"
	"github.com/couchcryptid/storm-parametric-settlement/internal/treasury"
	"github.com/couchcryptid/storm-parametric-settlement/internal/weather"
)

// Month 8 under the 30-day approximation, so hurricane season applies.
var scenarioStart = time.Unix(7*30*24*60*60, 0).UTC()

const holder = "alice"

// phase tracks pass/fail for a scenario phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// expectCode records an error unless err carries the wanted domain code.
func (p *phase) expectCode(step string, err error, want error) {
	if !errors.Is(err, want) {
		p.errorf("%s: got %v, want %s", step, err, domain.ErrorCode(want))
	}
}

type options struct {
	threshold uint64
	coverage  decimal.Decimal
	verbose   bool
}

func main() {
	threshold := flag.Uint64("threshold", events.DefaultThreshold, "attestations required to validate an event")
	coverage := flag.String("coverage", "1000000000000000000", "coverage of the scenario policy in base units")
	verbose := flag.Bool("v", false, "log component activity to stderr")
	flag.Parse()

	cov, err := decimal.NewFromString(*coverage)
	if err != nil || !cov.IsPositive() || !cov.Equal(cov.Truncate(0)) {
		fmt.Fprintf(os.Stderr, "invalid -coverage %q\n", *coverage)
		os.Exit(2)
	}
	if *threshold == 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be positive")
		os.Exit(2)
	}

	opts := options{threshold: *threshold, coverage: cov, verbose: *verbose}
	if code := run(os.Stdout, opts, observability.NewMetrics()); code != 0 {
		os.Exit(code)
	}
}

// world is the set of wired components one scenario run drives.
type world struct {
	clock    *clockwork.FakeClock
	treasury *treasury.Memory
	ledger   *policy.Ledger
	registry *events.Registry
	claims   *settlement.Service
	weather  *weather.Store
	risk     *risk.Engine
	impact   *impact.Engine
	keys     map[string]ed25519.PrivateKey
	ops      []string

	mu    sync.Mutex
	kinds map[domain.NotificationKind]int
}

func (w *world) Notify(_ context.Context, n domain.Notification) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.kinds[n.Kind]++
	return nil
}

func (w *world) notified(kind domain.NotificationKind) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.kinds[kind]
}

func newWorld(opts options, metrics *observability.Metrics) (*world, error) {
	var out io.Writer = io.Discard
	if opts.verbose {
		out = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ref, err := refdata.Load("")
	if err != nil {
		return nil, fmt.Errorf("load reference data: %w", err)
	}

	w := &world{
		clock: clockwork.NewFakeClockAt(scenarioStart),
		keys:  make(map[string]ed25519.PrivateKey),
		kinds: make(map[domain.NotificationKind]int),
	}

	// One operator beyond the quorum exercises late attestations.
	verifier := attestation.NewRegistry()
	for i := uint64(1); i <= opts.threshold+1; i++ {
		id := fmt.Sprintf("op-%d", i)
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("generate key for %s: %w", id, err)
		}
		if err := verifier.Register(id, pub); err != nil {
			return nil, err
		}
		w.keys[id] = priv
		w.ops = append(w.ops, id)
	}

	w.treasury = treasury.NewMemory(w.clock, decimal.Zero)
	w.ledger = policy.NewLedger(w.treasury, w, w.clock, logger, metrics, policy.DefaultTerms())
	w.registry = events.NewRegistry(verifier, w, w.clock, logger, metrics, events.Options{Threshold: opts.threshold})
	w.claims = settlement.NewService(w.ledger, w.registry, w.treasury, w, w.clock, logger, metrics)
	w.weather = weather.NewStore(w.clock)
	w.risk = risk.NewEngine(ref, w.weather, w.clock, logger, metrics, risk.Options{Season: risk.SeasonEpoch30})
	w.impact = impact.NewEngine(ref, w.clock, logger, metrics, impact.DefaultHistoryCapacity)
	return w, nil
}

func (w *world) sign(ctx context.Context, eventID uint64, operator string) ([]byte, error) {
	ev, err := w.registry.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return attestation.Sign(w.keys[operator], attestation.Digest(ev)), nil
}

func run(stdout io.Writer, opts options, metrics *observability.Metrics) int {
	ctx := context.Background()

	fmt.Fprintln(stdout, "=== Parametric Settlement Scenario ===")
	fmt.Fprintln(stdout)

	w, err := newWorld(opts, metrics)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	pol, policyPhase := checkPolicies(ctx, w, opts)
	ev, quorumPhase := checkQuorum(ctx, w, opts)
	phases := []*phase{
		policyPhase,
		quorumPhase,
		checkSettlement(ctx, w, opts, pol, ev),
		checkRisk(ctx, w),
		checkImpact(ctx, w),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(stdout, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "Treasury balance: %s over %d entries; %d operators, threshold %d\n",
		w.treasury.Balance(), len(w.treasury.Entries()), len(w.ops), opts.threshold)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(stdout, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(stdout, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(stdout, "\nAll scenario checks passed.")
		return 0
	}
	fmt.Fprintln(stdout, "\nScenario FAILED.")
	return 1
}

// ── Phases ──

func checkPolicies(ctx context.Context, w *world, opts options) (uint64, *phase) {
	p := &phase{name: "Policy creation and cancellation"}
	premium := policy.Premium(opts.coverage, policy.DefaultPremiumRateBPS)

	quote, err := w.ledger.Quote(opts.coverage)
	if err != nil {
		p.errorf("quote: %v", err)
	} else if !quote.Equal(premium) {
		p.errorf("quote: got %s, want %s", quote, premium)
	}

	_, err = w.ledger.Create(ctx, holder, opts.coverage, "San Francisco", domain.Earthquake, premium.Sub(decimal.NewFromInt(1)))
	p.expectCode("underpaid create", err, domain.ErrInsufficientPremium)
	_, err = w.ledger.Create(ctx, holder, decimal.Zero, "San Francisco", domain.Earthquake, premium)
	p.expectCode("zero coverage", err, domain.ErrInvalidCoverage)

	id, err := w.ledger.Create(ctx, holder, opts.coverage, "San Francisco", domain.Earthquake, premium)
	if err != nil {
		p.errorf("create: %v", err)
		return 0, p
	}
	if id != 1 {
		p.errorf("first policy id: got %d, want 1", id)
	}
	pol, err := w.ledger.Get(ctx, id)
	switch {
	case err != nil:
		p.errorf("get policy %d: %v", id, err)
	case !pol.Active:
		p.errorf("policy %d not active after creation", id)
	case !pol.Premium.Equal(premium):
		p.errorf("stored premium: got %s, want %s", pol.Premium, premium)
	case !pol.EndsAt.Equal(pol.StartsAt.Add(policy.DefaultDuration)):
		p.errorf("policy window: %s to %s", pol.StartsAt, pol.EndsAt)
	}

	// A second policy is cancelled to exercise the refund path.
	spare, err := w.ledger.Create(ctx, holder, opts.coverage, "Miami", domain.Hurricane, premium)
	if err != nil {
		p.errorf("create second policy: %v", err)
		return id, p
	}
	_, err = w.ledger.Cancel(ctx, spare, "mallory")
	p.expectCode("cancel by stranger", err, domain.ErrNotPolicyholder)
	refund, err := w.ledger.Cancel(ctx, spare, holder)
	if err != nil {
		p.errorf("cancel: %v", err)
	} else if want := policy.Premium(premium, policy.DefaultCancelRefundBPS); !refund.Equal(want) {
		p.errorf("refund: got %s, want %s", refund, want)
	}
	_, err = w.ledger.Cancel(ctx, spare, holder)
	p.expectCode("second cancel", err, domain.ErrPolicyNotActive)

	if got := w.notified(domain.PolicyCreated); got != 2 {
		p.errorf("policy.created notifications: got %d, want 2", got)
	}
	return id, p
}

func checkQuorum(ctx context.Context, w *world, opts options) (uint64, *phase) {
	p := &phase{name: "Event reporting and attestation quorum"}

	id, err := w.registry.Report(ctx, "reporter", "San Francisco", domain.Earthquake, 70)
	if err != nil {
		p.errorf("report: %v", err)
		return 0, p
	}

	_, err = w.registry.Attest(ctx, id, w.ops[0], []byte("not a signature"))
	p.expectCode("garbage signature", err, domain.ErrInvalidSignature)

	// A signature over the wrong event must not count.
	wrong := attestation.Sign(w.keys[w.ops[0]], attestation.Digest(domain.DisasterEvent{
		Location: "San Francisco", DisasterType: domain.Flood, Severity: 70, ReportedAt: uint64(w.clock.Now().Unix()),
	}))
	_, err = w.registry.Attest(ctx, id, w.ops[0], wrong)
	p.expectCode("signature over other event", err, domain.ErrInvalidSignature)

	for i := uint64(0); i < opts.threshold; i++ {
		op := w.ops[i]
		sig, err := w.sign(ctx, id, op)
		if err != nil {
			p.errorf("sign as %s: %v", op, err)
			return id, p
		}
		res, err := w.registry.Attest(ctx, id, op, sig)
		if err != nil {
			p.errorf("attest as %s: %v", op, err)
			return id, p
		}
		last := i == opts.threshold-1
		if res.Attestations != i+1 || res.Validated != last || res.Transitioned != last {
			p.errorf("attestation %d: count=%d validated=%t transitioned=%t", i+1, res.Attestations, res.Validated, res.Transitioned)
		}
		if i == 0 {
			_, err = w.registry.Attest(ctx, id, op, sig)
			p.expectCode("duplicate attestation", err, domain.ErrDuplicateAttestation)
		}
	}

	late := w.ops[opts.threshold]
	sig, err := w.sign(ctx, id, late)
	if err == nil {
		var res domain.AttestationResult
		res, err = w.registry.Attest(ctx, id, late, sig)
		if err == nil && (res.Transitioned || res.Attestations != opts.threshold+1) {
			p.errorf("late attestation: count=%d transitioned=%t", res.Attestations, res.Transitioned)
		}
	}
	if err != nil {
		p.errorf("late attestation: %v", err)
	}

	ev, err := w.registry.Get(ctx, id)
	if err != nil {
		p.errorf("get event: %v", err)
	} else if !ev.Validated || ev.ValidatedAt == nil {
		p.errorf("event %d not validated after quorum", id)
	}
	if got := w.notified(domain.EventValidated); got != 1 {
		p.errorf("event.validated notifications: got %d, want 1", got)
	}
	return id, p
}

func checkSettlement(ctx context.Context, w *world, opts options, policyID, eventID uint64) *phase {
	p := &phase{name: "Single-fire claim settlement"}
	if policyID == 0 || eventID == 0 {
		p.errorf("skipped: policy or event missing from earlier phases")
		return p
	}

	pending, err := w.registry.Report(ctx, "reporter", "San Francisco", domain.Earthquake, 50)
	if err != nil {
		p.errorf("report pending event: %v", err)
	} else {
		_, err = w.claims.Process(ctx, policyID, pending, holder)
		p.expectCode("unvalidated event", err, domain.ErrEventNotValidated)
	}
	_, err = w.claims.Process(ctx, policyID, eventID, "mallory")
	p.expectCode("wrong requester", err, domain.ErrNotPolicyholder)
	_, err = w.claims.Process(ctx, policyID, 999, holder)
	p.expectCode("unknown event", err, domain.ErrUnknownEvent)

	before := w.treasury.PaidTo(holder)
	payout, err := w.claims.Process(ctx, policyID, eventID, holder)
	if err != nil {
		p.errorf("process claim: %v", err)
		return p
	}
	if !payout.Amount.Equal(opts.coverage) || payout.Recipient != holder {
		p.errorf("payout: %s to %s, want %s to %s", payout.Amount, payout.Recipient, opts.coverage, holder)
	}
	if paid := w.treasury.PaidTo(holder).Sub(before); !paid.Equal(opts.coverage) {
		p.errorf("treasury paid %s, want %s", paid, opts.coverage)
	}

	_, err = w.claims.Process(ctx, policyID, eventID, holder)
	p.expectCode("second claim", err, domain.ErrPolicyNotActive)
	if pol, err := w.ledger.Get(ctx, policyID); err == nil && pol.Active {
		p.errorf("policy %d still active after payout", policyID)
	}
	if got := len(w.claims.Payouts(ctx)); got != 1 {
		p.errorf("payouts recorded: got %d, want 1", got)
	}
	return p
}

func checkRisk(ctx context.Context, w *world) *phase {
	p := &phase{name: "Risk scoring"}

	sf, err := w.risk.Calculate(ctx, "San Francisco", domain.Earthquake)
	if err != nil {
		p.errorf("San Francisco earthquake: %v", err)
	} else if sf.FinalScore != 80 {
		p.errorf("San Francisco earthquake: got %d, want 80", sf.FinalScore)
	}

	w.weather.Update(ctx, "Miami", domain.WeatherData{WindSpeed: 120, Pressure: 980})
	mia, err := w.risk.Calculate(ctx, "Miami", domain.Hurricane)
	if err != nil {
		p.errorf("Miami hurricane: %v", err)
	} else if mia.FinalScore != 375 {
		p.errorf("Miami hurricane: got %d, want 375 (base %d, weather %d, season %d)",
			mia.FinalScore, mia.BaseScore, mia.WeatherMultiplier, mia.SeasonalMultiplier)
	}

	w.risk.RecordHistoricalEvent(ctx, "San Francisco", domain.Earthquake, 70, decimal.NewFromInt(1_000_000))
	again, err := w.risk.Calculate(ctx, "San Francisco", domain.Earthquake)
	if err != nil {
		p.errorf("San Francisco after history: %v", err)
	} else if again.HistoricalMultiplier != 125 || again.FinalScore != 100 {
		p.errorf("San Francisco after history: multiplier %d score %d, want 125 and 100",
			again.HistoricalMultiplier, again.FinalScore)
	}

	_, err = w.risk.Calculate(ctx, "Atlantis", domain.Flood)
	p.expectCode("unknown location", err, domain.ErrUnsupportedLocation)
	return p
}

func checkImpact(ctx context.Context, w *world) *phase {
	p := &phase{name: "Impact prediction"}

	pred, err := w.impact.Predict(ctx, "Miami", domain.Hurricane, 80, domain.WeatherData{})
	if err != nil {
		p.errorf("Miami hurricane: %v", err)
		return p
	}
	if pred.AffectedAreaKM2 != impact.AffectedArea(domain.Hurricane, 80) {
		p.errorf("affected area: got %d, want %d", pred.AffectedAreaKM2, impact.AffectedArea(domain.Hurricane, 80))
	}
	if pred.EstimatedDamageUSD == 0 || pred.Confidence == 0 || pred.Confidence > 100 {
		p.errorf("prediction out of range: damage %d confidence %d", pred.EstimatedDamageUSD, pred.Confidence)
	}
	if got := w.impact.History(ctx, "Miami", 0); len(got) != 1 {
		p.errorf("impact history: got %d entries, want 1", len(got))
	}

	_, err = w.impact.Predict(ctx, "Atlantis", domain.Flood, 10, domain.WeatherData{})
	p.expectCode("unknown location", err, domain.ErrUnsupportedLocation)
	return p
}
