// Package treasury provides the in-process treasury used when no database
// ledger is configured.
package treasury

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

// Direction of a treasury movement.
const (
	Inflow  = "collect"
	Outflow = "pay"
)

// Entry is one recorded treasury movement.
type Entry struct {
	ID        string          `json:"id"`
	Direction string          `json:"direction"`
	Account   string          `json:"account"`
	Amount    decimal.Decimal `json:"amount"`
	Memo      string          `json:"memo"`
	At        time.Time       `json:"at"`
}

// Memory is an in-memory treasury. Payments beyond the balance are allowed
// unless Strict is set; the protocol assumes an adequately funded treasury.
type Memory struct {
	clock  clockwork.Clock
	Strict bool

	mu      sync.Mutex
	balance decimal.Decimal
	entries []Entry
}

// NewMemory returns a treasury seeded with an opening balance.
func NewMemory(clock clockwork.Clock, opening decimal.Decimal) *Memory {
	return &Memory{clock: clock, balance: opening}
}

// ErrInsufficientFunds is returned by a strict treasury that cannot cover a payment.
var ErrInsufficientFunds = errors.New("treasury balance too low")

func (m *Memory) Collect(ctx context.Context, from string, amount decimal.Decimal, memo string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount.IsNegative() {
		return fmt.Errorf("collect %s: negative amount", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance = m.balance.Add(amount)
	m.record(Inflow, from, amount, memo)
	return nil
}

func (m *Memory) Pay(ctx context.Context, to string, amount decimal.Decimal, memo string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount.IsNegative() {
		return fmt.Errorf("pay %s: negative amount", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Strict && m.balance.LessThan(amount) {
		return fmt.Errorf("pay %s to %s: %w", amount, to, ErrInsufficientFunds)
	}
	m.balance = m.balance.Sub(amount)
	m.record(Outflow, to, amount, memo)
	return nil
}

// Balance returns the current balance.
func (m *Memory) Balance() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance
}

// Entries returns every movement in order.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// PaidTo sums the outflows to account.
func (m *Memory) PaidTo(account string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, e := range m.entries {
		if e.Direction == Outflow && e.Account == account {
			total = total.Add(e.Amount)
		}
	}
	return total
}

func (m *Memory) record(direction, account string, amount decimal.Decimal, memo string) {
	m.entries = append(m.entries, Entry{
		ID:        uuid.NewString(),
		Direction: direction,
		Account:   account,
		Amount:    amount,
		Memo:      memo,
		At:        m.clock.Now().UTC(),
	})
}
