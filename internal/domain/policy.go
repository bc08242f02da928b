package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CloseReason records why a policy left the active state.
type CloseReason string

const (
	CloseCancelled CloseReason = "cancelled"
	CloseSettled   CloseReason = "settled"
)

// Policy is a parametric coverage contract. Premium is fixed at creation.
type Policy struct {
	ID           uint64          `json:"id"`
	Holder       string          `json:"holder"`
	Coverage     decimal.Decimal `json:"coverage"`
	Premium      decimal.Decimal `json:"premium"`
	Surplus      decimal.Decimal `json:"surplus"` // paid beyond the premium, kept by the treasury
	Location     string          `json:"location"`
	DisasterType DisasterType    `json:"disaster_type"`
	StartsAt     time.Time       `json:"starts_at"`
	EndsAt       time.Time       `json:"ends_at"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
	CloseReason  CloseReason     `json:"close_reason,omitempty"`
}

// InWindow reports whether t falls inside the policy's validity window.
// Settlement does not consult it; it is exposed for underwriting reads.
func (p Policy) InWindow(t time.Time) bool {
	return !t.Before(p.StartsAt) && t.Before(p.EndsAt)
}

// Payout describes a completed claim settlement.
type Payout struct {
	PolicyID  uint64          `json:"policy_id"`
	EventID   uint64          `json:"event_id"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
}
