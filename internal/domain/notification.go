package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NotificationKind names a lifecycle transition.
type NotificationKind string

const (
	PolicyCreated   NotificationKind = "policy.created"
	PolicyCancelled NotificationKind = "policy.cancelled"
	EventReported   NotificationKind = "event.reported"
	EventAttested   NotificationKind = "event.attested"
	EventValidated  NotificationKind = "event.validated"
	ClaimPaid       NotificationKind = "claim.paid"
)

// Notification is emitted after a state change has been committed.
type Notification struct {
	ID           string            `json:"id"`
	Kind         NotificationKind  `json:"kind"`
	PolicyID     uint64            `json:"policy_id,omitempty"`
	EventID      uint64            `json:"event_id,omitempty"`
	Actor        string            `json:"actor,omitempty"`
	Location     string            `json:"location,omitempty"`
	DisasterType *DisasterType     `json:"disaster_type,omitempty"`
	Amount       *decimal.Decimal  `json:"amount,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// NewNotification stamps a notification with a fresh id.
func NewNotification(kind NotificationKind, at time.Time) Notification {
	return Notification{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: at.UTC(),
	}
}

// ForEvent fills the event fields from e.
func (n Notification) ForEvent(e DisasterEvent) Notification {
	n.EventID = e.ID
	n.Location = e.Location
	return n.WithType(e.DisasterType)
}

// ForPolicy fills the policy fields from p.
func (n Notification) ForPolicy(p Policy) Notification {
	n.PolicyID = p.ID
	n.Location = p.Location
	return n.WithType(p.DisasterType)
}

// WithActor sets the account that caused the transition.
func (n Notification) WithActor(actor string) Notification {
	n.Actor = actor
	return n
}

// WithType sets the disaster type.
func (n Notification) WithType(t DisasterType) Notification {
	n.DisasterType = &t
	return n
}

// WithAmount sets the amount.
func (n Notification) WithAmount(a decimal.Decimal) Notification {
	n.Amount = &a
	return n
}

// WithAttr adds one string attribute.
func (n Notification) WithAttr(key, value string) Notification {
	attrs := make(map[string]string, len(n.Attributes)+1)
	for k, v := range n.Attributes {
		attrs[k] = v
	}
	attrs[key] = value
	n.Attributes = attrs
	return n
}

// NotificationFilter narrows a journal query. Zero values match everything.
type NotificationFilter struct {
	Kind     NotificationKind
	PolicyID uint64
	EventID  uint64
	Limit    int
}

// Notifier delivers notifications to a sink.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Notifiers fans a notification out to every sink and joins their errors.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, sink := range ns {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OutputEvent is the serialized form destined for the notification topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// SerializeNotification encodes a notification keyed by the entity it
// concerns, so all notifications for one policy or event share a partition.
func SerializeNotification(n Notification) (OutputEvent, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize notification: %w", err)
	}
	return OutputEvent{
		Key:   []byte(notificationKey(n)),
		Value: data,
		Headers: map[string]string{
			"kind":        string(n.Kind),
			"occurred_at": n.OccurredAt.Format(time.RFC3339),
		},
	}, nil
}

func notificationKey(n Notification) string {
	switch {
	case n.PolicyID != 0:
		return "policy-" + strconv.FormatUint(n.PolicyID, 10)
	case n.EventID != 0:
		return "event-" + strconv.FormatUint(n.EventID, 10)
	default:
		return n.ID
	}
}
