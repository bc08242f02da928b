package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
)

// Journal is an append-only audit log of lifecycle notifications.
type Journal struct {
	db *gorm.DB
}

// NewJournal wraps an opened database.
func NewJournal(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// Notify implements domain.Notifier.
func (j *Journal) Notify(ctx context.Context, n domain.Notification) error {
	row, err := toNotificationRow(n)
	if err != nil {
		return err
	}
	if err := j.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert notification %s: %w", n.ID, err)
	}
	return nil
}

// List returns matching notifications oldest first.
func (j *Journal) List(ctx context.Context, f domain.NotificationFilter) ([]domain.Notification, error) {
	query := j.db.WithContext(ctx).Model(&notificationRow{})
	if f.Kind != "" {
		query = query.Where("kind = ?", string(f.Kind))
	}
	if f.PolicyID != 0 {
		query = query.Where("policy_id = ?", f.PolicyID)
	}
	if f.EventID != 0 {
		query = query.Where("event_id = ?", f.EventID)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var rows []notificationRow
	if err := query.Order("occurred_at asc").Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}

	out := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func toNotificationRow(n domain.Notification) (notificationRow, error) {
	attrs, err := json.Marshal(n.Attributes)
	if err != nil {
		return notificationRow{}, fmt.Errorf("encode attributes: %w", err)
	}
	row := notificationRow{
		ID:         n.ID,
		Kind:       string(n.Kind),
		PolicyID:   n.PolicyID,
		EventID:    n.EventID,
		Actor:      n.Actor,
		Location:   n.Location,
		Attributes: string(attrs),
		OccurredAt: n.OccurredAt.UTC(),
	}
	if n.DisasterType != nil {
		s := n.DisasterType.String()
		row.DisasterType = &s
	}
	if n.Amount != nil {
		s := n.Amount.String()
		row.Amount = &s
	}
	return row, nil
}

func (r notificationRow) toDomain() (domain.Notification, error) {
	n := domain.Notification{
		ID:         r.ID,
		Kind:       domain.NotificationKind(r.Kind),
		PolicyID:   r.PolicyID,
		EventID:    r.EventID,
		Actor:      r.Actor,
		Location:   r.Location,
		OccurredAt: r.OccurredAt.UTC(),
	}
	if r.Attributes != "" && r.Attributes != "null" {
		if err := json.Unmarshal([]byte(r.Attributes), &n.Attributes); err != nil {
			return domain.Notification{}, fmt.Errorf("decode attributes of %s: %w", r.ID, err)
		}
	}
	if r.DisasterType != nil {
		t, err := domain.ParseDisasterType(*r.DisasterType)
		if err != nil {
			return domain.Notification{}, err
		}
		n.DisasterType = &t
	}
	if r.Amount != nil {
		a, err := decimal.NewFromString(*r.Amount)
		if err != nil {
			return domain.Notification{}, fmt.Errorf("decode amount of %s: %w", r.ID, err)
		}
		n.Amount = &a
	}
	return n, nil
}
