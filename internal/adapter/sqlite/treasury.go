package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/couchcryptid/storm-parametric-settlement/internal/treasury"
)

// Treasury is a durable double of treasury.Memory: every movement is a row
// and a single balance row tracks their signed sum.
type Treasury struct {
	db     *gorm.DB
	clock  clockwork.Clock
	strict bool
}

// NewTreasury wraps an opened database. A strict treasury refuses payments
// larger than its balance.
func NewTreasury(db *gorm.DB, clock clockwork.Clock, strict bool) *Treasury {
	return &Treasury{db: db, clock: clock, strict: strict}
}

func (t *Treasury) Collect(ctx context.Context, from string, amount decimal.Decimal, memo string) error {
	if amount.IsNegative() {
		return fmt.Errorf("collect %s: negative amount", amount)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bal, err := currentBalance(tx)
		if err != nil {
			return err
		}
		if err := t.insert(tx, treasury.Inflow, from, amount, memo); err != nil {
			return err
		}
		return saveBalance(tx, bal.Add(amount))
	})
}

func (t *Treasury) Pay(ctx context.Context, to string, amount decimal.Decimal, memo string) error {
	if amount.IsNegative() {
		return fmt.Errorf("pay %s: negative amount", amount)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bal, err := currentBalance(tx)
		if err != nil {
			return err
		}
		if t.strict && bal.LessThan(amount) {
			return fmt.Errorf("pay %s to %s: %w", amount, to, treasury.ErrInsufficientFunds)
		}
		if err := t.insert(tx, treasury.Outflow, to, amount, memo); err != nil {
			return err
		}
		return saveBalance(tx, bal.Sub(amount))
	})
}

// Balance returns inflows minus outflows.
func (t *Treasury) Balance(ctx context.Context) (decimal.Decimal, error) {
	return currentBalance(t.db.WithContext(ctx))
}

// Entries returns every movement in insertion order.
func (t *Treasury) Entries(ctx context.Context) ([]treasury.Entry, error) {
	var rows []treasuryEntryRow
	if err := t.db.WithContext(ctx).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query treasury entries: %w", err)
	}
	out := make([]treasury.Entry, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("decode amount of %s: %w", row.ID, err)
		}
		out = append(out, treasury.Entry{
			ID:        row.ID,
			Direction: row.Direction,
			Account:   row.Account,
			Amount:    amount,
			Memo:      row.Memo,
			At:        row.At.UTC(),
		})
	}
	return out, nil
}

func (t *Treasury) insert(tx *gorm.DB, direction, account string, amount decimal.Decimal, memo string) error {
	row := treasuryEntryRow{
		ID:        uuid.NewString(),
		Direction: direction,
		Account:   account,
		Amount:    amount.String(),
		Memo:      memo,
		At:        t.clock.Now().UTC(),
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("insert treasury entry: %w", err)
	}
	return nil
}

const balanceRowID = 1

// currentBalance reads the running balance row. A database written before
// the row existed is summed from its entries once; the next movement
// stores the result.
func currentBalance(tx *gorm.DB) (decimal.Decimal, error) {
	var row treasuryBalanceRow
	err := tx.Take(&row, balanceRowID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return sumEntries(tx)
	case err != nil:
		return decimal.Zero, fmt.Errorf("query treasury balance: %w", err)
	}
	bal, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode treasury balance: %w", err)
	}
	return bal, nil
}

func saveBalance(tx *gorm.DB, bal decimal.Decimal) error {
	if err := tx.Save(&treasuryBalanceRow{ID: balanceRowID, Amount: bal.String()}).Error; err != nil {
		return fmt.Errorf("store treasury balance: %w", err)
	}
	return nil
}

func sumEntries(tx *gorm.DB) (decimal.Decimal, error) {
	var rows []treasuryEntryRow
	if err := tx.Select("direction", "amount").Find(&rows).Error; err != nil {
		return decimal.Zero, fmt.Errorf("query treasury entries: %w", err)
	}
	total := decimal.Zero
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("decode amount: %w", err)
		}
		switch row.Direction {
		case treasury.Inflow:
			total = total.Add(amount)
		case treasury.Outflow:
			total = total.Sub(amount)
		default:
			return decimal.Zero, errors.New("unknown treasury direction " + row.Direction)
		}
	}
	return total, nil
}
