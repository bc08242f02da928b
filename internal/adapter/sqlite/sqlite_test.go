package sqlite_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/couchcryptid/storm-parametric-settlement/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/treasury"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "settlement.sqlite")
	db, err := sqlite.Open(context.Background(), path, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close(db) })
	return db
}

func TestOpen_CreatesDirectoryAndPings(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, sqlite.Ping(context.Background(), db))
}

func TestJournal_NotifyAndList(t *testing.T) {
	journal := sqlite.NewJournal(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	policy := domain.Policy{ID: 7, Location: "Miami", DisasterType: domain.Hurricane}
	event := domain.DisasterEvent{ID: 3, Location: "Miami", DisasterType: domain.Hurricane}

	created := domain.NewNotification(domain.PolicyCreated, base).
		ForPolicy(policy).
		WithActor("alice").
		WithAmount(decimal.RequireFromString("50")).
		WithAttr("coverage", "1000")
	validated := domain.NewNotification(domain.EventValidated, base.Add(time.Minute)).ForEvent(event)
	paid := domain.NewNotification(domain.ClaimPaid, base.Add(2*time.Minute)).
		ForPolicy(policy).
		WithAmount(decimal.RequireFromString("1000"))
	paid.EventID = event.ID

	for _, n := range []domain.Notification{paid, created, validated} {
		require.NoError(t, journal.Notify(ctx, n))
	}

	all, err := journal.List(ctx, domain.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.PolicyCreated, all[0].Kind)
	assert.Equal(t, domain.EventValidated, all[1].Kind)
	assert.Equal(t, domain.ClaimPaid, all[2].Kind)

	first := all[0]
	assert.Equal(t, created.ID, first.ID)
	assert.Equal(t, "alice", first.Actor)
	assert.Equal(t, uint64(7), first.PolicyID)
	require.NotNil(t, first.DisasterType)
	assert.Equal(t, domain.Hurricane, *first.DisasterType)
	require.NotNil(t, first.Amount)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("50")))
	assert.Equal(t, map[string]string{"coverage": "1000"}, first.Attributes)
	assert.True(t, first.OccurredAt.Equal(base))

	byPolicy, err := journal.List(ctx, domain.NotificationFilter{PolicyID: 7})
	require.NoError(t, err)
	assert.Len(t, byPolicy, 2)

	byEvent, err := journal.List(ctx, domain.NotificationFilter{EventID: 3, Kind: domain.ClaimPaid})
	require.NoError(t, err)
	require.Len(t, byEvent, 1)
	assert.Equal(t, paid.ID, byEvent[0].ID)

	limited, err := journal.List(ctx, domain.NotificationFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestJournal_DuplicateIDRejected(t *testing.T) {
	journal := sqlite.NewJournal(openTestDB(t))
	n := domain.NewNotification(domain.EventReported, time.Now())
	require.NoError(t, journal.Notify(context.Background(), n))
	require.Error(t, journal.Notify(context.Background(), n))
}

func TestTreasury_BalanceAndEntries(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	tr := sqlite.NewTreasury(openTestDB(t), clock, false)
	ctx := context.Background()

	require.NoError(t, tr.Collect(ctx, "alice", decimal.RequireFromString("0.05"), "premium policy 1"))
	clock.Advance(time.Hour)
	require.NoError(t, tr.Pay(ctx, "alice", decimal.RequireFromString("1"), "payout policy 1"))

	bal, err := tr.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.RequireFromString("-0.95")), bal.String())

	entries, err := tr.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, treasury.Inflow, entries[0].Direction)
	assert.Equal(t, treasury.Outflow, entries[1].Direction)
	assert.Equal(t, "payout policy 1", entries[1].Memo)
	assert.True(t, entries[1].At.Equal(clock.Now()))
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestTreasury_StrictRefusesOverdraft(t *testing.T) {
	tr := sqlite.NewTreasury(openTestDB(t), clockwork.NewFakeClock(), true)
	ctx := context.Background()

	require.NoError(t, tr.Collect(ctx, "alice", decimal.NewFromInt(10), "premium"))
	err := tr.Pay(ctx, "bob", decimal.NewFromInt(11), "payout")
	require.ErrorIs(t, err, treasury.ErrInsufficientFunds)

	bal, err := tr.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(10)))
}

func TestTreasury_NegativeAmounts(t *testing.T) {
	tr := sqlite.NewTreasury(openTestDB(t), clockwork.NewFakeClock(), false)
	assert.Error(t, tr.Collect(context.Background(), "a", decimal.NewFromInt(-1), ""))
	assert.Error(t, tr.Pay(context.Background(), "a", decimal.NewFromInt(-1), ""))
}

func TestTreasury_SatisfiesDomainPort(t *testing.T) {
	var _ domain.Treasury = sqlite.NewTreasury(openTestDB(t), clockwork.NewFakeClock(), false)
	var _ domain.Notifier = sqlite.NewJournal(openTestDB(t))
}
