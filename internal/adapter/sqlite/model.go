package sqlite

import "time"

type notificationRow struct {
	ID           string    `gorm:"column:id;type:text;primaryKey"`
	Kind         string    `gorm:"column:kind;type:text;not null;index"`
	PolicyID     uint64    `gorm:"column:policy_id;index"`
	EventID      uint64    `gorm:"column:event_id;index"`
	Actor        string    `gorm:"column:actor;type:text"`
	Location     string    `gorm:"column:location;type:text"`
	DisasterType *string   `gorm:"column:disaster_type;type:text"`
	Amount       *string   `gorm:"column:amount;type:text"`
	Attributes   string    `gorm:"column:attributes;type:text;not null"`
	OccurredAt   time.Time `gorm:"column:occurred_at;not null;index"`
}

func (notificationRow) TableName() string {
	return "notifications"
}

type treasuryEntryRow struct {
	Seq       uint64    `gorm:"column:seq;primaryKey;autoIncrement"`
	ID        string    `gorm:"column:id;type:text;not null;uniqueIndex"`
	Direction string    `gorm:"column:direction;type:text;not null"`
	Account   string    `gorm:"column:account;type:text;not null;index"`
	Amount    string    `gorm:"column:amount;type:text;not null"`
	Memo      string    `gorm:"column:memo;type:text;not null"`
	At        time.Time `gorm:"column:at;not null"`
}

func (treasuryEntryRow) TableName() string {
	return "treasury_entries"
}

// treasuryBalanceRow holds the running balance, updated in the same
// transaction as each entry.
type treasuryBalanceRow struct {
	ID     uint   `gorm:"column:id;primaryKey;autoIncrement:false"`
	Amount string `gorm:"column:amount;type:text;not null"`
}

func (treasuryBalanceRow) TableName() string {
	return "treasury_balance"
}
