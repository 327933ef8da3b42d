package models

import (
	"fmt"
	"time"
)

// TransactionType is the closed set of ledger entry kinds
type TransactionType string

const (
	TransactionEarn    TransactionType = "earn"
	TransactionSpend   TransactionType = "spend"
	TransactionBonus   TransactionType = "bonus"
	TransactionPenalty TransactionType = "penalty"
)

// Valid reports whether t is one of the known transaction types
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionEarn, TransactionSpend, TransactionBonus, TransactionPenalty:
		return true
	}
	return false
}

// Sign returns +1 for credits and -1 for debits
func (t TransactionType) Sign() int64 {
	switch t {
	case TransactionSpend, TransactionPenalty:
		return -1
	default:
		return 1
	}
}

// PointsTransaction is an immutable ledger entry. Rows are inserted once and
// never updated or deleted.
type PointsTransaction struct {
	ID             string          `gorm:"primaryKey;size:36" json:"id"`
	UserID         string          `gorm:"size:36;not null;index" json:"user_id"`
	Type           TransactionType `gorm:"size:16;not null;index" json:"type"`
	Amount         int64           `gorm:"not null" json:"amount"`
	Experience     int64           `gorm:"not null;default:0" json:"experience"`
	Reason         string          `gorm:"size:64;not null;index" json:"reason"`
	DemoID         *string         `gorm:"size:64" json:"demo_id,omitempty"`
	SourceID       *string         `gorm:"size:36;index" json:"source_id,omitempty"`
	IdempotencyKey string          `gorm:"uniqueIndex;size:128;not null" json:"-"`
	Metadata       string          `gorm:"type:text" json:"metadata,omitempty"`
	Timestamp      time.Time       `gorm:"column:recorded_at;not null;index" json:"timestamp"`
}

// TableName specifies the table name for PointsTransaction model
func (PointsTransaction) TableName() string {
	return "points_transactions"
}

// SignedAmount is the effect of this entry on the owner's totalPoints
func (t *PointsTransaction) SignedAmount() int64 {
	return t.Type.Sign() * t.Amount
}

// Validate checks the entry before it is appended
func (t *PointsTransaction) Validate() error {
	if t.UserID == "" {
		return fmt.Errorf("transaction has no user")
	}
	if !t.Type.Valid() {
		return fmt.Errorf("unknown transaction type %q", t.Type)
	}
	if t.Amount <= 0 {
		return fmt.Errorf("transaction amount must be positive, got %d", t.Amount)
	}
	if t.Experience < 0 {
		return fmt.Errorf("transaction experience must not be negative, got %d", t.Experience)
	}
	if t.Reason == "" {
		return fmt.Errorf("transaction has no reason")
	}
	if t.IdempotencyKey == "" {
		return fmt.Errorf("transaction has no idempotency key")
	}
	return nil
}
