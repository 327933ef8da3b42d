package models

import (
	"time"
)

// Referral reward amounts and code format. These values are shared with the
// front-end and must not change.
const (
	ReferralCodeLength  = 8
	ReferralCodePattern = "^[A-Z0-9]{8}$"

	ReferrerPoints int64 = 50
	ReferrerXP     int64 = 500
	ReferredPoints int64 = 50
	ReferredXP     int64 = 500
)

// Ledger reasons written by the referral flow
const (
	ReasonReferrerBonus = "referral_referrer_bonus"
	ReasonReferredBonus = "referral_referred_bonus"
)

// ReferralStatus classifies an account's linkage state
type ReferralStatus string

const (
	ReferralStatusActivated ReferralStatus = "activated"
	ReferralStatusPending   ReferralStatus = "pending"
)

// ReferralStats is the referrer-side view consumed by the UI
type ReferralStats struct {
	AccountID           string    `json:"account_id"`
	ReferralCode        string    `json:"referral_code"`
	ReferralsCount      int64     `json:"referrals_count"`
	TotalReferralPoints int64     `json:"total_referral_points"`
	ComputedAt          time.Time `json:"computed_at"`
}

// RepairStatus tracks a referrer credit that could not be applied inline
type RepairStatus string

const (
	RepairStatusPending  RepairStatus = "pending"
	RepairStatusResolved RepairStatus = "resolved"
)

// ReferralRepair records a committed referral whose referrer-side credit failed.
// The reconciliation run retries it until the credit lands.
type ReferralRepair struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	ReferrerID   string       `gorm:"size:36;not null;index" json:"referrer_id"`
	ReferredID   string       `gorm:"size:36;not null;uniqueIndex" json:"referred_id"`
	ReferralCode string       `gorm:"size:8;not null" json:"referral_code"`
	Kind         string       `gorm:"size:32;not null" json:"kind"`
	Status       RepairStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	Attempts     int          `gorm:"not null;default:0" json:"attempts"`
	LastError    string       `gorm:"type:text" json:"last_error"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	ResolvedAt   *time.Time   `json:"resolved_at,omitempty"`
}

func (ReferralRepair) TableName() string {
	return "referral_repairs"
}

// ReferralKey builds the idempotency key of one side of a referral application
func ReferralKey(referredID, side string) string {
	return "referral:" + referredID + ":" + side
}
