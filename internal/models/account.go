package models

import (
	"time"
)

// Account represents one wallet identity with its progression and referral linkage
type Account struct {
	ID            string `gorm:"primaryKey;size:36" json:"id"`
	WalletAddress string `gorm:"uniqueIndex;size:56;not null" json:"wallet_address"`
	Network       string `gorm:"size:20;not null;default:testnet" json:"network"`
	DisplayName   string `gorm:"size:64" json:"display_name"`

	Level       int   `gorm:"not null;default:1" json:"level"`
	Experience  int64 `gorm:"not null;default:0" json:"experience"`
	TotalPoints int64 `gorm:"not null;default:0" json:"total_points"`

	// ReferralCode is issued once at creation and never changes
	ReferralCode string     `gorm:"uniqueIndex;size:8;not null" json:"referral_code"`
	ReferredBy   *string    `gorm:"size:56" json:"referred_by,omitempty"` // referrer's wallet address
	ReferrerID   *string    `gorm:"index;size:36" json:"referrer_id,omitempty"`
	ReferredAt   *time.Time `json:"referred_at,omitempty"`
	// ReferralImported marks a linkage carried over from the legacy store.
	// Its rewards are already inside the imported opening balances.
	ReferralImported bool `gorm:"not null;default:false" json:"-"`

	ReferralsCount      int64 `gorm:"not null;default:0" json:"referrals_count"`
	TotalReferralPoints int64 `gorm:"not null;default:0" json:"total_referral_points"`

	Active    bool      `gorm:"not null;default:true" json:"active"`
	Version   int64     `gorm:"not null;default:1" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Account model
func (Account) TableName() string {
	return "accounts"
}

// IsReferred reports whether a referrer has been linked to this account
func (a *Account) IsReferred() bool {
	return a.ReferredBy != nil
}

// ReferralStatus returns the linkage state exposed to clients
func (a *Account) ReferralStatus() ReferralStatus {
	if a.IsReferred() {
		return ReferralStatusActivated
	}
	return ReferralStatusPending
}

// PublicName is the name shown to users who redeemed this account's code
func (a *Account) PublicName() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	if len(a.WalletAddress) > 10 {
		return a.WalletAddress[:4] + "..." + a.WalletAddress[len(a.WalletAddress)-4:]
	}
	return a.WalletAddress
}
