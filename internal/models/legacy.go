package models

import (
	"fmt"
	"strings"
	"time"
)

// LegacyProfile is the nested profile block of exported account documents
type LegacyProfile struct {
	Level       *int   `json:"level,omitempty"`
	Experience  *int64 `json:"experience,omitempty"`
	TotalPoints *int64 `json:"totalPoints,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// LegacyAccountDocument is an account as exported from the previous document
// store. Older documents carry level and totalPoints at the root, newer ones
// inside profile, and some carry both.
type LegacyAccountDocument struct {
	ID                  string         `json:"id"`
	WalletAddress       string         `json:"walletAddress"`
	Network             string         `json:"network,omitempty"`
	Level               *int           `json:"level,omitempty"`
	TotalPoints         *int64         `json:"totalPoints,omitempty"`
	Experience          *int64         `json:"experience,omitempty"`
	Profile             *LegacyProfile `json:"profile,omitempty"`
	ReferralCode        string         `json:"referralCode,omitempty"`
	ReferredBy          string         `json:"referredBy,omitempty"`
	ReferredAt          *time.Time     `json:"referredAt,omitempty"`
	ReferralsCount      int64          `json:"referralsCount,omitempty"`
	TotalReferralPoints int64          `json:"totalReferralPoints,omitempty"`
	CreatedAt           *time.Time     `json:"createdAt,omitempty"`
}

// Normalize folds the legacy shape into an Account. Profile values win over
// root values for level and experience; for points the larger value wins so
// that no credited points are lost. A half-set referral linkage is dropped.
func (d *LegacyAccountDocument) Normalize() (*Account, error) {
	wallet := strings.TrimSpace(d.WalletAddress)
	if wallet == "" {
		return nil, fmt.Errorf("legacy document %q has no wallet address", d.ID)
	}

	acct := &Account{
		ID:                  d.ID,
		WalletAddress:       wallet,
		Network:             d.Network,
		Level:               1,
		ReferralCode:        strings.TrimSpace(d.ReferralCode),
		ReferralsCount:      nonNegative(d.ReferralsCount),
		TotalReferralPoints: nonNegative(d.TotalReferralPoints),
		Active:              true,
		Version:             1,
	}
	if acct.Network == "" {
		acct.Network = "testnet"
	}

	if d.Level != nil {
		acct.Level = *d.Level
	}
	if d.Experience != nil {
		acct.Experience = *d.Experience
	}
	if d.TotalPoints != nil {
		acct.TotalPoints = *d.TotalPoints
	}

	if p := d.Profile; p != nil {
		if p.Level != nil {
			acct.Level = *p.Level
		}
		if p.Experience != nil {
			acct.Experience = *p.Experience
		}
		if p.TotalPoints != nil && *p.TotalPoints > acct.TotalPoints {
			acct.TotalPoints = *p.TotalPoints
		}
		acct.DisplayName = p.DisplayName
	}

	acct.Experience = nonNegative(acct.Experience)
	acct.TotalPoints = nonNegative(acct.TotalPoints)
	if acct.Level < 1 {
		acct.Level = 1
	}
	if derived := LevelForExperience(acct.Experience); derived > acct.Level {
		acct.Level = derived
	}

	if d.ReferredBy != "" && d.ReferredAt != nil {
		by := d.ReferredBy
		at := *d.ReferredAt
		acct.ReferredBy = &by
		acct.ReferredAt = &at
	}
	if d.CreatedAt != nil {
		acct.CreatedAt = *d.CreatedAt
	}

	return acct, nil
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
