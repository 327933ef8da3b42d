package models

import (
	"time"
)

// DemoStatus is the per-account state of one interactive demo
type DemoStatus string

const (
	DemoStatusLocked     DemoStatus = "locked"
	DemoStatusAvailable  DemoStatus = "available"
	DemoStatusInProgress DemoStatus = "in_progress"
	DemoStatusCompleted  DemoStatus = "completed"
)

// Valid reports whether s is one of the known demo states
func (s DemoStatus) Valid() bool {
	switch s {
	case DemoStatusLocked, DemoStatusAvailable, DemoStatusInProgress, DemoStatusCompleted:
		return true
	}
	return false
}

// Demo is a static catalog entry
type Demo struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Points       int64  `json:"points"`
	Experience   int64  `json:"experience"`
	Prerequisite string `json:"prerequisite,omitempty"`
}

// DemoCatalog lists the demos shipped with the front-end
var DemoCatalog = []Demo{
	{ID: "wallet-connect", Title: "Connect a Stellar wallet", Points: 10, Experience: 100},
	{ID: "first-payment", Title: "Send a testnet payment", Points: 20, Experience: 200, Prerequisite: "wallet-connect"},
	{ID: "trustline", Title: "Create a trustline", Points: 25, Experience: 250, Prerequisite: "first-payment"},
	{ID: "soroban-hello", Title: "Invoke a Soroban contract", Points: 40, Experience: 400, Prerequisite: "trustline"},
	{ID: "referral-share", Title: "Share your referral code", Points: 5, Experience: 50},
}

// FindDemo looks a demo up in the catalog
func FindDemo(id string) (Demo, bool) {
	for _, d := range DemoCatalog {
		if d.ID == id {
			return d, true
		}
	}
	return Demo{}, false
}

// DemoProgress stores the started/completed state of a demo for one account.
// Locked and available are derived from the catalog and never stored.
type DemoProgress struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	AccountID   string     `gorm:"size:36;not null;uniqueIndex:idx_demo_progress_account_demo" json:"account_id"`
	DemoID      string     `gorm:"size:64;not null;uniqueIndex:idx_demo_progress_account_demo" json:"demo_id"`
	Status      DemoStatus `gorm:"size:20;not null" json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (DemoProgress) TableName() string {
	return "demo_progress"
}

// DemoKey builds the idempotency key of a demo completion grant
func DemoKey(demoID, accountID string) string {
	return "demo:" + demoID + ":" + accountID
}
