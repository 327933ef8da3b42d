package services

import (
	"context"
	"time"

	"rewards-ledger/internal/models"
	"rewards-ledger/internal/repository"
)

// AccountStore is the authoritative record of accounts and their referral linkage
type AccountStore interface {
	CreateAccount(ctx context.Context, acct *models.Account) error
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	GetAccountByWallet(ctx context.Context, wallet string) (*models.Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, error)
	UpdateAccount(ctx context.Context, id string, expectedVersion int64, fields map[string]interface{}) error
	LinkReferrer(ctx context.Context, id, referrerWallet, referrerID string, at time.Time) error
	IncrementReferralStats(ctx context.Context, id string, count, points int64) error
	SetReferralStats(ctx context.Context, id string, count, points int64) error
	ListReferredAccounts(ctx context.Context, referrerID string) ([]models.Account, error)
	ListReferrerIDs(ctx context.Context) ([]string, error)
	ListUncreditedReferrals(ctx context.Context, limit int) ([]models.Account, error)
}

// Ledger is the append-only points log
type Ledger interface {
	AppendTransaction(ctx context.Context, tx *models.PointsTransaction) (string, error)
	GetTransactionByKey(ctx context.Context, key string) (*models.PointsTransaction, error)
	SumForUser(ctx context.Context, userID string) (int64, error)
	ReferrerBonusTotals(ctx context.Context, userID string) (int64, int64, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.PointsTransaction, error)
}

// RepairStore keeps referrer credits that are waiting for reconciliation
type RepairStore interface {
	RecordRepair(ctx context.Context, repair *models.ReferralRepair) error
	ListPendingRepairs(ctx context.Context, limit int) ([]models.ReferralRepair, error)
	ResolveRepair(ctx context.Context, id uint, at time.Time) error
	MarkRepairFailed(ctx context.Context, id uint, kind, lastError string) error
	CountPendingRepairs(ctx context.Context) (int64, error)
}

// DemoStore keeps per-account demo progress
type DemoStore interface {
	ListDemoProgress(ctx context.Context, accountID string) ([]models.DemoProgress, error)
	StartDemo(ctx context.Context, accountID, demoID string, at time.Time) error
	CompleteDemo(ctx context.Context, accountID, demoID string, at time.Time) error
}

// Store groups every backend operation the services need. Atomically runs fn
// against a Store bound to one transaction.
type Store interface {
	AccountStore
	Ledger
	RepairStore
	DemoStore
	Atomically(ctx context.Context, fn func(tx Store) error) error
}

type repoStore struct {
	*repository.Repository
}

// NewStore adapts the gorm repository to the Store interface
func NewStore(repo *repository.Repository) Store {
	return repoStore{Repository: repo}
}

func (s repoStore) Atomically(ctx context.Context, fn func(tx Store) error) error {
	return s.Repository.Atomically(ctx, func(tx *repository.Repository) error {
		return fn(repoStore{Repository: tx})
	})
}
