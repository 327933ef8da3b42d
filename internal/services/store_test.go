package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rewards-ledger/internal/database"
	"rewards-ledger/internal/models"
	"rewards-ledger/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// A named in-memory database behind a single connection is shared by every
	// query of the test and serializes concurrent transactions.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.MigrateModels(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

func setupTestStore(t *testing.T) Store {
	t.Helper()
	return NewStore(repository.NewRepository(setupTestDB(t)))
}

func createAccount(t *testing.T, store Store, id, code string) *models.Account {
	t.Helper()
	acct := &models.Account{
		ID:            id,
		WalletAddress: "WALLET-" + id,
		Network:       "testnet",
		Level:         1,
		ReferralCode:  code,
		Active:        true,
	}
	require.NoError(t, store.CreateAccount(context.Background(), acct))
	return acct
}

func reload(t *testing.T, store Store, id string) *models.Account {
	t.Helper()
	acct, err := store.GetAccountByID(context.Background(), id)
	require.NoError(t, err)
	return acct
}

var errInjected = errors.New("injected store failure")

// faults configures faultStore behaviour. Counters are shared by the store
// and every transaction it opens.
type faults struct {
	mu                  sync.Mutex
	lookups             int
	updates             int
	conflictOnUpdate    bool
	hangLookups         bool
	failIncrements      int
	failRecordRepair    bool
	deactivateAfterLink string
	linked              bool
}

type faultStore struct {
	Store
	f *faults
}

func newFaultStore(inner Store) *faultStore {
	return &faultStore{Store: inner, f: &faults{}}
}

func (s *faultStore) Atomically(ctx context.Context, fn func(tx Store) error) error {
	return s.Store.Atomically(ctx, func(tx Store) error {
		return fn(&faultStore{Store: tx, f: s.f})
	})
}

func (s *faultStore) GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	s.f.mu.Lock()
	s.f.lookups++
	hang := s.f.hangLookups
	s.f.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.Store.GetAccountByReferralCode(ctx, code)
}

func (s *faultStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	s.f.mu.Lock()
	s.f.lookups++
	hide := s.f.linked && id == s.f.deactivateAfterLink
	s.f.mu.Unlock()

	acct, err := s.Store.GetAccountByID(ctx, id)
	if err == nil && hide {
		acct.Active = false
	}
	return acct, err
}

func (s *faultStore) UpdateAccount(ctx context.Context, id string, expectedVersion int64, fields map[string]interface{}) error {
	s.f.mu.Lock()
	s.f.updates++
	conflict := s.f.conflictOnUpdate
	s.f.mu.Unlock()
	if conflict {
		return repository.ErrConflict
	}
	return s.Store.UpdateAccount(ctx, id, expectedVersion, fields)
}

func (s *faultStore) LinkReferrer(ctx context.Context, id, referrerWallet, referrerID string, at time.Time) error {
	if err := s.Store.LinkReferrer(ctx, id, referrerWallet, referrerID, at); err != nil {
		return err
	}
	s.f.mu.Lock()
	s.f.linked = true
	s.f.mu.Unlock()
	return nil
}

func (s *faultStore) IncrementReferralStats(ctx context.Context, id string, count, points int64) error {
	s.f.mu.Lock()
	fail := s.f.failIncrements > 0
	if fail {
		s.f.failIncrements--
	}
	s.f.mu.Unlock()
	if fail {
		return errInjected
	}
	return s.Store.IncrementReferralStats(ctx, id, count, points)
}

func (s *faultStore) RecordRepair(ctx context.Context, repair *models.ReferralRepair) error {
	s.f.mu.Lock()
	fail := s.f.failRecordRepair
	s.f.mu.Unlock()
	if fail {
		return errInjected
	}
	return s.Store.RecordRepair(ctx, repair)
}

// memoryStatsCache is an in-process StatsCache
type memoryStatsCache struct {
	mu          sync.Mutex
	entries     map[string]models.ReferralStats
	hits        int
	invalidated []string
}

func newMemoryStatsCache() *memoryStatsCache {
	return &memoryStatsCache{entries: map[string]models.ReferralStats{}}
}

func (c *memoryStatsCache) Get(_ context.Context, accountID string) (*models.ReferralStats, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats, ok := c.entries[accountID]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &stats, true, nil
}

func (c *memoryStatsCache) Set(_ context.Context, stats *models.ReferralStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[stats.AccountID] = *stats
	return nil
}

func (c *memoryStatsCache) Invalidate(_ context.Context, accountID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, accountID)
	c.invalidated = append(c.invalidated, accountID)
	return nil
}
