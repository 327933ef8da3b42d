package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rewards-ledger/internal/database"
	"rewards-ledger/internal/models"
	"rewards-ledger/internal/repository"
)

func setupBenchmarkStore(b *testing.B) Store {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		b.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		b.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	b.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.MigrateModels(db); err != nil {
		b.Fatalf("failed to migrate database: %v", err)
	}
	return NewStore(repository.NewRepository(db))
}

// seedReferrals creates a referrer with referralCount credited referrals
func seedReferrals(b *testing.B, store Store, service *ReferralService, referralCount int) string {
	ctx := context.Background()
	referrer := &models.Account{ID: "referrer", WalletAddress: "WALLET-referrer", ReferralCode: "REFR0000", Level: 1, Active: true}
	if err := store.CreateAccount(ctx, referrer); err != nil {
		b.Fatalf("failed to create referrer: %v", err)
	}
	for i := 0; i < referralCount; i++ {
		id := fmt.Sprintf("seed-%d", i)
		acct := &models.Account{ID: id, WalletAddress: "WALLET-" + id, ReferralCode: fmt.Sprintf("S%07d", i), Level: 1, Active: true}
		if err := store.CreateAccount(ctx, acct); err != nil {
			b.Fatalf("failed to create account: %v", err)
		}
		if _, err := service.ApplyReferralCode(ctx, id, referrer.ReferralCode); err != nil {
			b.Fatalf("failed to apply code: %v", err)
		}
	}
	return referrer.ID
}

func BenchmarkApplyReferralCode(b *testing.B) {
	store := setupBenchmarkStore(b)
	service := newTestReferralService(store, nil)
	seedReferrals(b, store, service, 0)
	ctx := context.Background()

	ids := make([]string, b.N)
	for i := 0; i < b.N; i++ {
		ids[i] = fmt.Sprintf("bench-%d", i)
		acct := &models.Account{ID: ids[i], WalletAddress: "WALLET-" + ids[i], ReferralCode: fmt.Sprintf("B%07d", i), Level: 1, Active: true}
		if err := store.CreateAccount(ctx, acct); err != nil {
			b.Fatalf("failed to create account: %v", err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := service.ApplyReferralCode(ctx, ids[i], "REFR0000"); err != nil {
			b.Fatalf("apply failed: %v", err)
		}
	}
}

func BenchmarkRecomputeReferralStats(b *testing.B) {
	store := setupBenchmarkStore(b)
	service := newTestReferralService(store, nil)
	referrerID := seedReferrals(b, store, service, 200)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := service.RecomputeReferralStats(ctx, referrerID); err != nil {
			b.Fatalf("recompute failed: %v", err)
		}
	}
}
