package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"rewards-ledger/internal/models"
)

// columns that may never be changed through UpdateAccount
var immutableColumns = map[string]bool{
	"id":             true,
	"wallet_address": true,
	"referral_code":  true,
	"referred_by":    true,
	"referrer_id":    true,
	"referred_at":    true,
	"version":        true,

	"referral_imported": true,
}

// CreateAccount inserts a new account
func (r *Repository) CreateAccount(ctx context.Context, acct *models.Account) error {
	if acct.Version == 0 {
		acct.Version = 1
	}
	return translate(r.db.WithContext(ctx).Create(acct).Error)
}

// GetAccountByID retrieves an account by ID
func (r *Repository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	var acct models.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&acct).Error; err != nil {
		return nil, translate(err)
	}
	return &acct, nil
}

// GetAccountByWallet retrieves an account by wallet address
func (r *Repository) GetAccountByWallet(ctx context.Context, wallet string) (*models.Account, error) {
	var acct models.Account
	if err := r.db.WithContext(ctx).Where("wallet_address = ?", wallet).First(&acct).Error; err != nil {
		return nil, translate(err)
	}
	return &acct, nil
}

// GetAccountByReferralCode retrieves the account owning a referral code
func (r *Repository) GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	var acct models.Account
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&acct).Error; err != nil {
		return nil, translate(err)
	}
	return &acct, nil
}

// UpdateAccount applies fields to the account if its version still equals
// expectedVersion, and bumps the version.
func (r *Repository) UpdateAccount(ctx context.Context, id string, expectedVersion int64, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		if immutableColumns[k] {
			return fmt.Errorf("%w: %s", ErrImmutableField, k)
		}
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return r.missingOr(ctx, id, ErrConflict)
	}
	return nil
}

// LinkReferrer sets the referral linkage of an account in one conditional
// write. It fails with ErrAlreadyLinked if referred_by is already set.
func (r *Repository) LinkReferrer(ctx context.Context, id, referrerWallet, referrerID string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND referred_by IS NULL", id).
		Updates(map[string]interface{}{
			"referred_by": referrerWallet,
			"referrer_id": referrerID,
			"referred_at": at,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  at,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return r.missingOr(ctx, id, ErrAlreadyLinked)
	}
	return nil
}

// IncrementReferralStats adds to the cached referral counters
func (r *Repository) IncrementReferralStats(ctx context.Context, id string, count, points int64) error {
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"referrals_count":       gorm.Expr("referrals_count + ?", count),
			"total_referral_points": gorm.Expr("total_referral_points + ?", points),
			"version":               gorm.Expr("version + 1"),
			"updated_at":            time.Now().UTC(),
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetReferralStats overwrites the cached referral counters
func (r *Repository) SetReferralStats(ctx context.Context, id string, count, points int64) error {
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"referrals_count":       count,
			"total_referral_points": points,
			"version":               gorm.Expr("version + 1"),
			"updated_at":            time.Now().UTC(),
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListReferredAccounts returns accounts referred by referrerID, newest first
func (r *Repository) ListReferredAccounts(ctx context.Context, referrerID string) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("referred_at DESC").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListReferrerIDs returns every account that has referral counters or
// referrer ledger entries, so a full reconciliation can visit them all.
func (r *Repository) ListReferrerIDs(ctx context.Context) ([]string, error) {
	credited := r.db.Model(&models.PointsTransaction{}).
		Select("user_id").
		Where("reason = ?", models.ReasonReferrerBonus)

	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("referrals_count > 0 OR total_referral_points > 0 OR id IN (?)", credited).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Repository) missingOr(ctx context.Context, id string, err error) error {
	var count int64
	if e := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Count(&count).Error; e != nil {
		return e
	}
	if count == 0 {
		return ErrNotFound
	}
	return err
}

// ListUncreditedReferrals returns referred accounts whose referrer has no
// referrer bonus entry for them and no repair row yet. Imported linkages are
// skipped.
func (r *Repository) ListUncreditedReferrals(ctx context.Context, limit int) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.WithContext(ctx).
		Where("referrer_id IS NOT NULL").
		Where("referral_imported = ?", false).
		Where("NOT EXISTS (?)",
			r.db.Model(&models.ReferralRepair{}).
				Select("1").
				Where("referral_repairs.referred_id = accounts.id"),
		).
		Where("NOT EXISTS (?)",
			r.db.Model(&models.PointsTransaction{}).
				Select("1").
				Where("points_transactions.user_id = accounts.referrer_id").
				Where("points_transactions.reason = ?", models.ReasonReferrerBonus).
				Where("points_transactions.source_id = accounts.id"),
		).
		Order("referred_at ASC").
		Limit(limit).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
