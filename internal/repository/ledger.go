package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rewards-ledger/internal/models"
)

// The ledger has no update or delete methods. Entries are written once.

// AppendTransaction inserts an immutable ledger entry and returns its id.
// A repeated idempotency key fails with ErrDuplicate.
func (r *Repository) AppendTransaction(ctx context.Context, tx *models.PointsTransaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return "", translate(err)
	}
	return tx.ID, nil
}

// GetTransactionByKey retrieves the entry written under an idempotency key
func (r *Repository) GetTransactionByKey(ctx context.Context, key string) (*models.PointsTransaction, error) {
	var tx models.PointsTransaction
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&tx).Error; err != nil {
		return nil, translate(err)
	}
	return &tx, nil
}

// SumForUser returns earn+bonus minus spend+penalty for userID
func (r *Repository) SumForUser(ctx context.Context, userID string) (int64, error) {
	var sum int64
	row := r.db.WithContext(ctx).Model(&models.PointsTransaction{}).
		Where("user_id = ?", userID).
		Select("CAST(COALESCE(SUM(CASE WHEN type IN (?, ?) THEN amount ELSE -amount END), 0) AS BIGINT)",
			models.TransactionEarn, models.TransactionBonus).
		Row()
	if err := row.Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// ReferrerBonusTotals counts and sums the referrer bonus entries of userID
func (r *Repository) ReferrerBonusTotals(ctx context.Context, userID string) (int64, int64, error) {
	var count, points int64
	row := r.db.WithContext(ctx).Model(&models.PointsTransaction{}).
		Where("user_id = ? AND reason = ?", userID, models.ReasonReferrerBonus).
		Select("COUNT(*), CAST(COALESCE(SUM(amount), 0) AS BIGINT)").
		Row()
	if err := row.Scan(&count, &points); err != nil {
		return 0, 0, err
	}
	return count, points, nil
}

// ListForUser returns a page of ledger entries, newest first
func (r *Repository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.PointsTransaction, error) {
	var txs []models.PointsTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("recorded_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}
