package repository

import (
	"context"
	"time"

	"rewards-ledger/internal/models"
)

// ListDemoProgress returns the stored demo progress of an account
func (r *Repository) ListDemoProgress(ctx context.Context, accountID string) ([]models.DemoProgress, error) {
	var progress []models.DemoProgress
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Find(&progress).Error; err != nil {
		return nil, err
	}
	return progress, nil
}

// StartDemo stores an in-progress row; ErrDuplicate if one exists
func (r *Repository) StartDemo(ctx context.Context, accountID, demoID string, at time.Time) error {
	progress := models.DemoProgress{
		AccountID: accountID,
		DemoID:    demoID,
		Status:    models.DemoStatusInProgress,
		StartedAt: at,
	}
	return translate(r.db.WithContext(ctx).Create(&progress).Error)
}

// CompleteDemo moves an in-progress demo to completed. ErrConflict means the
// demo was not in progress.
func (r *Repository) CompleteDemo(ctx context.Context, accountID, demoID string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.DemoProgress{}).
		Where("account_id = ? AND demo_id = ? AND status = ?", accountID, demoID, models.DemoStatusInProgress).
		Updates(map[string]interface{}{
			"status":       models.DemoStatusCompleted,
			"completed_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
