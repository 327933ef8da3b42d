package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rewards-ledger/internal/models"
)

// RecordRepair stores a pending referrer credit. Recording the same referred
// account twice refreshes the existing row.
func (r *Repository) RecordRepair(ctx context.Context, repair *models.ReferralRepair) error {
	repair.Status = models.RepairStatusPending
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "referred_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"kind":        repair.Kind,
			"last_error":  repair.LastError,
			"status":      models.RepairStatusPending,
			"resolved_at": nil,
			"updated_at":  time.Now().UTC(),
		}),
	}).Create(repair).Error
}

// ListPendingRepairs returns the oldest pending repairs
func (r *Repository) ListPendingRepairs(ctx context.Context, limit int) ([]models.ReferralRepair, error) {
	var repairs []models.ReferralRepair
	err := r.db.WithContext(ctx).
		Where("status = ?", models.RepairStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&repairs).Error
	if err != nil {
		return nil, err
	}
	return repairs, nil
}

// ResolveRepair marks a repair as done
func (r *Repository) ResolveRepair(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.ReferralRepair{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.RepairStatusResolved,
			"attempts":    gorm.Expr("attempts + 1"),
			"resolved_at": at,
			"updated_at":  at,
		}).Error
}

// MarkRepairFailed records another failed attempt
func (r *Repository) MarkRepairFailed(ctx context.Context, id uint, kind, lastError string) error {
	return r.db.WithContext(ctx).Model(&models.ReferralRepair{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"kind":       kind,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastError,
			"updated_at": time.Now().UTC(),
		}).Error
}

// CountPendingRepairs returns the number of unresolved repairs
func (r *Repository) CountPendingRepairs(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ReferralRepair{}).
		Where("status = ?", models.RepairStatusPending).
		Count(&count).Error
	return count, err
}
