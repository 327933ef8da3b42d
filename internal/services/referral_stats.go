package services

import (
	"context"
	"errors"
	"time"

	"rewards-ledger/internal/metrics"
	"rewards-ledger/internal/models"
	"rewards-ledger/internal/repository"
)

// ReconcileReport summarizes one reconciliation run
type ReconcileReport struct {
	RepairsDetected  int       `json:"repairs_detected"`
	RepairsProcessed int       `json:"repairs_processed"`
	RepairsResolved  int       `json:"repairs_resolved"`
	RepairsFailed    int       `json:"repairs_failed"`
	RepairsPending   int64     `json:"repairs_pending"`
	StatsChecked     int       `json:"stats_checked"`
	StatsCorrected   int       `json:"stats_corrected"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// RecomputeReferralStats rebuilds an account's referral counters from its
// referrer bonus ledger entries and overwrites the cached values.
func (s *ReferralService) RecomputeReferralStats(ctx context.Context, accountID string) (*models.ReferralStats, error) {
	stats, _, err := s.recompute(ctx, accountID)
	return stats, err
}

func (s *ReferralService) recompute(ctx context.Context, accountID string) (*models.ReferralStats, bool, error) {
	var stats *models.ReferralStats
	changed := false

	err := s.store.Atomically(ctx, func(tx Store) error {
		acct, err := tx.GetAccountByID(ctx, accountID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		count, points, err := tx.ReferrerBonusTotals(ctx, accountID)
		if err != nil {
			return err
		}

		stats = &models.ReferralStats{
			AccountID:           accountID,
			ReferralCode:        acct.ReferralCode,
			ReferralsCount:      count,
			TotalReferralPoints: points,
			ComputedAt:          s.now().UTC(),
		}
		if acct.ReferralsCount == count && acct.TotalReferralPoints == points {
			return nil
		}
		changed = true
		s.logger.Warn().
			Str("account_id", accountID).
			Int64("cached_count", acct.ReferralsCount).
			Int64("ledger_count", count).
			Int64("cached_points", acct.TotalReferralPoints).
			Int64("ledger_points", points).
			Msg("Referral counters drifted from ledger, correcting")
		return tx.SetReferralStats(ctx, accountID, count, points)
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		metrics.StatsDrift.Inc()
	}
	s.invalidateStats(ctx, accountID)
	return stats, changed, nil
}

// GetReferralStats returns the referrer-side statistics, served from the
// cache when one is configured.
func (s *ReferralService) GetReferralStats(ctx context.Context, accountID string) (*models.ReferralStats, error) {
	if s.cache != nil {
		stats, ok, err := s.cache.Get(ctx, accountID)
		if err != nil {
			s.logger.Warn().Err(err).Str("account_id", accountID).Msg("Stats cache read failed")
		} else if ok {
			return stats, nil
		}
	}

	acct, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	stats := &models.ReferralStats{
		AccountID:           acct.ID,
		ReferralCode:        acct.ReferralCode,
		ReferralsCount:      acct.ReferralsCount,
		TotalReferralPoints: acct.TotalReferralPoints,
		ComputedAt:          s.now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, stats); err != nil {
			s.logger.Warn().Err(err).Str("account_id", accountID).Msg("Stats cache write failed")
		}
	}
	return stats, nil
}

// ProcessRepairs retries deferred referrer credits, oldest first
func (s *ReferralService) ProcessRepairs(ctx context.Context, limit int) (*ReconcileReport, error) {
	report := &ReconcileReport{StartedAt: s.now().UTC()}
	if err := s.processRepairs(ctx, limit, report); err != nil {
		return nil, err
	}
	report.FinishedAt = s.now().UTC()
	return report, nil
}

func (s *ReferralService) processRepairs(ctx context.Context, limit int, report *ReconcileReport) error {
	if limit <= 0 {
		limit = 100
	}
	repairs, err := s.store.ListPendingRepairs(ctx, limit)
	if err != nil {
		return err
	}

	for i := range repairs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		repair := &repairs[i]
		report.RepairsProcessed++

		referred, err := s.store.GetAccountByID(ctx, repair.ReferredID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if referred == nil || referred.ReferrerID == nil || *referred.ReferrerID != repair.ReferrerID {
			// nothing to credit without a committed linkage
			s.logger.Warn().Uint("repair_id", repair.ID).Str("referred_id", repair.ReferredID).Msg("Repair has no matching linkage, closing")
			if err := s.store.ResolveRepair(ctx, repair.ID, s.now().UTC()); err != nil {
				return err
			}
			report.RepairsResolved++
			continue
		}

		if _, err := s.store.GetTransactionByKey(ctx, models.ReferralKey(repair.ReferredID, "referrer")); err == nil {
			// the credit committed after the repair was recorded
			if err := s.store.ResolveRepair(ctx, repair.ID, s.now().UTC()); err != nil {
				return err
			}
			report.RepairsResolved++
			s.invalidateStats(ctx, repair.ReferrerID)
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		at := s.now().UTC()
		if referred.ReferredAt != nil {
			at = referred.ReferredAt.UTC()
		}
		if cerr := s.creditReferrer(ctx, repair.ReferrerID, repair.ReferredID, at); cerr != nil {
			report.RepairsFailed++
			if err := s.store.MarkRepairFailed(ctx, repair.ID, string(repairKind(cerr)), cerr.Error()); err != nil {
				return err
			}
			s.logger.Warn().Err(cerr).Uint("repair_id", repair.ID).Int("attempts", repair.Attempts+1).Msg("Repair attempt failed")
			continue
		}

		if err := s.store.ResolveRepair(ctx, repair.ID, s.now().UTC()); err != nil {
			return err
		}
		report.RepairsResolved++
		s.invalidateStats(ctx, repair.ReferrerID)
		s.logger.Info().Uint("repair_id", repair.ID).Str("referrer_id", repair.ReferrerID).Msg("Deferred referrer credit applied")
	}

	pending, err := s.store.CountPendingRepairs(ctx)
	if err != nil {
		return err
	}
	report.RepairsPending = pending
	return nil
}

// ReconcileAll processes pending repairs and then recomputes the counters of
// every account with referral activity.
func (s *ReferralService) ReconcileAll(ctx context.Context, repairLimit int) (*ReconcileReport, error) {
	report := &ReconcileReport{StartedAt: s.now().UTC()}
	started := time.Now()

	err := s.reconcileAll(ctx, repairLimit, report)
	report.FinishedAt = s.now().UTC()

	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.RecordReconcileRun(status, time.Since(started).Seconds(), report.RepairsPending)
	if err != nil {
		return report, err
	}

	s.logger.Info().
		Int("repairs_resolved", report.RepairsResolved).
		Int("repairs_failed", report.RepairsFailed).
		Int64("repairs_pending", report.RepairsPending).
		Int("stats_checked", report.StatsChecked).
		Int("stats_corrected", report.StatsCorrected).
		Msg("Reconciliation finished")
	return report, nil
}

func (s *ReferralService) reconcileAll(ctx context.Context, repairLimit int, report *ReconcileReport) error {
	if err := s.detectUncredited(ctx, repairLimit, report); err != nil {
		return err
	}
	if err := s.processRepairs(ctx, repairLimit, report); err != nil {
		return err
	}

	ids, err := s.store.ListReferrerIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, changed, err := s.recompute(ctx, id)
		if err != nil {
			return err
		}
		report.StatsChecked++
		if changed {
			report.StatsCorrected++
		}
	}
	return nil
}

// detectUncredited records a repair for every committed linkage whose
// referrer credit is missing and has no repair row yet.
func (s *ReferralService) detectUncredited(ctx context.Context, limit int, report *ReconcileReport) error {
	if limit <= 0 {
		limit = 100
	}
	accounts, err := s.store.ListUncreditedReferrals(ctx, limit)
	if err != nil {
		return err
	}
	for i := range accounts {
		acct := &accounts[i]
		repair := &models.ReferralRepair{
			ReferrerID:   *acct.ReferrerID,
			ReferredID:   acct.ID,
			Kind:         string(KindTransientFailure),
			LastError:    "referrer credit missing from ledger",
		}
		if referrer, err := s.store.GetAccountByID(ctx, *acct.ReferrerID); err == nil {
			repair.ReferralCode = referrer.ReferralCode
		}
		if err := s.store.RecordRepair(ctx, repair); err != nil {
			return err
		}
		report.RepairsDetected++
	}
	return nil
}

func (s *ReferralService) invalidateStats(ctx context.Context, accountID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, accountID); err != nil {
		s.logger.Warn().Err(err).Str("account_id", accountID).Msg("Stats cache invalidation failed")
	}
}
