package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"rewards-ledger/internal/services"
)

// Reconciler repairs deferred referrer credits and counter drift
type Reconciler interface {
	ReconcileAll(ctx context.Context, repairLimit int) (*services.ReconcileReport, error)
}

// ReconcileJob runs reconciliation on a fixed interval
type ReconcileJob struct {
	reconciler Reconciler
	interval   time.Duration
	batchSize  int
	timeout    time.Duration
	scheduler  gocron.Scheduler
	logger     zerolog.Logger
}

// NewReconcileJob creates a new reconciliation job
func NewReconcileJob(reconciler Reconciler, interval time.Duration, batchSize int, logger zerolog.Logger) *ReconcileJob {
	return &ReconcileJob{
		reconciler: reconciler,
		interval:   interval,
		batchSize:  batchSize,
		timeout:    interval,
		logger:     logger.With().Str("job", "reconcile").Logger(),
	}
}

// Start schedules the job; the first run starts immediately
func (j *ReconcileJob) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(j.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
			defer cancel()
			_ = j.RunOnce(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}

	scheduler.Start()
	j.scheduler = scheduler
	j.logger.Info().Dur("interval", j.interval).Int("batch_size", j.batchSize).Msg("Reconciliation job started")
	return nil
}

// RunOnce performs a single reconciliation run
func (j *ReconcileJob) RunOnce(ctx context.Context) error {
	report, err := j.reconciler.ReconcileAll(ctx, j.batchSize)
	if err != nil {
		j.logger.Error().Err(err).Msg("Reconciliation run failed")
		return err
	}
	if report.RepairsPending > 0 {
		j.logger.Warn().Int64("repairs_pending", report.RepairsPending).Msg("Referrer credits still pending after reconciliation")
	}
	return nil
}

// Stop shuts the scheduler down and waits for a running job
func (j *ReconcileJob) Stop() error {
	if j.scheduler == nil {
		return nil
	}
	if err := j.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	j.logger.Info().Msg("Reconciliation job stopped")
	return nil
}
