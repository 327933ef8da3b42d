package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"rewards-ledger/internal/logger"
	"rewards-ledger/internal/metrics"
	"rewards-ledger/internal/models"
	"rewards-ledger/internal/repository"
)

var (
	ErrDemoNotFound      = errors.New("demo not found")
	ErrDemoLocked        = errors.New("demo prerequisite not completed")
	ErrDemoAlreadyActive = errors.New("demo already started")
	ErrDemoNotInProgress = errors.New("demo is not in progress")
)

// DemoView is a catalog entry with the account's derived status
type DemoView struct {
	models.Demo
	Status      models.DemoStatus `json:"status"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// DemoService tracks demo progress and pays out completion rewards
type DemoService struct {
	store       Store
	maxAttempts int
	logger      zerolog.Logger
}

func NewDemoService(store Store, maxAttempts int, log zerolog.Logger) *DemoService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &DemoService{
		store:       store,
		maxAttempts: maxAttempts,
		logger:      logger.WithComponent(log, "demos"),
	}
}

// List returns the whole catalog with per-account status
func (s *DemoService) List(ctx context.Context, accountID string) ([]DemoView, error) {
	progress, err := s.progressByDemo(ctx, accountID)
	if err != nil {
		return nil, err
	}

	views := make([]DemoView, 0, len(models.DemoCatalog))
	for _, demo := range models.DemoCatalog {
		view := DemoView{Demo: demo, Status: deriveStatus(demo, progress)}
		if p, ok := progress[demo.ID]; ok {
			started := p.StartedAt
			view.StartedAt = &started
			view.CompletedAt = p.CompletedAt
		}
		views = append(views, view)
	}
	return views, nil
}

// Start moves an available demo to in_progress
func (s *DemoService) Start(ctx context.Context, accountID, demoID string) error {
	demo, ok := models.FindDemo(demoID)
	if !ok {
		return ErrDemoNotFound
	}
	if _, err := s.store.GetAccountByID(ctx, accountID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	progress, err := s.progressByDemo(ctx, accountID)
	if err != nil {
		return err
	}
	switch deriveStatus(demo, progress) {
	case models.DemoStatusLocked:
		return ErrDemoLocked
	case models.DemoStatusInProgress, models.DemoStatusCompleted:
		return ErrDemoAlreadyActive
	}

	if err := s.store.StartDemo(ctx, accountID, demoID, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrDemoAlreadyActive
		}
		return err
	}
	s.logger.Info().Str("account_id", accountID).Str("demo_id", demoID).Msg("Demo started")
	return nil
}

// Complete finishes an in-progress demo and grants its reward once
func (s *DemoService) Complete(ctx context.Context, accountID, demoID string) (*models.PointsTransaction, error) {
	demo, ok := models.FindDemo(demoID)
	if !ok {
		return nil, ErrDemoNotFound
	}

	var entry *models.PointsTransaction
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.store.Atomically(ctx, func(tx Store) error {
			now := time.Now().UTC()
			if err := tx.CompleteDemo(ctx, accountID, demoID, now); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return ErrDemoNotInProgress
				}
				return err
			}
			id := demo.ID
			var gerr error
			entry, gerr = applyGrant(ctx, tx, Grant{
				AccountID:  accountID,
				Type:       models.TransactionEarn,
				Amount:     demo.Points,
				Experience: demo.Experience,
				Reason:     "demo_completed",
				Key:        models.DemoKey(demo.ID, accountID),
				DemoID:     &id,
			}, now)
			return gerr
		})
		if !errors.Is(err, repository.ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	metrics.RecordLedgerEntry(string(entry.Type), entry.Reason)
	s.logger.Info().
		Str("account_id", accountID).
		Str("demo_id", demoID).
		Int64("points", demo.Points).
		Msg("Demo completed")
	return entry, nil
}

func (s *DemoService) progressByDemo(ctx context.Context, accountID string) (map[string]models.DemoProgress, error) {
	rows, err := s.store.ListDemoProgress(ctx, accountID)
	if err != nil {
		return nil, err
	}
	progress := make(map[string]models.DemoProgress, len(rows))
	for _, p := range rows {
		progress[p.DemoID] = p
	}
	return progress, nil
}

func deriveStatus(demo models.Demo, progress map[string]models.DemoProgress) models.DemoStatus {
	if p, ok := progress[demo.ID]; ok {
		return p.Status
	}
	if demo.Prerequisite != "" {
		if pre, ok := progress[demo.Prerequisite]; !ok || pre.Status != models.DemoStatusCompleted {
			return models.DemoStatusLocked
		}
	}
	return models.DemoStatusAvailable
}
