package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"rewards-ledger/internal/logger"
	"rewards-ledger/internal/metrics"
	"rewards-ledger/internal/models"
	"rewards-ledger/internal/repository"
)

var (
	// ErrInsufficientPoints is returned when a debit would take totalPoints below zero
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrAlreadyGranted is returned when the idempotency key was already used
	ErrAlreadyGranted = errors.New("grant already recorded")
	// ErrAccountNotFound is returned when the addressed account does not exist
	ErrAccountNotFound = errors.New("account not found")
)

// Grant describes one ledger entry together with its effect on the account
type Grant struct {
	AccountID  string
	Type       models.TransactionType
	Amount     int64
	Experience int64
	Reason     string
	Key        string
	DemoID     *string
	SourceID   *string
	Metadata   map[string]interface{}
}

// PointsReconciliation compares an account's cached total with its ledger
type PointsReconciliation struct {
	AccountID   string `json:"account_id"`
	TotalPoints int64  `json:"total_points"`
	LedgerSum   int64  `json:"ledger_sum"`
	Drift       int64  `json:"drift"`
	Consistent  bool   `json:"consistent"`
}

// PointsService writes grants to the ledger and keeps account totals in step
type PointsService struct {
	store       Store
	maxAttempts int
	logger      zerolog.Logger
}

func NewPointsService(store Store, maxAttempts int, log zerolog.Logger) *PointsService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &PointsService{
		store:       store,
		maxAttempts: maxAttempts,
		logger:      logger.WithComponent(log, "points"),
	}
}

// Grant appends the entry and updates the account in one transaction,
// retrying on version conflicts.
func (s *PointsService) Grant(ctx context.Context, g Grant) (*models.PointsTransaction, error) {
	var entry *models.PointsTransaction
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.store.Atomically(ctx, func(tx Store) error {
			var gerr error
			entry, gerr = applyGrant(ctx, tx, g, time.Now().UTC())
			return gerr
		})
		if !errors.Is(err, repository.ErrConflict) {
			break
		}
		s.logger.Debug().Str("account_id", g.AccountID).Int("attempt", attempt).Msg("Grant hit a version conflict, retrying")
	}
	if err != nil {
		return nil, err
	}

	metrics.RecordLedgerEntry(string(entry.Type), entry.Reason)
	s.logger.Info().
		Str("account_id", g.AccountID).
		Str("type", string(g.Type)).
		Int64("amount", g.Amount).
		Str("reason", g.Reason).
		Msg("Points granted")
	return entry, nil
}

// History returns a page of the account's ledger, newest first
func (s *PointsService) History(ctx context.Context, accountID string, limit, offset int) ([]models.PointsTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListForUser(ctx, accountID, limit, offset)
}

// SumForUser returns the ledger balance of an account
func (s *PointsService) SumForUser(ctx context.Context, accountID string) (int64, error) {
	return s.store.SumForUser(ctx, accountID)
}

// Reconcile audits an account's totalPoints against its ledger balance
func (s *PointsService) Reconcile(ctx context.Context, accountID string) (*PointsReconciliation, error) {
	acct, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	sum, err := s.store.SumForUser(ctx, accountID)
	if err != nil {
		return nil, err
	}

	rec := &PointsReconciliation{
		AccountID:   accountID,
		TotalPoints: acct.TotalPoints,
		LedgerSum:   sum,
		Drift:       acct.TotalPoints - sum,
	}
	rec.Consistent = rec.Drift == 0
	if !rec.Consistent {
		s.logger.Warn().Str("account_id", accountID).Int64("drift", rec.Drift).Msg("Account total differs from ledger")
	}
	return rec, nil
}

// applyGrant must run inside a transaction. It appends the ledger entry and
// applies it to the account with a version-checked update.
func applyGrant(ctx context.Context, tx Store, g Grant, now time.Time) (*models.PointsTransaction, error) {
	acct, err := tx.GetAccountByID(ctx, g.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	entry := &models.PointsTransaction{
		UserID:         g.AccountID,
		Type:           g.Type,
		Amount:         g.Amount,
		Experience:     g.Experience,
		Reason:         g.Reason,
		DemoID:         g.DemoID,
		SourceID:       g.SourceID,
		IdempotencyKey: g.Key,
		Timestamp:      now,
	}
	if len(g.Metadata) > 0 {
		raw, err := json.Marshal(g.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
		entry.Metadata = string(raw)
	}

	total := acct.TotalPoints + entry.SignedAmount()
	if total < 0 {
		return nil, ErrInsufficientPoints
	}

	if _, err := tx.AppendTransaction(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyGranted
		}
		return nil, err
	}

	xp := acct.Experience + g.Experience
	level := acct.Level
	if derived := models.LevelForExperience(xp); derived > level {
		level = derived
	}

	err = tx.UpdateAccount(ctx, acct.ID, acct.Version, map[string]interface{}{
		"total_points": total,
		"experience":   xp,
		"level":        level,
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}
