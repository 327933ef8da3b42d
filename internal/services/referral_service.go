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
	"rewards-ledger/internal/utils"
)

var (
	errReferrerInactive = errors.New("referrer account is inactive")
	errReferrerMissing  = errors.New("referrer account no longer exists")
)

// StatsCache stores the referrer-side statistics read by the UI
type StatsCache interface {
	Get(ctx context.Context, accountID string) (*models.ReferralStats, bool, error)
	Set(ctx context.Context, stats *models.ReferralStats) error
	Invalidate(ctx context.Context, accountID string) error
}

// ReferralConfig bounds one ApplyReferralCode call
type ReferralConfig struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
}

// ApplyResult is returned to the client after a referral application
type ApplyResult struct {
	Success               bool   `json:"success"`
	BonusEarned           int64  `json:"bonusEarned,omitempty"`
	ReferrerName          string `json:"referrerName,omitempty"`
	ReferralCode          string `json:"referralCode,omitempty"`
	ErrorKind             string `json:"errorKind,omitempty"`
	Message               string `json:"message,omitempty"`
	ReferrerCreditPending bool   `json:"referrerCreditPending,omitempty"`
}

// ResultFromError converts an ApplyReferralCode error into the client result
func ResultFromError(err error) *ApplyResult {
	var re *ReferralError
	if !errors.As(err, &re) {
		re = newReferralError(KindTransientFailure, err)
	}
	return &ApplyResult{
		Success:   false,
		ErrorKind: string(re.Kind),
		Message:   re.Message(),
	}
}

// ReferralStatusView is the linkage state of an applying account
type ReferralStatusView struct {
	Status       models.ReferralStatus `json:"status"`
	ReferralCode string                `json:"referral_code"`
	ReferredBy   *string               `json:"referred_by,omitempty"`
	ReferredAt   *time.Time            `json:"referred_at,omitempty"`
}

// ReferredAccount is one entry of a referrer's referral list
type ReferredAccount struct {
	AccountID   string     `json:"account_id"`
	DisplayName string     `json:"display_name"`
	ReferredAt  *time.Time `json:"referred_at"`
}

// ReferralService applies referral codes and maintains referrer statistics
type ReferralService struct {
	store  Store
	cache  StatsCache
	cfg    ReferralConfig
	now    func() time.Time
	logger zerolog.Logger
}

// NewReferralService creates a ReferralService. cache may be nil.
func NewReferralService(store Store, cache StatsCache, cfg ReferralConfig, log zerolog.Logger) *ReferralService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 5 * time.Second
	}
	return &ReferralService{
		store:  store,
		cache:  cache,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.WithComponent(log, "referrals"),
	}
}

// ApplyReferralCode links applyingID to the owner of code and credits both
// sides. Every non-committed outcome is a *ReferralError.
//
// The linkage and the referred bonus commit together. The referrer bonus and
// counters commit in a second transaction; if that fails the referral stays
// committed, a repair is recorded and the result reports the referrer credit
// as pending.
func (s *ReferralService) ApplyReferralCode(ctx context.Context, applyingID, code string) (*ApplyResult, error) {
	result, err := s.applyReferralCode(ctx, applyingID, code)
	if err != nil {
		kind := KindOf(err)
		metrics.RecordReferralOutcome(string(kind))
		event := s.logger.Info()
		if kind == KindTransientFailure {
			event = s.logger.Warn()
		}
		event.Err(err).Str("account_id", applyingID).Str("code", code).Msg("Referral code not applied")
		return nil, err
	}
	metrics.RecordReferralOutcome("committed")
	return result, nil
}

func (s *ReferralService) applyReferralCode(ctx context.Context, applyingID, code string) (*ApplyResult, error) {
	if !utils.IsValidReferralCode(code) {
		return nil, newReferralError(KindInvalidFormat, nil)
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		result, err := s.attempt(ctx, applyingID, code)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
		lastErr = err
		metrics.ReferralConflictRetries.Inc()
		s.logger.Debug().Str("account_id", applyingID).Int("attempt", attempt).Msg("Referral attempt conflicted, restarting")
	}
	return nil, newReferralError(KindTransientFailure, lastErr)
}

// attempt runs one pass from eligibility to commit. A raw ErrConflict asks
// the caller to start over.
func (s *ReferralService) attempt(ctx context.Context, applyingID, code string) (*ApplyResult, error) {
	actx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()

	referrer, err := s.store.GetAccountByReferralCode(actx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newReferralError(KindCodeNotFound, nil)
		}
		return nil, transient(err)
	}

	applying, err := s.store.GetAccountByID(actx, applyingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newReferralError(KindAccountNotFound, nil)
		}
		return nil, transient(err)
	}

	if referrer.ID == applying.ID {
		return nil, newReferralError(KindSelfReferral, nil)
	}
	if applying.IsReferred() {
		return nil, newReferralError(KindAlreadyReferred, nil)
	}
	if !referrer.Active {
		return nil, newReferralError(KindReferrerUnavailable, errReferrerInactive)
	}

	now := s.now().UTC()
	err = s.store.Atomically(actx, func(tx Store) error {
		if err := tx.LinkReferrer(actx, applying.ID, referrer.WalletAddress, referrer.ID, now); err != nil {
			return err
		}
		_, err := applyGrant(actx, tx, Grant{
			AccountID:  applying.ID,
			Type:       models.TransactionBonus,
			Amount:     models.ReferredPoints,
			Experience: models.ReferredXP,
			Reason:     models.ReasonReferredBonus,
			Key:        models.ReferralKey(applying.ID, "referred"),
			SourceID:   &referrer.ID,
			Metadata:   map[string]interface{}{"referral_code": code},
		}, now)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrAlreadyLinked), errors.Is(err, ErrAlreadyGranted):
		return nil, newReferralError(KindAlreadyReferred, nil)
	case errors.Is(err, repository.ErrConflict):
		return nil, err
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, ErrAccountNotFound):
		return nil, newReferralError(KindAccountNotFound, nil)
	default:
		return nil, transient(err)
	}
	metrics.RecordLedgerEntry(string(models.TransactionBonus), models.ReasonReferredBonus)

	// The referred side is durable from here on, so the referrer credit must
	// not be abandoned when the caller goes away.
	bctx, bcancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.AttemptTimeout)
	defer bcancel()

	pending := false
	if err := s.creditReferrer(bctx, referrer.ID, applying.ID, now); err != nil {
		pending = true
		s.deferReferrerCredit(bctx, referrer.ID, applying.ID, code, err)
	}
	s.invalidateStats(bctx, referrer.ID)

	s.logger.Info().
		Str("account_id", applying.ID).
		Str("referrer_id", referrer.ID).
		Str("code", code).
		Bool("referrer_credit_pending", pending).
		Msg("Referral code applied")

	return &ApplyResult{
		Success:               true,
		BonusEarned:           models.ReferredPoints,
		ReferrerName:          referrer.PublicName(),
		ReferralCode:          code,
		ReferrerCreditPending: pending,
	}, nil
}

// creditReferrer grants the referrer bonus and bumps the counters in one
// transaction. An already recorded credit counts as success.
func (s *ReferralService) creditReferrer(ctx context.Context, referrerID, referredID string, at time.Time) error {
	var err error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		err = s.store.Atomically(ctx, func(tx Store) error {
			referrer, err := tx.GetAccountByID(ctx, referrerID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return errReferrerMissing
				}
				return err
			}
			if !referrer.Active {
				return errReferrerInactive
			}
			if _, err := applyGrant(ctx, tx, Grant{
				AccountID:  referrerID,
				Type:       models.TransactionBonus,
				Amount:     models.ReferrerPoints,
				Experience: models.ReferrerXP,
				Reason:     models.ReasonReferrerBonus,
				Key:        models.ReferralKey(referredID, "referrer"),
				SourceID:   &referredID,
			}, at); err != nil {
				return err
			}
			return tx.IncrementReferralStats(ctx, referrerID, 1, models.ReferrerPoints)
		})
		if !errors.Is(err, repository.ErrConflict) {
			break
		}
	}
	if errors.Is(err, ErrAlreadyGranted) {
		return nil
	}
	if err == nil {
		metrics.RecordLedgerEntry(string(models.TransactionBonus), models.ReasonReferrerBonus)
	}
	return err
}

func (s *ReferralService) deferReferrerCredit(ctx context.Context, referrerID, referredID, code string, cause error) {
	kind := repairKind(cause)
	metrics.RecordRepair(string(kind))

	repair := &models.ReferralRepair{
		ReferrerID:   referrerID,
		ReferredID:   referredID,
		ReferralCode: code,
		Kind:         string(kind),
		LastError:    cause.Error(),
	}
	if err := s.store.RecordRepair(ctx, repair); err != nil {
		// ReconcileAll detects the uncredited linkage and records it again
		s.logger.Error().Err(err).
			Str("referrer_id", referrerID).
			Str("referred_id", referredID).
			AnErr("cause", cause).
			Msg("Failed to record referral repair")
		return
	}
	s.logger.Warn().Err(cause).
		Str("referrer_id", referrerID).
		Str("referred_id", referredID).
		Str("kind", string(kind)).
		Msg("Referrer credit deferred to reconciliation")
}

// GetReferralCode returns the referral code of an account
func (s *ReferralService) GetReferralCode(ctx context.Context, accountID string) (string, error) {
	acct, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrAccountNotFound
		}
		return "", err
	}
	return acct.ReferralCode, nil
}

// GetReferralStatus reports whether an account has redeemed a referral code
func (s *ReferralService) GetReferralStatus(ctx context.Context, accountID string) (*ReferralStatusView, error) {
	acct, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &ReferralStatusView{
		Status:       acct.ReferralStatus(),
		ReferralCode: acct.ReferralCode,
		ReferredBy:   acct.ReferredBy,
		ReferredAt:   acct.ReferredAt,
	}, nil
}

// ListReferrals returns the accounts referred by referrerID, newest first
func (s *ReferralService) ListReferrals(ctx context.Context, referrerID string) ([]ReferredAccount, error) {
	accounts, err := s.store.ListReferredAccounts(ctx, referrerID)
	if err != nil {
		return nil, err
	}
	referrals := make([]ReferredAccount, 0, len(accounts))
	for i := range accounts {
		referrals = append(referrals, ReferredAccount{
			AccountID:   accounts[i].ID,
			DisplayName: accounts[i].PublicName(),
			ReferredAt:  accounts[i].ReferredAt,
		})
	}
	return referrals, nil
}

func transient(err error) error {
	return newReferralError(KindTransientFailure, err)
}

func repairKind(err error) ReferralErrorKind {
	if errors.Is(err, errReferrerInactive) || errors.Is(err, errReferrerMissing) {
		return KindReferrerUnavailable
	}
	return KindTransientFailure
}
