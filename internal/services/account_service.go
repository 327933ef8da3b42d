package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rewards-ledger/internal/logger"
	"rewards-ledger/internal/metrics"
	"rewards-ledger/internal/models"
	"rewards-ledger/internal/repository"
	"rewards-ledger/internal/stellar"
	"rewards-ledger/internal/utils"
)

const (
	maxCodeAttempts    = 5
	maxDisplayNameLen  = 64
	reasonLegacyImport = "legacy_opening_balance"
)

var (
	// ErrInvalidWallet is returned for addresses that are not Stellar account ids
	ErrInvalidWallet = errors.New("invalid wallet address")
	// ErrCodeSpaceExhausted is returned when no free referral code was found
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique referral code")
	// ErrInvalidDisplayName is returned for empty or oversized display names
	ErrInvalidDisplayName = errors.New("invalid display name")
)

// AccountService handles account creation and profile updates
type AccountService struct {
	store        Store
	generateCode func() (string, error)
	generateName func() (string, error)
	network      string
	logger       zerolog.Logger
}

// NewAccountService creates a new AccountService
func NewAccountService(store Store, network string, log zerolog.Logger) *AccountService {
	return &AccountService{
		store:        store,
		generateCode: utils.GenerateReferralCode,
		generateName: utils.GenerateDisplayName,
		network:      network,
		logger:       logger.WithComponent(log, "accounts"),
	}
}

// RegisterWallet returns the account of a wallet, creating it on first login.
// created is true only for the call that inserted the row.
func (s *AccountService) RegisterWallet(ctx context.Context, wallet string) (*models.Account, bool, error) {
	wallet = strings.TrimSpace(wallet)
	if !stellar.IsValidAddress(wallet) {
		return nil, false, ErrInvalidWallet
	}

	acct, err := s.store.GetAccountByWallet(ctx, wallet)
	if err == nil {
		return acct, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	acct = &models.Account{
		ID:            uuid.NewString(),
		WalletAddress: wallet,
		Network:       s.network,
		DisplayName:   s.defaultName(),
		Level:         1,
		Active:        true,
	}
	create := func() error { return s.store.CreateAccount(ctx, acct) }
	if err := s.createWithUniqueCode(ctx, acct, create); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// lost a race with a concurrent first login for the same wallet
			existing, gerr := s.store.GetAccountByWallet(ctx, wallet)
			if gerr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	s.logger.Info().Str("account_id", acct.ID).Str("wallet", wallet).Msg("Account created")
	return acct, true, nil
}

// createWithUniqueCode runs create, drawing a new referral code for acct
// whenever the unique index rejects the current one. A duplicate wallet or id
// is returned as ErrDuplicate. create must not leave partial state behind.
func (s *AccountService) createWithUniqueCode(ctx context.Context, acct *models.Account, create func() error) error {
	keepCode := utils.IsValidReferralCode(acct.ReferralCode)
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		if !keepCode {
			code, err := s.generateCode()
			if err != nil {
				return fmt.Errorf("failed to generate referral code: %w", err)
			}
			acct.ReferralCode = code
		}
		keepCode = false

		err := create()
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
		if _, gerr := s.store.GetAccountByWallet(ctx, acct.WalletAddress); gerr == nil {
			return repository.ErrDuplicate
		}
		if acct.ID != "" {
			if _, gerr := s.store.GetAccountByID(ctx, acct.ID); gerr == nil {
				return repository.ErrDuplicate
			}
		}
		s.logger.Debug().Str("code", acct.ReferralCode).Int("attempt", attempt).Msg("Referral code collision, drawing another")
	}
	return ErrCodeSpaceExhausted
}

// defaultName falls back to an empty name, which PublicName covers with the
// shortened wallet address.
func (s *AccountService) defaultName() string {
	name, err := s.generateName()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to generate display name")
		return ""
	}
	return name
}

// GetAccount retrieves an account by ID
func (s *AccountService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	acct, err := s.store.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return acct, nil
}

// UpdateDisplayName changes the name shown to referred users
func (s *AccountService) UpdateDisplayName(ctx context.Context, id, name string) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxDisplayNameLen {
		return nil, ErrInvalidDisplayName
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		acct, err := s.GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		err = s.store.UpdateAccount(ctx, id, acct.Version, map[string]interface{}{"display_name": name})
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.GetAccount(ctx, id)
	}
	return nil, repository.ErrConflict
}

// ImportResult describes one imported legacy document
type ImportResult struct {
	AccountID      string `json:"account_id"`
	WalletAddress  string `json:"wallet_address"`
	Skipped        bool   `json:"skipped"`
	CodeReissued   bool   `json:"code_reissued"`
	OpeningBalance int64  `json:"opening_balance"`
}

// ImportLegacy stores a legacy account document in normalized form. Its
// points become a single opening-balance ledger entry so that the account
// reconciles with the ledger. Legacy referral counters have no ledger
// entries behind them and are reset; the linkage itself is kept and marked
// imported, since the legacy balances already hold its rewards.
func (s *AccountService) ImportLegacy(ctx context.Context, doc *models.LegacyAccountDocument) (*ImportResult, error) {
	acct, err := doc.Normalize()
	if err != nil {
		return nil, err
	}
	if !stellar.IsValidAddress(acct.WalletAddress) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWallet, acct.WalletAddress)
	}

	if _, err := s.store.GetAccountByWallet(ctx, acct.WalletAddress); err == nil {
		return &ImportResult{AccountID: doc.ID, WalletAddress: acct.WalletAddress, Skipped: true}, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	if acct.DisplayName == "" {
		acct.DisplayName = s.defaultName()
	}
	originalCode := acct.ReferralCode
	if acct.ReferralsCount > 0 || acct.TotalReferralPoints > 0 {
		s.logger.Warn().
			Str("account_id", acct.ID).
			Int64("referrals_count", acct.ReferralsCount).
			Int64("total_referral_points", acct.TotalReferralPoints).
			Msg("Resetting legacy referral counters without ledger entries")
	}
	acct.ReferralsCount = 0
	acct.TotalReferralPoints = 0

	if acct.ReferredBy != nil {
		referrer, err := s.store.GetAccountByWallet(ctx, *acct.ReferredBy)
		switch {
		case err == nil && referrer.ID != acct.ID:
			acct.ReferrerID = &referrer.ID
			acct.ReferralImported = true
		case err == nil, errors.Is(err, repository.ErrNotFound):
		default:
			return nil, err
		}
	}

	balance := acct.TotalPoints
	acct.TotalPoints = 0
	acct.Version = 1

	create := func() error {
		return s.store.Atomically(ctx, func(tx Store) error {
			if err := tx.CreateAccount(ctx, acct); err != nil {
				return err
			}
			if balance == 0 {
				return nil
			}
			_, err := applyGrant(ctx, tx, Grant{
				AccountID: acct.ID,
				Type:      models.TransactionBonus,
				Amount:    balance,
				Reason:    reasonLegacyImport,
				Key:       "import:" + acct.ID,
				Metadata:  map[string]interface{}{"legacy_id": doc.ID},
			}, time.Now().UTC())
			return err
		})
	}
	if err := s.createWithUniqueCode(ctx, acct, create); err != nil {
		return nil, err
	}
	if balance > 0 {
		metrics.RecordLedgerEntry(string(models.TransactionBonus), reasonLegacyImport)
	}

	return &ImportResult{
		AccountID:      acct.ID,
		WalletAddress:  acct.WalletAddress,
		CodeReissued:   acct.ReferralCode != originalCode,
		OpeningBalance: balance,
	}, nil
}
