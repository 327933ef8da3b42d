package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"rewards-ledger/internal/auth"
	"rewards-ledger/internal/services"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	accountService  *services.AccountService
	referralService *services.ReferralService
	now             func() time.Time
	logger          zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accountService *services.AccountService, referralService *services.ReferralService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		accountService:  accountService,
		referralService: referralService,
		now:             time.Now,
		logger:          logger.With().Str("handler", "auth").Logger(),
	}
}

// WalletLogin authenticates an account by its Stellar wallet signature.
// The wallet signs auth.LoginMessage(wallet_address, issued_at).
// A referral_code sent with the first login is applied to the new account.
// POST /auth/wallet
func (h *AuthHandler) WalletLogin(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"wallet_address" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
		IssuedAt      int64  `json:"issued_at" binding:"required"`
		ReferralCode  string `json:"referral_code"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wallet := strings.TrimSpace(req.WalletAddress)

	if err := auth.VerifyLogin(wallet, req.Signature, req.IssuedAt, h.now()); err != nil {
		h.logger.Debug().Err(err).Str("wallet", wallet).Msg("Wallet login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	acct, created, err := h.accountService.RegisterWallet(c.Request.Context(), wallet)
	if err != nil {
		if errors.Is(err, services.ErrInvalidWallet) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet address"})
			return
		}
		h.logger.Error().Err(err).Str("wallet", wallet).Msg("Failed to register wallet")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to authenticate"})
		return
	}

	token, expiresAt, err := auth.IssueAccountToken(acct.ID, acct.WalletAddress, h.now())
	if err != nil {
		h.logger.Error().Err(err).Str("account_id", acct.ID).Msg("Failed to issue session token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	resp := gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"user":       acct,
		"created":    created,
	}

	if created && req.ReferralCode != "" {
		result, err := h.referralService.ApplyReferralCode(c.Request.Context(), acct.ID, req.ReferralCode)
		if err != nil {
			result = services.ResultFromError(err)
		} else if refreshed, gerr := h.accountService.GetAccount(c.Request.Context(), acct.ID); gerr == nil {
			resp["user"] = refreshed
		}
		resp["referral"] = result
	}

	c.JSON(http.StatusOK, resp)
}

// Logout handles user logout (stateless JWT, client-side only)
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully logged out",
	})
}

// GetMe returns the currently authenticated account
// GET /auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	accountID, exists := auth.AccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	acct, err := h.accountService.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": acct,
	})
}
