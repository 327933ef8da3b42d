package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rewards-ledger/internal/auth"
	"rewards-ledger/internal/models"
	"rewards-ledger/internal/services"
)

// AccountHandler handles profile endpoints
type AccountHandler struct {
	accountService *services.AccountService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accountService *services.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

func profileResponse(acct *models.Account) gin.H {
	return gin.H{
		"id":                    acct.ID,
		"wallet_address":        acct.WalletAddress,
		"network":               acct.Network,
		"display_name":          acct.PublicName(),
		"level":                 acct.Level,
		"experience":            acct.Experience,
		"xp_for_next_level":     models.XPForNextLevel(acct.Level),
		"total_points":          acct.TotalPoints,
		"referral_code":         acct.ReferralCode,
		"referral_status":       acct.ReferralStatus(),
		"referrals_count":       acct.ReferralsCount,
		"total_referral_points": acct.TotalReferralPoints,
		"created_at":            acct.CreatedAt,
	}
}

// GetProfile returns the current account's profile
// GET /api/account/profile
func (h *AccountHandler) GetProfile(c *gin.Context) {
	accountID, exists := auth.AccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	acct, err := h.accountService.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    profileResponse(acct),
	})
}

// UpdateProfile changes the display name
// PUT /api/account/profile
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	accountID, exists := auth.AccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req struct {
		DisplayName string `json:"display_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := h.accountService.UpdateDisplayName(c.Request.Context(), accountID, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidDisplayName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Display name must be 1-64 characters"})
		case errors.Is(err, services.ErrAccountNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    profileResponse(acct),
	})
}
