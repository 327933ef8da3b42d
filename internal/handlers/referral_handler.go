package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rewards-ledger/internal/auth"
	"rewards-ledger/internal/services"
)

// referralStatus maps a referral outcome to its HTTP status. AlreadyReferred
// is a neutral outcome for a repeated submit, not a client error.
var referralStatus = map[services.ReferralErrorKind]int{
	services.KindInvalidFormat:       http.StatusBadRequest,
	services.KindCodeNotFound:        http.StatusNotFound,
	services.KindSelfReferral:        http.StatusBadRequest,
	services.KindAlreadyReferred:     http.StatusOK,
	services.KindAccountNotFound:     http.StatusNotFound,
	services.KindReferrerUnavailable: http.StatusConflict,
	services.KindTransientFailure:    http.StatusServiceUnavailable,
}

type ReferralHandler struct {
	referralService *services.ReferralService
}

func NewReferralHandler(referralService *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{referralService: referralService}
}

// GetReferralCode returns the account's referral code
func (h *ReferralHandler) GetReferralCode(c *gin.Context) {
	accountID, exists := auth.AccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	code, err := h.referralService.GetReferralCode(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get referral code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"code": code},
	})
}

// ApplyReferralCode applies a referral code to the current account. The body
// is always an ApplyResult.
func (h *ReferralHandler) ApplyReferralCode(c *gin.Context) {
	accountID, exists := auth.AccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		Code string `json:"code"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.referralService.ApplyReferralCode(c.Request.Context(), accountID, req.Code)
	if err != nil {
		status, ok := referralStatus[services.KindOf(err)]
		if !ok {
			status = http.StatusInternalServerError
		}
		c.JSON(status, services.ResultFromError(err))
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetReferralStatus returns whether the account has redeemed a code
func (h *ReferralHandler) GetReferralStatus(c *gin.Context) {
	accountID, exists := auth.AccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	status, err := h.referralService.GetReferralStatus(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get referral status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    status,
	})
}

// GetReferralStats returns referral statistics for an account
func (h *ReferralHandler) GetReferralStats(c *gin.Context) {
	accountID, exists := auth.AccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	stats, err := h.referralService.GetReferralStats(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

// GetReferrals returns all accounts referred by the current account
func (h *ReferralHandler) GetReferrals(c *gin.Context) {
	accountID, exists := auth.AccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	referrals, err := h.referralService.ListReferrals(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get referrals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    referrals,
		"count":   len(referrals),
	})
}
