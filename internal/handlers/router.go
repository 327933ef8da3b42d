package handlers

import (
	"github.com/gin-gonic/gin"

	"rewards-ledger/internal/auth"
)

// Handlers groups every HTTP handler of the API
type Handlers struct {
	Auth     *AuthHandler
	Account  *AccountHandler
	Referral *ReferralHandler
	Points   *PointsHandler
	Demo     *DemoHandler
}

// RegisterRoutes mounts the public and authenticated routes
func RegisterRoutes(router *gin.Engine, h *Handlers) {
	// Authentication routes (public)
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/wallet", h.Auth.WalletLogin)
		authRoutes.POST("/logout", h.Auth.Logout)
	}

	authProtected := router.Group("/auth")
	authProtected.Use(auth.RequireAccount())
	{
		authProtected.GET("/me", h.Auth.GetMe)
	}

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.RequireAccount())
	{
		api.GET("/account/profile", h.Account.GetProfile)
		api.PUT("/account/profile", h.Account.UpdateProfile)

		api.GET("/referral/code", h.Referral.GetReferralCode)
		api.POST("/referral/apply", h.Referral.ApplyReferralCode)
		api.GET("/referral/status", h.Referral.GetReferralStatus)
		api.GET("/referral/stats", h.Referral.GetReferralStats)
		api.GET("/referral/referrals", h.Referral.GetReferrals)

		api.GET("/points/transactions", h.Points.GetTransactions)
		api.GET("/points/reconcile", h.Points.Reconcile)

		api.GET("/demos", h.Demo.ListDemos)
		api.POST("/demos/:id/start", h.Demo.StartDemo)
		api.POST("/demos/:id/complete", h.Demo.CompleteDemo)
	}
}
