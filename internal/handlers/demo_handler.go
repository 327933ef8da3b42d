package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rewards-ledger/internal/auth"
	"rewards-ledger/internal/services"
)

// DemoHandler serves the interactive demo catalog
type DemoHandler struct {
	demoService *services.DemoService
}

func NewDemoHandler(demoService *services.DemoService) *DemoHandler {
	return &DemoHandler{demoService: demoService}
}

func demoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrDemoNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Demo not found"})
	case errors.Is(err, services.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, services.ErrDemoLocked):
		c.JSON(http.StatusForbidden, gin.H{"error": "Complete the previous demo first"})
	case errors.Is(err, services.ErrDemoAlreadyActive):
		c.JSON(http.StatusConflict, gin.H{"error": "Demo already started"})
	case errors.Is(err, services.ErrDemoNotInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "Demo is not in progress"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update demo"})
	}
}

// ListDemos returns the catalog with the account's progress
// GET /api/demos
func (h *DemoHandler) ListDemos(c *gin.Context) {
	accountID, exists := auth.AccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	demos, err := h.demoService.List(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get demos"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    demos,
	})
}

// StartDemo marks a demo as in progress
// POST /api/demos/:id/start
func (h *DemoHandler) StartDemo(c *gin.Context) {
	accountID, exists := auth.AccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.demoService.Start(c.Request.Context(), accountID, c.Param("id")); err != nil {
		demoError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CompleteDemo finishes a demo and returns the reward entry
// POST /api/demos/:id/complete
func (h *DemoHandler) CompleteDemo(c *gin.Context) {
	accountID, exists := auth.AccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	entry, err := h.demoService.Complete(c.Request.Context(), accountID, c.Param("id"))
	if err != nil {
		demoError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entry,
	})
}
