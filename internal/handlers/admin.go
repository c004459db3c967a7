package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/store"
)

type approveRequest struct {
	Username string `json:"username" binding:"required"`
	Action   string `json:"action" binding:"required"`
}

type revokeRequest struct {
	Username string `json:"username" binding:"required"`
}

type intentResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
}

func respondIntent(c *gin.Context, intent store.Intent) {
	c.JSON(http.StatusAccepted, intentResponse{
		ID:        intent.ID,
		Username:  intent.Username,
		Kind:      string(intent.Kind),
		ExpiresAt: intent.ExpiresAt,
	})
}

// Approve approves or rejects a pending registration on behalf of the
// logged-in administrator.
func (h HandlerSet) Approve(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	intent, err := h.gateway.Approve(c.Request.Context(), req.Username, h.auth.Username(), models.ApprovalAction(strings.ToUpper(req.Action)))
	if err != nil {
		respondError(c, err)
		return
	}
	respondIntent(c, intent)
}

func (h HandlerSet) Revoke(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	intent, err := h.gateway.Revoke(c.Request.Context(), req.Username, h.auth.Username())
	if err != nil {
		respondError(c, err)
		return
	}
	respondIntent(c, intent)
}
