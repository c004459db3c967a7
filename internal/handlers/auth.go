package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/client"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
)

type loginRequest struct {
	Username  string   `json:"username" binding:"required"`
	Password  string   `json:"password" binding:"required"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	City      string   `json:"city"`
	Country   string   `json:"country"`
}

type loginResponse struct {
	Username  string     `json:"username"`
	Role      string     `json:"role"`
	RiskScore int        `json:"risk_score"`
	RiskLevel string     `json:"risk_level"`
	Decision  string     `json:"decision"`
	Signals   []string   `json:"signals"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var geo *models.Geo
	if req.Latitude != nil && req.Longitude != nil {
		geo = &models.Geo{Lat: *req.Latitude, Lon: *req.Longitude, City: req.City, Country: req.Country}
	}

	result, err := h.auth.Login(c.Request.Context(), req.Username, req.Password, geo)
	if err != nil {
		if client.StatusOf(err) == http.StatusUnauthorized || (client.IsKind(err, client.KindServer) && client.StatusOf(err) == http.StatusOK) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "kind": client.KindOf(err)})
			return
		}
		respondError(c, err)
		return
	}

	resp := loginResponse{
		Username:  result.Username,
		Role:      string(result.Role),
		RiskScore: result.RiskScore,
		RiskLevel: string(result.RiskLevel),
		Decision:  string(result.Decision),
		Signals:   result.Signals,
	}
	if resp.Signals == nil {
		resp.Signals = []string{}
	}
	if exp, ok := h.auth.SessionExpiry(); ok {
		resp.ExpiresAt = &exp
	}
	c.JSON(http.StatusOK, resp)
}

type registerRequest struct {
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required,min=6"`
	Email      string `json:"email" binding:"omitempty,email"`
	Department string `json:"department"`
}

// RegisterPrincipal creates an account that stays PENDING_APPROVAL until an
// administrator approves it.
func (h HandlerSet) RegisterPrincipal(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.registrar.Register(c.Request.Context(), client.Registration{
		Username:   req.Username,
		Password:   req.Password,
		Email:      req.Email,
		Department: req.Department,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"username": req.Username,
		"status":   models.StatusPendingApproval,
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Msg("logout left persisted state behind")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) Me(c *gin.Context) {
	state := h.auth.State()
	resp := gin.H{
		"username":      state.Username,
		"role":          state.Role,
		"authenticated": state.Authenticated,
	}
	if exp, ok := h.auth.SessionExpiry(); ok {
		resp["expires_at"] = exp
	}
	c.JSON(http.StatusOK, resp)
}
