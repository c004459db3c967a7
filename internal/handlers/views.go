package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/middleware"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/views"
)

func levelParam(c *gin.Context) (models.RiskLevel, bool) {
	raw := strings.ToUpper(strings.TrimSpace(c.Query("level")))
	if raw == "" {
		return "", true
	}
	level := models.RiskLevel(raw)
	return level, level.Valid()
}

// View renders the dashboard of the logged-in role.
func (h HandlerSet) View(c *gin.Context) {
	state, _ := middleware.SessionFrom(c)
	build, err := views.For(state.Role)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	level, ok := levelParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid level"})
		return
	}
	c.JSON(http.StatusOK, build(h.store, views.Params{Username: state.Username, Level: level}))
}

func (h HandlerSet) ListPrincipals(c *gin.Context) {
	state, _ := middleware.SessionFrom(c)
	level, ok := levelParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid level"})
		return
	}
	params := views.Params{Username: state.Username, Level: level}

	var v any
	if state.Role == models.RoleHR {
		v = views.HR(h.store, params)
	} else {
		v = views.Admin(h.store, params)
	}
	c.JSON(http.StatusOK, v)
}

// PrincipalSessions refreshes and returns one principal's sessions. A failed
// refresh falls back to what the store already holds.
func (h HandlerSet) PrincipalSessions(c *gin.Context) {
	username := c.Param("username")
	stale := false
	if err := h.dashboard.LoadSessions(c.Request.Context(), username); err != nil {
		h.log.Warn().Err(err).Str("username", username).Msg("session refresh failed")
		stale = true
	}
	c.JSON(http.StatusOK, gin.H{
		"username": username,
		"stale":    stale,
		"sessions": views.SessionRows(h.store, username),
	})
}

func (h HandlerSet) Stream(c *gin.Context) {
	h.stream.Serve(c.Writer, c.Request)
}
