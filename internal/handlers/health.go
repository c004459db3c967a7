package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status        string            `json:"status"`
	Environment   string            `json:"environment"`
	Checks        map[string]string `json:"checks"`
	Authenticated bool              `json:"authenticated"`
	SnapshotAt    *time.Time        `json:"snapshot_at,omitempty"`
}

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:        "ok",
		Environment:   h.cfg.Environment,
		Checks:        make(map[string]string, len(h.checks)),
		Authenticated: h.auth.Authenticated(),
	}
	for name, check := range h.checks {
		resp.Checks[name] = "ok"
		if err := check.Ping(ctx); err != nil {
			resp.Checks[name] = "error"
			resp.Status = "degraded"
			h.log.Error().Err(err).Str("check", name).Msg("health check failed")
		}
	}
	if at := h.store.UpdatedAt(); !at.IsZero() {
		resp.SnapshotAt = &at
	}

	c.JSON(http.StatusOK, resp)
}
