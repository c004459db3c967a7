package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/authctx"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/client"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/files"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/gateway"
)

// respondError maps a domain error onto an HTTP status and a body carrying
// the error kind, so dashboards can tell a timeout from a policy refusal.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := gin.H{"error": err.Error()}

	switch {
	case errors.Is(err, authctx.ErrNotAuthenticated), errors.Is(err, files.ErrNoActor):
		status = http.StatusUnauthorized
	case errors.Is(err, authctx.ErrUnsupportedRole):
		status = http.StatusForbidden
	case errors.Is(err, gateway.ErrInvalidAction):
		status = http.StatusBadRequest
	case errors.Is(err, gateway.ErrInFlight):
		status = http.StatusConflict
	case errors.Is(err, files.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, files.ErrNoSink):
		status = http.StatusServiceUnavailable
	}

	if kind := client.KindOf(err); kind != "" {
		body["kind"] = kind
		switch kind {
		case client.KindNotEditable:
			status = http.StatusUnprocessableEntity
		case client.KindConflict:
			status = http.StatusConflict
		case client.KindTimeout:
			status = http.StatusGatewayTimeout
		case client.KindNetwork:
			status = http.StatusServiceUnavailable
		case client.KindDecode:
			status = http.StatusBadGateway
		case client.KindServer:
			status = http.StatusBadGateway
			if upstream := client.StatusOf(err); upstream != 0 {
				body["upstream_status"] = upstream
				if upstream >= 400 && upstream < 500 {
					status = upstream
				}
			}
		}
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}
