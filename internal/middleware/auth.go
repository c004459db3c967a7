package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
)

const sessionKey = "auth_state"

// Session reports who is logged in to the console.
type Session interface {
	State() models.AuthState
}

// RequireSession rejects requests while nobody is logged in. The console
// holds a single login, so there is no per-request credential to check.
func RequireSession(session Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := session.State()
		if !state.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
			return
		}
		c.Set(sessionKey, state)
		c.Next()
	}
}

func SessionFrom(c *gin.Context) (models.AuthState, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return models.AuthState{}, false
	}
	state, ok := v.(models.AuthState)
	return state, ok
}
