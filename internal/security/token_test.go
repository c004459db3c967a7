package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSessionToken(t *testing.T) {
	exp := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		Username: "alice",
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}).SignedString([]byte("server-side-secret"))
	require.NoError(t, err)

	claims, err := ParseSessionToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "admin", claims.Role)

	got, ok := claims.ExpiresAtTime()
	require.True(t, ok)
	assert.True(t, exp.Equal(got))
}

func TestParseSessionTokenRejectsOpaqueTokens(t *testing.T) {
	for _, tok := range []string{"", "3f2a9c", "a.b.c"} {
		_, err := ParseSessionToken(tok)
		assert.ErrorIs(t, err, ErrNotJWT, tok)
	}
}
