package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/config"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
)

func TestAuthStateEncoding(t *testing.T) {
	saved := models.AuthState{
		Username:      "alice",
		Role:          models.RoleAdmin,
		Authenticated: true,
		UpdatedAt:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	raw, err := encodeAuthState(saved)
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"alice","role":"admin","authenticated":true,"updated_at":"2024-05-01T10:00:00Z"}`, string(raw))

	loaded, err := decodeAuthState(raw)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestAuthStateEncodingStampsTime(t *testing.T) {
	raw, err := encodeAuthState(models.AuthState{Username: "bob", Role: models.RoleHR, Authenticated: true})
	require.NoError(t, err)
	loaded, err := decodeAuthState(raw)
	require.NoError(t, err)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestAuthStateDecodeEdgeCases(t *testing.T) {
	empty, err := decodeAuthState(nil)
	require.NoError(t, err)
	assert.Equal(t, models.AuthState{}, empty)

	_, err = decodeAuthState([]byte(`{"username":`))
	assert.ErrorContains(t, err, "decode auth state")
}

func TestAuthStateStoreUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	s := NewAuthStateStore(client, "ztconsole:auth")
	defer s.Close()

	_, err := s.Load(context.Background())
	assert.ErrorContains(t, err, "redis get ztconsole:auth")
	assert.ErrorContains(t, s.Save(context.Background(), models.AuthState{Username: "alice"}), "redis set")

	_, err = OpenAuthStateStore(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1", Key: "k"})
	assert.ErrorContains(t, err, "redis ping 127.0.0.1:1")
}
