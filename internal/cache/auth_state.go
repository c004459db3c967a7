package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/config"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
)

// AuthStateStore persists the console login state under a single redis key.
type AuthStateStore struct {
	client *redis.Client
	key    string
}

func NewAuthStateStore(client *redis.Client, key string) *AuthStateStore {
	return &AuthStateStore{client: client, key: key}
}

// OpenAuthStateStore connects to redis and fails fast if it is unreachable.
func OpenAuthStateStore(ctx context.Context, cfg config.RedisConfig) (*AuthStateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   "ztconsole",
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     2,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewAuthStateStore(client, cfg.Key), nil
}

func (s *AuthStateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *AuthStateStore) Close() error {
	return s.client.Close()
}

// Load returns the zero state when nothing has been saved.
func (s *AuthStateStore) Load(ctx context.Context) (models.AuthState, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.AuthState{}, nil
	}
	if err != nil {
		return models.AuthState{}, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return decodeAuthState(raw)
}

func (s *AuthStateStore) Save(ctx context.Context, state models.AuthState) error {
	raw, err := encodeAuthState(state)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *AuthStateStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}

func encodeAuthState(state models.AuthState) ([]byte, error) {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode auth state: %w", err)
	}
	return raw, nil
}

// decodeAuthState reads a saved state. An empty payload is the zero state.
func decodeAuthState(raw []byte) (models.AuthState, error) {
	var state models.AuthState
	if len(raw) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return models.AuthState{}, fmt.Errorf("decode auth state: %w", err)
	}
	return state, nil
}
