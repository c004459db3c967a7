package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/config"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
)

// consoleSlot is the single row the console keeps; one install, one login.
const consoleSlot = "console"

type AuthStateRepository struct {
	pool *pgxpool.Pool
}

func NewAuthStateRepository(pool *pgxpool.Pool) *AuthStateRepository {
	return &AuthStateRepository{pool: pool}
}

// OpenAuthStateRepository connects, pings and creates the table if needed.
func OpenAuthStateRepository(ctx context.Context, cfg config.PostgresConfig) (*AuthStateRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxOpen > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpen)
	}
	poolConfig.MinConns = int32(cfg.MaxIdle)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "ztconsole"

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	repo := NewAuthStateRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

func (r *AuthStateRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *AuthStateRepository) Close() {
	r.pool.Close()
}

func (r *AuthStateRepository) EnsureSchema(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS console_auth_state (
			slot          TEXT PRIMARY KEY,
			username      TEXT NOT NULL,
			role          TEXT NOT NULL,
			authenticated BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query)
	return err
}

// Load returns the zero state when no row exists.
func (r *AuthStateRepository) Load(ctx context.Context) (models.AuthState, error) {
	const query = `
		SELECT username, role, authenticated, updated_at
		FROM console_auth_state
		WHERE slot = $1
	`

	row := r.pool.QueryRow(ctx, query, consoleSlot)
	var (
		username, role string
		authenticated  bool
		updatedAt      time.Time
	)
	if err := row.Scan(&username, &role, &authenticated, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AuthState{}, nil
		}
		return models.AuthState{}, fmt.Errorf("load auth state: %w", err)
	}
	return stateFromRow(username, role, authenticated, updatedAt), nil
}

// stateFromRow rebuilds a saved login. A row without a username never
// counts as authenticated.
func stateFromRow(username, role string, authenticated bool, updatedAt time.Time) models.AuthState {
	return models.AuthState{
		Username:      username,
		Role:          models.Role(role),
		Authenticated: authenticated && username != "",
		UpdatedAt:     updatedAt.UTC(),
	}
}

// rowArgs are the upsert parameters for state, in column order.
func rowArgs(state models.AuthState) []any {
	return []any{consoleSlot, state.Username, string(state.Role), state.Authenticated && state.Username != ""}
}

func (r *AuthStateRepository) Save(ctx context.Context, state models.AuthState) error {
	const query = `
		INSERT INTO console_auth_state (slot, username, role, authenticated, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (slot)
		DO UPDATE SET
			username = EXCLUDED.username,
			role = EXCLUDED.role,
			authenticated = EXCLUDED.authenticated,
			updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query, rowArgs(state)...)
	return err
}

func (r *AuthStateRepository) Clear(ctx context.Context) error {
	const query = `DELETE FROM console_auth_state WHERE slot = $1`
	_, err := r.pool.Exec(ctx, query, consoleSlot)
	return err
}
