package authctx

import (
	"context"
	"sync"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
)

// MemoryStore keeps the auth state for the life of the process only.
type MemoryStore struct {
	mu    sync.Mutex
	state models.AuthState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (models.AuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *MemoryStore) Save(ctx context.Context, state models.AuthState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = models.AuthState{}
	return nil
}
