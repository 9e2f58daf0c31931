package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byPhone map[string]Identity
	byID    map[string]Identity
}

// NewMemoryRepository builds an in-memory identity store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byPhone: make(map[string]Identity),
		byID:    make(map[string]Identity),
	}
}

func (r *memoryRepository) FindOrCreate(_ context.Context, phone string) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ident, exists := r.byPhone[phone]; exists {
		return ident, nil
	}
	ident := Identity{
		ID:        uuid.NewString(),
		Phone:     phone,
		Verified:  true,
		CreatedAt: time.Now().UTC(),
	}
	r.byPhone[phone] = ident
	r.byID[ident.ID] = ident
	return ident, nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ident, ok := r.byID[id]
	if !ok {
		return Identity{}, ErrIdentityNotFound
	}
	return ident, nil
}
