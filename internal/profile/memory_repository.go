package profile

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu   sync.RWMutex
	byID map[string]Profile
}

// NewMemoryRepository builds an in-memory profile store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{byID: make(map[string]Profile)}
}

func (r *memoryRepository) Insert(_ context.Context, p Profile) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[p.ProfileID]; exists {
		return false, nil
	}
	r.byID[p.ProfileID] = clone(p)
	return true, nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return clone(p), nil
}

func (r *memoryRepository) Update(_ context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ProfileID]; !ok {
		return ErrProfileNotFound
	}
	r.byID[p.ProfileID] = clone(p)
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrProfileNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *memoryRepository) List(context.Context) ([]Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Profile, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProfileID < out[j].ProfileID })
	return out, nil
}

func clone(p Profile) Profile {
	p.PortfolioPhotos = append([]string{}, p.PortfolioPhotos...)
	return p
}
