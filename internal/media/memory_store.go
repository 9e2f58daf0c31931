package media

import (
	"context"
	"sync"
)

// MemoryStore keeps uploads in memory. Fail makes the next n puts fail with err.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failN   int
	failErr error
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, kind Kind, data []byte) (string, error) {
	ct, err := ValidatePhoto(data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failN > 0 {
		s.failN--
		return "", s.failErr
	}
	key := Key(kind, ct)
	s.objects[key] = append([]byte(nil), data...)
	return "memory://" + key, nil
}

// Fail arranges for the next n calls to Put to return err.
func (s *MemoryStore) Fail(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failN, s.failErr = n, err
}

// Len reports the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
