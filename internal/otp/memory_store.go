package otp

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	rec      Record
	retainTo time.Time
}

type memoryStore struct {
	mu    sync.Mutex
	now   func() time.Time
	codes map[string]*memoryEntry
}

// NewMemoryStore builds an in-memory passcode store for development and tests.
func NewMemoryStore() Store {
	return &memoryStore{now: time.Now, codes: make(map[string]*memoryEntry)}
}

func (s *memoryStore) Save(_ context.Context, phone string, rec Record, retain time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = &memoryEntry{rec: rec, retainTo: s.now().Add(retain)}
	return nil
}

func (s *memoryStore) lookup(phone string) (*memoryEntry, bool) {
	e, ok := s.codes[phone]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.retainTo) {
		delete(s.codes, phone)
		return nil, false
	}
	return e, true
}

func (s *memoryStore) Load(_ context.Context, phone string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(phone)
	if !ok {
		return Record{}, ErrNoCode
	}
	return e.rec, nil
}

func (s *memoryStore) IncrAttempts(_ context.Context, phone string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(phone)
	if !ok {
		return 0, ErrNoCode
	}
	e.rec.Attempts++
	return e.rec.Attempts, nil
}

func (s *memoryStore) Consume(_ context.Context, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(phone); !ok {
		return false, nil
	}
	delete(s.codes, phone)
	return true, nil
}
