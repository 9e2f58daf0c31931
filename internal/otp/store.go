package otp

import (
	"context"
	"errors"
	"time"
)

// ErrNoCode is returned by stores when no code is held for a phone.
var ErrNoCode = errors.New("no code issued")

// Record is the stored state of an issued passcode.
type Record struct {
	Hash      []byte
	ExpiresAt time.Time
	Attempts  int
}

// Store persists issued passcodes keyed by E.164 phone number.
type Store interface {
	// Save replaces any code held for phone. retain bounds how long the
	// record may be kept after which it simply disappears.
	Save(ctx context.Context, phone string, rec Record, retain time.Duration) error
	Load(ctx context.Context, phone string) (Record, error)
	IncrAttempts(ctx context.Context, phone string) (int, error)
	// Consume deletes the record and reports whether this call removed it.
	Consume(ctx context.Context, phone string) (bool, error)
}
