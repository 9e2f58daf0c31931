// Package otp issues and verifies single-use phone passcodes.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/logging"
	"github.com/nafee3/nafee3/internal/notification"
)

const (
	defaultTTL         = 5 * time.Minute
	defaultLength      = 6
	defaultMaxAttempts = 3
)

// Options tunes passcode issuance.
type Options struct {
	TTL         time.Duration
	Length      int
	MaxAttempts int
	// HashCost is the bcrypt cost used for stored codes.
	HashCost int
	Logger   *slog.Logger
}

// Service issues passcodes, delivers them and verifies submissions.
type Service struct {
	store    Store
	notifier notification.Notifier
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
	generate func(length int) (string, error)
}

// NewService builds a passcode service.
func NewService(store Store, notifier notification.Notifier, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Length <= 0 {
		opts.Length = defaultLength
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	return &Service{
		store:    store,
		notifier: notifier,
		opts:     opts,
		logger:   logging.OrDiscard(opts.Logger),
		now:      time.Now,
		generate: generateCode,
	}
}

// Issue creates a fresh code for phone, replacing any outstanding one, and
// delivers it on channel. phone must already be normalized.
func (s *Service) Issue(ctx context.Context, phone string, channel notification.Channel) error {
	code, err := s.generate(s.opts.Length)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "generate code")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.opts.HashCost)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "hash code")
	}

	rec := Record{Hash: hash, ExpiresAt: s.now().Add(s.opts.TTL)}
	// Records outlive their expiry so a late submission reports expired_code
	// rather than invalid_code.
	if err := s.store.Save(ctx, phone, rec, 2*s.opts.TTL); err != nil {
		return apperr.Wrap(err, apperr.KindProviderUnavailable, "store code")
	}

	msg := notification.Message{Channel: channel, Destination: phone, Body: notification.PasscodeBody(code)}
	if err := s.notifier.Send(ctx, msg); err != nil {
		if _, cerr := s.store.Consume(ctx, phone); cerr != nil {
			s.logger.Warn("discard undelivered code", "phone", logging.MaskPhone(phone), "error", cerr)
		}
		return apperr.Wrap(err, apperr.KindProviderUnavailable, "deliver code")
	}

	s.logger.Info("otp issued", "phone", logging.MaskPhone(phone), "channel", string(channel))
	return nil
}

// Verify checks code against the outstanding one for phone. A successful
// verification consumes the code.
func (s *Service) Verify(ctx context.Context, phone, code string) error {
	rec, err := s.store.Load(ctx, phone)
	if errors.Is(err, ErrNoCode) {
		return apperr.New(apperr.KindInvalidCode, "no outstanding code")
	}
	if err != nil {
		return apperr.Wrap(err, apperr.KindProviderUnavailable, "load code")
	}

	if !s.now().Before(rec.ExpiresAt) {
		s.discard(ctx, phone)
		return apperr.New(apperr.KindExpiredCode, "code expired")
	}
	if rec.Attempts >= s.opts.MaxAttempts {
		s.discard(ctx, phone)
		return apperr.New(apperr.KindExpiredCode, "too many failed attempts")
	}

	if bcrypt.CompareHashAndPassword(rec.Hash, []byte(code)) != nil {
		attempts, err := s.store.IncrAttempts(ctx, phone)
		if err != nil && !errors.Is(err, ErrNoCode) {
			return apperr.Wrap(err, apperr.KindProviderUnavailable, "count attempt")
		}
		if attempts >= s.opts.MaxAttempts {
			s.discard(ctx, phone)
		}
		return apperr.New(apperr.KindInvalidCode, "code mismatch")
	}

	consumed, err := s.store.Consume(ctx, phone)
	if err != nil {
		return apperr.Wrap(err, apperr.KindProviderUnavailable, "consume code")
	}
	if !consumed {
		// A concurrent submission of the same code won.
		return apperr.New(apperr.KindInvalidCode, "code already used")
	}
	return nil
}

func (s *Service) discard(ctx context.Context, phone string) {
	if _, err := s.store.Consume(ctx, phone); err != nil {
		s.logger.Warn("discard code", "phone", logging.MaskPhone(phone), "error", err)
	}
}

func generateCode(length int) (string, error) {
	const digits = "0123456789"
	code := make([]byte, length)
	max := big.NewInt(int64(len(digits)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = digits[n.Int64()]
	}
	return string(code), nil
}
