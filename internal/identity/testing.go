package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/notification"
)

// SentCode records one FakeBackend.SendCode call.
type SentCode struct {
	Phone   string
	Channel notification.Channel
}

// FakeBackend is an in-memory Backend for tests. Every phone accepts Code
// once per SendCode. Queued errors are returned front first.
type FakeBackend struct {
	Code string
	TTL  time.Duration
	// BeforeSend and BeforeVerify run at the start of the call, unlocked,
	// so a test can hold a call in flight.
	BeforeSend   func()
	BeforeVerify func()

	mu          sync.Mutex
	sendErrs    []error
	verifyErrs  []error
	refreshErrs []error
	revokeErrs  []error
	sent        []SentCode
	revoked     []string
	outstanding map[string]bool
	identities  map[string]Identity
	tokens      map[string]Identity
	issued      int
}

// NewFakeBackend accepts "123456" and issues one-hour sessions.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		Code:        "123456",
		TTL:         time.Hour,
		outstanding: make(map[string]bool),
		identities:  make(map[string]Identity),
		tokens:      make(map[string]Identity),
	}
}

// FailSend queues errors for the next SendCode calls.
func (b *FakeBackend) FailSend(errs ...error) {
	b.mu.Lock()
	b.sendErrs = append(b.sendErrs, errs...)
	b.mu.Unlock()
}

// FailVerify queues errors for the next VerifyCode calls.
func (b *FakeBackend) FailVerify(errs ...error) {
	b.mu.Lock()
	b.verifyErrs = append(b.verifyErrs, errs...)
	b.mu.Unlock()
}

// FailRefresh queues errors for the next Refresh calls.
func (b *FakeBackend) FailRefresh(errs ...error) {
	b.mu.Lock()
	b.refreshErrs = append(b.refreshErrs, errs...)
	b.mu.Unlock()
}

// FailRevoke queues errors for the next Revoke calls.
func (b *FakeBackend) FailRevoke(errs ...error) {
	b.mu.Lock()
	b.revokeErrs = append(b.revokeErrs, errs...)
	b.mu.Unlock()
}

// Sent returns the delivered codes so far.
func (b *FakeBackend) Sent() []SentCode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SentCode(nil), b.sent...)
}

// Revoked returns the tokens passed to Revoke.
func (b *FakeBackend) Revoked() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.revoked...)
}

// Register creates the identity for phone up front, as if it verified earlier.
func (b *FakeBackend) Register(phone string) Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.identityLocked(phone)
}

func (b *FakeBackend) SendCode(_ context.Context, phone string, channel notification.Channel) error {
	if b.BeforeSend != nil {
		b.BeforeSend()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := pop(&b.sendErrs); err != nil {
		return err
	}
	b.sent = append(b.sent, SentCode{Phone: phone, Channel: channel})
	b.outstanding[phone] = true
	return nil
}

func (b *FakeBackend) VerifyCode(_ context.Context, phone, code string) (Session, error) {
	if b.BeforeVerify != nil {
		b.BeforeVerify()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := pop(&b.verifyErrs); err != nil {
		return Session{}, err
	}
	if !b.outstanding[phone] || code != b.Code {
		return Session{}, apperr.New(apperr.KindInvalidCode, "code mismatch")
	}
	delete(b.outstanding, phone)
	return b.sessionLocked(b.identityLocked(phone)), nil
}

func (b *FakeBackend) Refresh(_ context.Context, accessToken string) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := pop(&b.refreshErrs); err != nil {
		return Session{}, err
	}
	ident, ok := b.tokens[accessToken]
	if !ok {
		return Session{}, apperr.New(apperr.KindUnauthorized, "unknown token")
	}
	delete(b.tokens, accessToken)
	return b.sessionLocked(ident), nil
}

func (b *FakeBackend) Revoke(_ context.Context, accessToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked = append(b.revoked, accessToken)
	if err := pop(&b.revokeErrs); err != nil {
		return err
	}
	delete(b.tokens, accessToken)
	return nil
}

func (b *FakeBackend) identityLocked(phone string) Identity {
	ident, ok := b.identities[phone]
	if !ok {
		ident = Identity{ID: uuid.NewString(), Phone: phone, Verified: true, CreatedAt: time.Now().UTC()}
		b.identities[phone] = ident
	}
	return ident
}

func (b *FakeBackend) sessionLocked(ident Identity) Session {
	b.issued++
	now := time.Now().UTC()
	token := fmt.Sprintf("fake-token-%d", b.issued)
	b.tokens[token] = ident
	return Session{Identity: ident, AccessToken: token, IssuedAt: now, ExpiresAt: now.Add(b.TTL)}
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}
