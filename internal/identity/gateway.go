package identity

import (
	"context"

	"github.com/nafee3/nafee3/internal/notification"
)

// Gateway is the boundary the coordinators and the session manager use to
// reach the identity provider.
type Gateway interface {
	// SendCode triggers delivery of a fresh passcode. Calling it again before
	// the previous code expires replaces that code.
	SendCode(ctx context.Context, phone string, channel notification.Channel) error
	// VerifyCode exchanges a passcode for an identity and establishes the
	// local session. Codes are single-use.
	VerifyCode(ctx context.Context, phone, code string) (Identity, error)
	// CurrentSession returns the local session or nil. It does not block on
	// the network when no session is stored.
	CurrentSession(ctx context.Context) (*Session, error)
	// Subscribe registers fn for session changes. The returned subscription
	// must be cancelled on teardown.
	Subscribe(fn func(Event)) Subscription
	// SignOut clears the local session even when the remote revoke fails.
	SignOut(ctx context.Context) error
}

// Subscription is the handle returned by Gateway.Subscribe.
type Subscription interface {
	Unsubscribe()
}

// Backend is the remote half of the identity provider: passcode exchange and
// token lifecycle, with no local session state.
type Backend interface {
	SendCode(ctx context.Context, phone string, channel notification.Channel) error
	VerifyCode(ctx context.Context, phone, code string) (Session, error)
	Refresh(ctx context.Context, accessToken string) (Session, error)
	Revoke(ctx context.Context, accessToken string) error
}
