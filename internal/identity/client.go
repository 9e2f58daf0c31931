package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/logging"
	"github.com/nafee3/nafee3/internal/notification"
)

var _ Gateway = (*Client)(nil)

// ClientOptions holds optional Client settings.
type ClientOptions struct {
	Logger *slog.Logger
	// RefreshWithin renews the session from CurrentSession once it is this
	// close to expiry. Zero disables automatic renewal.
	RefreshWithin time.Duration
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// Client is the application-side Gateway: it keeps the local session, talks to
// a Backend and notifies subscribers of session changes.
//
// Events are delivered one at a time in the order the session changed. A
// subscriber may call back into the Client; events raised from inside a
// callback are delivered after the callback returns.
type Client struct {
	backend       Backend
	store         SessionStore
	logger        *slog.Logger
	refreshWithin time.Duration
	now           func() time.Time

	mu       sync.Mutex
	session  *Session
	loaded   bool
	subs     []subscriber
	nextSub  uint64
	pending  []Event
	draining bool
}

// NewClient builds a gateway over backend. A nil store keeps the session in memory.
func NewClient(backend Backend, store SessionStore, opts ClientOptions) *Client {
	if store == nil {
		store = NewMemorySessionStore()
	}
	return &Client{
		backend:       backend,
		store:         store,
		logger:        logging.OrDiscard(opts.Logger),
		refreshWithin: opts.RefreshWithin,
		now:           time.Now,
	}
}

func (c *Client) SendCode(ctx context.Context, phone string, channel notification.Channel) error {
	return c.backend.SendCode(ctx, phone, channel)
}

func (c *Client) VerifyCode(ctx context.Context, phone, code string) (Identity, error) {
	sess, err := c.backend.VerifyCode(ctx, phone, code)
	if err != nil {
		return Identity{}, err
	}

	c.mu.Lock()
	c.setLocked(ctx, sess)
	c.publishLocked(EventSignedIn, &sess)
	c.mu.Unlock()
	c.flush()

	return sess.Identity, nil
}

// CurrentSession returns the stored session, or nil. Only a stored session
// close to expiry causes a network call.
func (c *Client) CurrentSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	if err := c.loadLocked(ctx); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.session == nil {
		c.mu.Unlock()
		return nil, nil
	}
	now := c.now()
	if c.session.Expired(now) {
		c.clearLocked(ctx)
		c.mu.Unlock()
		c.flush()
		return nil, nil
	}
	current := *c.session
	c.mu.Unlock()

	if c.refreshWithin > 0 && current.ExpiresAt.Sub(now) < c.refreshWithin {
		refreshed, err := c.Refresh(ctx)
		if err == nil {
			return refreshed, nil
		}
		if apperr.KindOf(err) == apperr.KindUnauthorized {
			return nil, nil
		}
		c.logger.Warn("session refresh failed", "error", err)
	}
	return &current, nil
}

// Refresh renews the access token. A rejected token signs the client out.
func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	if err := c.loadLocked(ctx); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.session == nil {
		c.mu.Unlock()
		return nil, apperr.New(apperr.KindUnauthorized, "not signed in")
	}
	token := c.session.AccessToken
	c.mu.Unlock()

	next, err := c.backend.Refresh(ctx, token)

	c.mu.Lock()
	// Sign-out or another sign-in while the call was running wins.
	if c.session == nil || c.session.AccessToken != token {
		c.mu.Unlock()
		return nil, apperr.New(apperr.KindUnauthorized, "session changed during refresh")
	}
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnauthorized {
			c.clearLocked(ctx)
		}
		c.mu.Unlock()
		c.flush()
		return nil, err
	}
	c.setLocked(ctx, next)
	c.publishLocked(EventTokenRefreshed, &next)
	c.mu.Unlock()
	c.flush()

	return &next, nil
}

// AccessToken returns the bearer token of the current session.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	sess, err := c.CurrentSession(ctx)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", apperr.New(apperr.KindUnauthorized, "not signed in")
	}
	return sess.AccessToken, nil
}

// SignOut drops the local session and notifies subscribers before revoking
// the token remotely.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	if err := c.loadLocked(ctx); err != nil {
		c.logger.Warn("load session for sign out", "error", err)
	}
	var token string
	if c.session != nil {
		token = c.session.AccessToken
	}
	c.clearLocked(ctx)
	c.mu.Unlock()
	c.flush()

	if token == "" {
		return nil
	}
	if err := c.backend.Revoke(ctx, token); err != nil {
		c.logger.Warn("remote sign out failed", "error", err)
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Subscribe registers fn for session events.
func (c *Client) Subscribe(fn func(Event)) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	return &subscription{client: c, id: id}
}

type subscription struct {
	client *Client
	id     uint64
	once   sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		c := s.client
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, sub := range c.subs {
			if sub.id == s.id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	})
}

func (c *Client) loadLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	sess, err := c.store.Load(ctx)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "load stored session")
	}
	c.session = sess
	c.loaded = true
	return nil
}

func (c *Client) setLocked(ctx context.Context, sess Session) {
	c.session = &sess
	c.loaded = true
	if err := c.store.Save(ctx, sess); err != nil {
		c.logger.Warn("persist session", "error", err)
	}
}

func (c *Client) clearLocked(ctx context.Context) {
	had := c.session != nil
	c.session = nil
	c.loaded = true
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("clear stored session", "error", err)
	}
	if had {
		c.publishLocked(EventSignedOut, nil)
	}
}

func (c *Client) publishLocked(typ EventType, sess *Session) {
	ev := Event{Type: typ}
	if sess != nil {
		cp := *sess
		ev.Session = &cp
	}
	c.pending = append(c.pending, ev)
}

// flush delivers queued events. Only one goroutine drains at a time; others
// leave their events for it.
func (c *Client) flush() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.pending) > 0 {
		ev := c.pending[0]
		c.pending = c.pending[1:]
		subs := append([]subscriber(nil), c.subs...)
		c.mu.Unlock()
		for _, sub := range subs {
			sub.fn(ev)
		}
		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}
