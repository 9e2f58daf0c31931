// Package session tracks who is signed in for the life of the application.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nafee3/nafee3/internal/identity"
	"github.com/nafee3/nafee3/internal/logging"
)

// State is what the rest of the app reads. While Loading is true User is
// not yet known.
type State struct {
	User    *identity.Identity
	Loading bool
}

// Manager is the single writer of State. It resolves the stored session once
// at Start and then follows identity events.
type Manager struct {
	gateway identity.Gateway
	logger  *slog.Logger
	ready   chan struct{}

	mu      sync.Mutex
	user    *identity.Identity
	loading bool
	// early holds the user from events seen before the first lookup returns.
	early    *identity.Identity
	hasEarly bool
	started  bool
	sub      identity.Subscription
	watchers map[uint64]func(State)
	nextID   uint64
	queue    []State
	draining bool
}

func New(gateway identity.Gateway, logger *slog.Logger) *Manager {
	return &Manager{
		gateway:  gateway,
		logger:   logging.OrDiscard(logger),
		ready:    make(chan struct{}),
		loading:  true,
		watchers: make(map[uint64]func(State)),
	}
}

// Start subscribes to identity events and then resolves the current session.
// Loading ends only when that lookup returns; an event seen before then
// decides the user instead of the lookup result. Calling Start again does
// nothing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	sub := m.gateway.Subscribe(m.handle)
	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()

	sess, err := m.gateway.CurrentSession(ctx)
	if err != nil {
		m.logger.Warn("resolve session", "error", err)
	}

	m.mu.Lock()
	if m.loading {
		m.user = nil
		switch {
		case m.hasEarly:
			m.user = m.early
		case err == nil && sess != nil:
			ident := sess.Identity
			m.user = &ident
		}
		m.early, m.hasEarly = nil, false
		m.resolveLocked()
		m.enqueueLocked()
	}
	m.mu.Unlock()
	m.flush()
	return err
}

// State returns user and loading together.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Ready is closed once loading has turned false.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Watch calls fn with every new State, in order. The returned func stops it.
func (m *Manager) Watch(fn func(State)) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.watchers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
		})
	}
}

// Logout signs out through the gateway. The user is cleared even when the
// remote call fails; that error is returned.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.gateway.SignOut(ctx)
	if err != nil {
		m.logger.Warn("logout", "error", err)
	}

	m.mu.Lock()
	if m.user != nil || m.loading {
		m.user = nil
		m.early, m.hasEarly = nil, false
		m.resolveLocked()
		m.enqueueLocked()
	}
	m.mu.Unlock()
	m.flush()
	return err
}

// Close stops following identity events.
func (m *Manager) Close() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

func (m *Manager) handle(ev identity.Event) {
	m.mu.Lock()
	user := m.user
	if m.loading {
		user = m.early
	}
	switch ev.Type {
	case identity.EventSignedIn, identity.EventTokenRefreshed:
		if ev.Session != nil {
			ident := ev.Session.Identity
			user = &ident
		}
	case identity.EventSignedOut:
		user = nil
	default:
		m.mu.Unlock()
		return
	}
	if m.loading {
		m.early, m.hasEarly = user, true
		m.mu.Unlock()
		return
	}
	m.user = user
	m.enqueueLocked()
	m.mu.Unlock()
	m.flush()
}

// resolveLocked ends loading. Start and Logout are the only callers.
func (m *Manager) resolveLocked() {
	if !m.loading {
		return
	}
	m.loading = false
	close(m.ready)
}

func (m *Manager) stateLocked() State {
	st := State{Loading: m.loading}
	if m.user != nil {
		ident := *m.user
		st.User = &ident
	}
	return st
}

func (m *Manager) enqueueLocked() {
	m.queue = append(m.queue, m.stateLocked())
}

func (m *Manager) flush() {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	for len(m.queue) > 0 {
		st := m.queue[0]
		m.queue = m.queue[1:]
		fns := make([]func(State), 0, len(m.watchers))
		for id := uint64(1); id <= m.nextID; id++ {
			if fn, ok := m.watchers[id]; ok {
				fns = append(fns, fn)
			}
		}
		m.mu.Unlock()
		for _, fn := range fns {
			fn(st)
		}
		m.mu.Lock()
	}
	m.draining = false
	m.mu.Unlock()
}
