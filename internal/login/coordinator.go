// Package login signs a returning user in with a phone code. It never
// touches the profile store.
package login

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/flow"
	"github.com/nafee3/nafee3/internal/identity"
	"github.com/nafee3/nafee3/internal/logging"
	"github.com/nafee3/nafee3/internal/notification"
)

// State is a login step.
type State string

const (
	StateIdle          State = "idle"
	StateCodeRequested State = "code_requested"
	StateVerifying     State = "verifying"
	StateAuthenticated State = "authenticated"
	StateFailed        State = "failed"
)

var transitions = map[State][]State{
	StateIdle:          {StateCodeRequested, StateFailed},
	StateCodeRequested: {StateIdle, StateVerifying, StateFailed},
	StateVerifying:     {StateCodeRequested, StateAuthenticated, StateIdle, StateFailed},
}

var terminal = []State{StateAuthenticated, StateFailed}

// Options holds optional Coordinator settings.
type Options struct {
	Region string
	Logger *slog.Logger
}

// Snapshot is a consistent view of a coordinator.
type Snapshot struct {
	State    State
	Phone    string
	Channel  notification.Channel
	Identity *identity.Identity
	Err      error
}

// Coordinator runs one login attempt.
type Coordinator struct {
	identity identity.Gateway
	region   string
	logger   *slog.Logger
	machine  *flow.Machine[State]

	// Guarded by the machine lock.
	phone   string
	channel notification.Channel
	ident   *identity.Identity
	lastErr error
}

func NewCoordinator(ids identity.Gateway, opts Options) *Coordinator {
	logger := logging.OrDiscard(opts.Logger)
	return &Coordinator{
		identity: ids,
		region:   opts.Region,
		logger:   logger,
		machine: flow.New(StateIdle, transitions, flow.WithHook(func(from, to State) {
			logger.Info("login transition", "from", string(from), "to", string(to))
		})),
	}
}

func (c *Coordinator) State() State {
	return c.machine.State()
}

func (c *Coordinator) Snapshot() Snapshot {
	var snap Snapshot
	c.machine.View(func(s State) {
		snap = Snapshot{State: s, Phone: c.phone, Channel: c.channel, Err: c.lastErr}
		if c.ident != nil {
			id := *c.ident
			snap.Identity = &id
		}
	})
	return snap
}

// RequestCode sends a code to phone. Calling it again after a code was sent
// replaces the request, for example to switch channel. On failure the
// coordinator is back in idle.
func (c *Coordinator) RequestCode(ctx context.Context, phone string, channel notification.Channel) error {
	normalized, err := identity.NormalizePhone(phone, c.region)
	if err != nil {
		return apperr.Validation("invalid phone number", map[string]string{"phone": "must be a valid phone number"})
	}
	channel, err = notification.ParseChannel(string(channel))
	if err != nil {
		return apperr.Validation("invalid channel", map[string]string{"channel": err.Error()})
	}

	t, err := c.machine.Begin("request_code", StateIdle, []State{StateIdle, StateCodeRequested}, func() {
		c.phone, c.channel, c.lastErr = normalized, channel, nil
	})
	if err != nil {
		return err
	}

	if err := c.identity.SendCode(ctx, normalized, channel); err != nil {
		ferr := c.machine.Finish(t, StateIdle, func() {
			c.phone, c.channel, c.lastErr = "", "", err
		})
		if errors.Is(ferr, flow.ErrCancelled) {
			return ferr
		}
		return err
	}
	return c.machine.Finish(t, StateCodeRequested, nil)
}

// ConfirmCode verifies code for the requested phone.
func (c *Coordinator) ConfirmCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return apperr.Validation("code is required", map[string]string{"code": "cannot be blank"})
	}

	var phone string
	t, err := c.machine.Begin("confirm", StateVerifying, []State{StateCodeRequested}, func() {
		phone = c.phone
		c.lastErr = nil
	})
	if err != nil {
		return err
	}

	ident, err := c.identity.VerifyCode(ctx, phone, code)
	if err != nil {
		next := StateFailed
		switch apperr.KindOf(err) {
		case apperr.KindInvalidCode, apperr.KindExpiredCode, apperr.KindProviderUnavailable, apperr.KindNetwork:
			next = StateCodeRequested
		}
		ferr := c.machine.Finish(t, next, func() { c.lastErr = err })
		if errors.Is(ferr, flow.ErrCancelled) {
			return ferr
		}
		return err
	}

	if err := c.machine.Finish(t, StateAuthenticated, func() { c.ident = &ident }); err != nil {
		return err
	}
	c.logger.Info("login succeeded", "identity_id", ident.ID, "phone", logging.MaskPhone(ident.Phone))
	return nil
}

// Cancel abandons the attempt from any non-terminal state.
func (c *Coordinator) Cancel() error {
	return c.machine.Reset(terminal, func() {
		c.phone, c.channel, c.ident, c.lastErr = "", "", nil, nil
	})
}
