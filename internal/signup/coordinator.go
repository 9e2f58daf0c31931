// Package signup drives a new user from phone entry to a stored profile.
package signup

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/flow"
	"github.com/nafee3/nafee3/internal/identity"
	"github.com/nafee3/nafee3/internal/logging"
	"github.com/nafee3/nafee3/internal/media"
	"github.com/nafee3/nafee3/internal/profile"
)

// State is a signup step.
type State string

const (
	StateIdle          State = "idle"
	StateCodeRequested State = "code_requested"
	StateVerifying     State = "verifying"
	StateProvisioning  State = "provisioning_profile"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

var transitions = map[State][]State{
	StateIdle:          {StateCodeRequested, StateProvisioning, StateFailed},
	StateCodeRequested: {StateVerifying, StateIdle, StateFailed},
	StateVerifying:     {StateCodeRequested, StateProvisioning, StateIdle, StateFailed},
	StateProvisioning:  {StateCompleted, StateIdle, StateFailed},
}

var terminal = []State{StateCompleted, StateFailed}

// Options holds optional Coordinator settings.
type Options struct {
	// Region is the default phone region.
	Region string
	Logger *slog.Logger
}

// Snapshot is a consistent view of a coordinator.
type Snapshot struct {
	State    State
	Pending  *PendingSignup
	Identity *identity.Identity
	Profile  *profile.Profile
	// Err is the last failure; for StateFailed it is the reason.
	Err error
}

// Coordinator runs one signup attempt. Build a new one per attempt; it owns
// its PendingSignup and never shares it.
type Coordinator struct {
	identity identity.Gateway
	profiles profile.Gateway
	photos   media.Store
	region   string
	logger   *slog.Logger
	now      func() time.Time
	machine  *flow.Machine[State]

	// Guarded by the machine lock.
	pending *PendingSignup
	ident   *identity.Identity
	created *profile.Profile
	lastErr error
}

// NewCoordinator builds a coordinator. photos may be nil when signups never
// carry a photo.
func NewCoordinator(ids identity.Gateway, profiles profile.Gateway, photos media.Store, opts Options) *Coordinator {
	logger := logging.OrDiscard(opts.Logger)
	return &Coordinator{
		identity: ids,
		profiles: profiles,
		photos:   photos,
		region:   opts.Region,
		logger:   logger,
		now:      time.Now,
		machine: flow.New(StateIdle, transitions, flow.WithHook(func(from, to State) {
			logger.Info("signup transition", "from", string(from), "to", string(to))
		})),
	}
}

// State returns the current step.
func (c *Coordinator) State() State {
	return c.machine.State()
}

// Snapshot returns the state together with the data it guards.
func (c *Coordinator) Snapshot() Snapshot {
	var snap Snapshot
	c.machine.View(func(s State) {
		snap.State = s
		snap.Err = c.lastErr
		if c.pending != nil {
			p := *c.pending
			snap.Pending = &p
		}
		if c.ident != nil {
			id := *c.ident
			snap.Identity = &id
		}
		if c.created != nil {
			p := *c.created
			snap.Profile = &p
		}
	})
	return snap
}

// Start validates the form, stages it and requests a code. A failed request
// returns to idle with nothing staged.
func (c *Coordinator) Start(ctx context.Context, p Payload) error {
	pending, err := stage(p, c.region, c.now().UTC())
	if err != nil {
		return err
	}
	if pending.Photo != nil && c.photos == nil {
		return apperr.Validation("photo uploads are not available", map[string]string{"photo": "not supported"})
	}

	t, err := c.machine.Begin("start", StateIdle, []State{StateIdle}, func() {
		c.pending = pending
		c.lastErr = nil
	})
	if err != nil {
		return err
	}

	if err := c.identity.SendCode(ctx, pending.Phone, pending.Channel); err != nil {
		ferr := c.machine.Finish(t, StateIdle, func() {
			c.pending = nil
			c.lastErr = err
		})
		if errors.Is(ferr, flow.ErrCancelled) {
			return ferr
		}
		return err
	}
	return c.machine.Finish(t, StateCodeRequested, nil)
}

// ResendCode requests a fresh code for the staged phone on the same channel.
func (c *Coordinator) ResendCode(ctx context.Context) error {
	var pending PendingSignup
	t, err := c.machine.Begin("resend", StateCodeRequested, []State{StateCodeRequested}, func() {
		pending = *c.pending
	})
	if err != nil {
		return err
	}
	err = c.identity.SendCode(ctx, pending.Phone, pending.Channel)
	ferr := c.machine.Finish(t, StateCodeRequested, func() { c.lastErr = err })
	if err != nil {
		return err
	}
	return ferr
}

// ConfirmCode verifies code and, on success, provisions the profile in the
// same call. Code errors and provider outages return to code_requested so
// the user can try again without a new Start.
func (c *Coordinator) ConfirmCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return apperr.Validation("code is required", map[string]string{"code": "cannot be blank"})
	}

	var phone string
	t, err := c.machine.Begin("confirm", StateVerifying, []State{StateCodeRequested}, func() {
		phone = c.pending.Phone
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

	c.logger.Info("phone verified", "identity_id", ident.ID, "phone", logging.MaskPhone(ident.Phone))
	if err := c.machine.Step(t, StateProvisioning, func() { c.ident = &ident }); err != nil {
		return err
	}
	return c.provision(ctx, t)
}

// RetryProvisioning re-runs only the photo upload (if still missing) and the
// profile create after a transient failure.
func (c *Coordinator) RetryProvisioning(ctx context.Context) error {
	t, err := c.machine.Begin("retry_provisioning", StateProvisioning, []State{StateProvisioning}, func() {
		c.lastErr = nil
	})
	if err != nil {
		return err
	}
	return c.provision(ctx, t)
}

// Resume provisions a profile for an identity that was verified earlier but
// never got one, for example after an abandoned signup.
func (c *Coordinator) Resume(ctx context.Context, ident identity.Identity, p Payload) error {
	if p.Phone == "" {
		p.Phone = ident.Phone
	}
	pending, err := stage(p, c.region, c.now().UTC())
	if err != nil {
		return err
	}
	if pending.Photo != nil && c.photos == nil {
		return apperr.Validation("photo uploads are not available", map[string]string{"photo": "not supported"})
	}
	t, err := c.machine.Begin("resume", StateProvisioning, []State{StateIdle}, func() {
		c.pending = pending
		c.ident = &ident
		c.lastErr = nil
	})
	if err != nil {
		return err
	}
	return c.provision(ctx, t)
}

// Cancel abandons the attempt from any non-terminal state. A verified
// identity is left as is; results of an in-flight call are discarded.
func (c *Coordinator) Cancel() error {
	return c.machine.Reset(terminal, func() {
		c.pending = nil
		c.ident = nil
		c.lastErr = nil
	})
}

func (c *Coordinator) provision(ctx context.Context, t flow.Ticket) error {
	var (
		pending PendingSignup
		ident   identity.Identity
		ok      bool
	)
	c.machine.View(func(State) {
		if c.pending != nil && c.ident != nil {
			pending, ident, ok = *c.pending, *c.ident, true
		}
	})
	if !ok {
		return flow.ErrCancelled
	}

	if pending.Photo != nil && pending.PhotoURL == "" {
		url, err := c.photos.Put(ctx, media.KindProfile, pending.Photo.Data)
		if err != nil {
			return c.provisionFailed(t, err)
		}
		if err := c.machine.Step(t, StateProvisioning, func() { c.pending.PhotoURL = url }); err != nil {
			return err
		}
		pending.PhotoURL = url
	}

	stored, err := c.profiles.Create(ctx, profile.Profile{
		ProfileID:          ident.ID,
		FullName:           pending.FullName,
		PhoneNumber:        ident.Phone,
		DateOfBirth:        pending.DateOfBirth,
		ServiceCity:        pending.ServiceCity,
		ServiceArea:        pending.ServiceArea,
		ServiceDescription: pending.ServiceDescription,
		ProfilePhoto:       pending.PhotoURL,
		PortfolioPhotos:    []string{},
	})
	if err != nil {
		return c.provisionFailed(t, err)
	}

	if err := c.machine.Finish(t, StateCompleted, func() {
		c.created = &stored
		c.pending = nil
	}); err != nil {
		return err
	}
	c.logger.Info("signup completed", "profile_id", stored.ProfileID)
	return nil
}

// provisionFailed keeps the verified identity and staged data for transient
// failures so RetryProvisioning can pick up without a new code.
func (c *Coordinator) provisionFailed(t flow.Ticket, err error) error {
	next := StateFailed
	if apperr.Retryable(err) {
		next = StateProvisioning
	}
	c.logger.Warn("profile provisioning failed", "error", err, "retryable", next == StateProvisioning)
	ferr := c.machine.Finish(t, next, func() { c.lastErr = err })
	if errors.Is(ferr, flow.ErrCancelled) {
		return ferr
	}
	return err
}
