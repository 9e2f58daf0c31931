// Package flow provides the guarded state machine shared by the signup and
// login coordinators: a transition table, a single in-flight operation, and
// cooperative cancellation of pending results.
package flow

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrBusy is returned when an operation is started while another one is
	// still in flight.
	ErrBusy = errors.New("flow: operation already in progress")
	// ErrInvalidState is returned when an operation is not valid from the
	// current state.
	ErrInvalidState = errors.New("flow: operation not valid in current state")
	// ErrInvalidTransition is returned for a move the table does not allow.
	ErrInvalidTransition = errors.New("flow: transition not allowed")
	// ErrCancelled is returned by Finish when the machine was reset while the
	// operation was running; its result must be discarded.
	ErrCancelled = errors.New("flow: operation cancelled")
)

// Hook observes a completed transition.
type Hook[S comparable] func(from, to S)

// Option customizes a Machine.
type Option[S comparable] func(*Machine[S])

// WithHook registers fn to run after every state change, outside the lock.
func WithHook[S comparable](fn Hook[S]) Option[S] {
	return func(m *Machine[S]) {
		if fn != nil {
			m.hooks = append(m.hooks, fn)
		}
	}
}

// Ticket identifies one in-flight operation.
type Ticket struct {
	gen uint64
}

// Machine is safe for concurrent use.
type Machine[S comparable] struct {
	mu      sync.Mutex
	initial S
	state   S
	allowed map[S]map[S]struct{}
	gen     uint64
	busy    bool
	hooks   []Hook[S]
}

// New builds a machine starting in initial. table lists, for each state, the
// states it may move to.
func New[S comparable](initial S, table map[S][]S, opts ...Option[S]) *Machine[S] {
	m := &Machine[S]{
		initial: initial,
		state:   initial,
		allowed: make(map[S]map[S]struct{}, len(table)),
	}
	for from, targets := range table {
		set := make(map[S]struct{}, len(targets))
		for _, to := range targets {
			set[to] = struct{}{}
		}
		m.allowed[from] = set
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine[S]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Busy reports whether an operation is in flight.
func (m *Machine[S]) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

// View runs fn with the current state under the machine lock, so fields
// guarded by the machine can be read consistently with it.
func (m *Machine[S]) View(fn func(state S)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.state)
}

// Begin starts an operation that is valid only from one of the from states,
// moving to enter. apply, when set, runs under the lock after the move.
func (m *Machine[S]) Begin(op string, enter S, from []S, apply func()) (Ticket, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return Ticket{}, ErrBusy
	}
	prev := m.state
	if !contains(from, prev) {
		m.mu.Unlock()
		return Ticket{}, fmt.Errorf("%w: %s from %v", ErrInvalidState, op, prev)
	}
	if enter != prev && !m.can(prev, enter) {
		m.mu.Unlock()
		return Ticket{}, fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, prev, enter)
	}
	m.state = enter
	m.busy = true
	if apply != nil {
		apply()
	}
	t := Ticket{gen: m.gen}
	m.mu.Unlock()

	m.notify(prev, enter)
	return t, nil
}

// Finish ends the operation identified by t, moving to to and running apply
// under the lock. When the machine was reset since Begin, nothing happens
// and ErrCancelled is returned.
func (m *Machine[S]) Finish(t Ticket, to S, apply func()) error {
	m.mu.Lock()
	if t.gen != m.gen || !m.busy {
		m.mu.Unlock()
		return ErrCancelled
	}
	m.busy = false
	prev := m.state
	if to != prev && !m.can(prev, to) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, prev, to)
	}
	m.state = to
	if apply != nil {
		apply()
	}
	m.mu.Unlock()

	m.notify(prev, to)
	return nil
}

// Step moves to to while the operation identified by t stays in flight.
func (m *Machine[S]) Step(t Ticket, to S, apply func()) error {
	m.mu.Lock()
	if t.gen != m.gen || !m.busy {
		m.mu.Unlock()
		return ErrCancelled
	}
	prev := m.state
	if to != prev && !m.can(prev, to) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, prev, to)
	}
	m.state = to
	if apply != nil {
		apply()
	}
	m.mu.Unlock()

	m.notify(prev, to)
	return nil
}

// Reset returns to the initial state from any state not listed in terminal,
// discarding the result of any in-flight operation.
func (m *Machine[S]) Reset(terminal []S, apply func()) error {
	m.mu.Lock()
	prev := m.state
	if contains(terminal, prev) {
		m.mu.Unlock()
		return fmt.Errorf("%w: reset from %v", ErrInvalidState, prev)
	}
	m.gen++
	m.busy = false
	m.state = m.initial
	if apply != nil {
		apply()
	}
	m.mu.Unlock()

	m.notify(prev, m.initial)
	return nil
}

func (m *Machine[S]) can(from, to S) bool {
	_, ok := m.allowed[from][to]
	return ok
}

func (m *Machine[S]) notify(from, to S) {
	if from == to {
		return
	}
	for _, h := range m.hooks {
		h(from, to)
	}
}

func contains[S comparable](set []S, s S) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
