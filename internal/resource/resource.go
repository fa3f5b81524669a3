// Package resource models page-local async state: a value that is pending,
// ready or failed, loaded inside a mount scope that drops late results.
package resource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

type State int

const (
	Pending State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pending":
		*s = Pending
	case "ready":
		*s = Ready
	case "failed":
		*s = Failed
	default:
		return fmt.Errorf("unknown resource state %q", text)
	}
	return nil
}

var (
	// ErrUnmounted is returned when a result arrives after its scope closed.
	ErrUnmounted = errors.New("page unmounted")
	// ErrBusy is returned when an action is already in flight.
	ErrBusy = errors.New("action already in progress")
)

// Resource holds one async value. The zero value is Pending.
type Resource[T any] struct {
	mu    sync.RWMutex
	state State
	value T
	err   error
}

func (r *Resource[T]) Get() (State, T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state, r.value, r.err
}

func (r *Resource[T]) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Value returns the ready value, or the zero value otherwise.
func (r *Resource[T]) Value() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

func (r *Resource[T]) Reset() {
	r.mu.Lock()
	var zero T
	r.state, r.value, r.err = Pending, zero, nil
	r.mu.Unlock()
}

func (r *Resource[T]) Set(v T) {
	r.mu.Lock()
	r.state, r.value, r.err = Ready, v, nil
	r.mu.Unlock()
}

// Fail records err. A previously ready value is kept for display.
func (r *Resource[T]) Fail(err error) {
	r.mu.Lock()
	r.state, r.err = Failed, err
	r.mu.Unlock()
}

// Update mutates a ready value in place.
func (r *Resource[T]) Update(fn func(T) T) {
	r.mu.Lock()
	r.value = fn(r.value)
	r.mu.Unlock()
}

// Load runs fetch under scope and stores the outcome unless the scope closed
// first, in which case ErrUnmounted is returned and r is untouched.
func Load[T any](ctx context.Context, scope *Scope, r *Resource[T], fetch func(context.Context) (T, error)) error {
	ctx, cancel := scope.Bind(ctx)
	defer cancel()

	v, err := fetch(ctx)
	applied := scope.Apply(func() {
		if err != nil {
			r.Fail(err)
			return
		}
		r.Set(v)
	})
	if !applied {
		return ErrUnmounted
	}
	return err
}

// Scope is the lifetime of one mounted page.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

func (s *Scope) Context() context.Context { return s.ctx }

// Close unmounts the scope: in-flight work is cancelled and later Apply calls
// are ignored. Safe to call more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

func (s *Scope) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Apply runs fn only while the scope is alive and reports whether it ran.
func (s *Scope) Apply(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	fn()
	return true
}

// Bind derives a context from ctx that is also cancelled when the scope closes.
func (s *Scope) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

// Action guards a user-triggered operation so it has at most one call in
// flight, the equivalent of disabling its button while it runs.
type Action struct {
	running atomic.Bool
}

func (a *Action) Running() bool { return a.running.Load() }

func (a *Action) Run(fn func() error) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer a.running.Store(false)
	return fn()
}
