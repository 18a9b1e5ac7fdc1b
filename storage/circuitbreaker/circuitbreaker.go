// Package circuitbreaker wraps a users.Storage so that a failing backend is
// skipped for a cool-down period instead of holding every delivery until its
// own timeout. While the circuit is open, writes fail immediately with
// ErrCircuitOpen and the webhook answers 500, so the sender redelivers later.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mihaimyh/lemongate/pkg/users"
)

// State represents the current state of the circuit breaker.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned when the circuit breaker is open. It matches
// users.ErrStorageUnavailable.
var ErrCircuitOpen = fmt.Errorf("circuit breaker is open: %w", users.ErrStorageUnavailable)

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	mu sync.RWMutex

	state               State
	failureThreshold    int
	resetTimeout        time.Duration
	consecutiveFailures int
	lastFailureTime     time.Time
	now                 func() time.Time

	onStateChange func(state State)
}

// NewBreaker opens after failureThreshold consecutive failures and lets a
// trial call through once resetTimeout has passed.
func NewBreaker(failureThreshold int, resetTimeout time.Duration, onStateChange func(state State)) *Breaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &Breaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
		onStateChange:    onStateChange,
	}
}

// State returns the current state of the circuit breaker.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.currentState()
}

func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.lastFailureTime) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Execute runs fn unless the circuit is open. Errors for which countsAsFailure
// is false are returned without affecting the circuit.
func (b *Breaker) Execute(fn func() error) error {
	if b.State() == StateOpen {
		return ErrCircuitOpen
	}

	err := fn()
	if err != nil && countsAsFailure(err) {
		b.failure()
		return err
	}

	b.success()
	return err
}

func (b *Breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateClosed {
		b.changeState(StateClosed)
	}
	b.consecutiveFailures = 0
}

func (b *Breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	halfOpen := b.currentState() == StateHalfOpen
	b.consecutiveFailures++
	b.lastFailureTime = b.now()

	switch {
	case halfOpen:
		// A failed trial re-opens and restarts the cool-down.
		b.state = StateOpen
		b.notify(StateOpen)
	case b.state == StateClosed && b.consecutiveFailures >= b.failureThreshold:
		b.changeState(StateOpen)
	}
}

func (b *Breaker) changeState(newState State) {
	if b.state != newState {
		b.state = newState
		b.notify(newState)
	}
}

func (b *Breaker) notify(state State) {
	if b.onStateChange != nil {
		b.onStateChange(state)
	}
}

// countsAsFailure separates backend faults from answers about the data.
func countsAsFailure(err error) bool {
	return !errors.Is(err, users.ErrUserNotFound) &&
		!errors.Is(err, users.ErrInvalidEmail) &&
		!errors.Is(err, context.Canceled)
}

// Storage wraps a users.Storage with circuit breaker protection.
type Storage struct {
	storage users.Storage
	breaker *Breaker
}

// New creates a new storage wrapper with circuit breaker.
func New(storage users.Storage, breaker *Breaker) *Storage {
	return &Storage{
		storage: storage,
		breaker: breaker,
	}
}

// UpsertUser implements users.Storage
func (s *Storage) UpsertUser(ctx context.Context, update users.Update) error {
	return s.breaker.Execute(func() error {
		return s.storage.UpsertUser(ctx, update)
	})
}

// GetUser implements users.Storage
func (s *Storage) GetUser(ctx context.Context, email string) (*users.Record, error) {
	var rec *users.Record
	err := s.breaker.Execute(func() error {
		var e error
		rec, e = s.storage.GetUser(ctx, email)
		return e
	})
	return rec, err
}
