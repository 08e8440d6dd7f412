// Package circuit wraps sony/gobreaker with the options and states used across the module.
package circuit

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// State is the breaker state in the vocabulary used by logs and metrics.
type State string

const (
	StateClosed   State = "closed"
	StateHalfOpen State = "half_open"
	StateOpen     State = "open"
)

// ErrOpen is returned without calling the protected function while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

type settings struct {
	failureThreshold uint32
	openTimeout      time.Duration
	halfOpenRequests uint32
	onStateChange    func(name string, from, to State)
}

type Option func(*settings)

// WithFailureThreshold opens the breaker after n consecutive failures.
func WithFailureThreshold(n uint32) Option {
	return func(s *settings) { s.failureThreshold = n }
}

// WithOpenTimeout sets how long the breaker stays open before probing.
func WithOpenTimeout(d time.Duration) Option {
	return func(s *settings) { s.openTimeout = d }
}

// WithHalfOpenRequests bounds probe calls while half-open.
func WithHalfOpenRequests(n uint32) Option {
	return func(s *settings) { s.halfOpenRequests = n }
}

// WithStateChange registers a callback fired on every transition.
func WithStateChange(fn func(name string, from, to State)) Option {
	return func(s *settings) { s.onStateChange = fn }
}

// Breaker protects a flaky dependency.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// New creates a breaker that opens after 5 consecutive failures for 30 seconds
// unless overridden.
func New(name string, opts ...Option) *Breaker {
	s := settings{
		failureThreshold: 5,
		openTimeout:      30 * time.Second,
		halfOpenRequests: 1,
	}
	for _, opt := range opts {
		opt(&s)
	}

	gs := gobreaker.Settings{
		Name:        name,
		MaxRequests: s.halfOpenRequests,
		Timeout:     s.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.failureThreshold
		},
	}
	if s.onStateChange != nil {
		gs.OnStateChange = func(name string, from, to gobreaker.State) {
			s.onStateChange(name, fromGobreaker(from), fromGobreaker(to))
		}
	}

	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker(gs)}
}

// Execute runs fn unless the breaker is open. A non-nil error from fn counts
// as a failure.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) State() State {
	return fromGobreaker(b.cb.State())
}

func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
