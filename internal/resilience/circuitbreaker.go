// Package resilience keeps the analyzer available when a model backend
// misbehaves.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open) that
// stops calling a backend after repeated failures and probes it again after a
// cool-down. [FallbackGroup] puts a breaker in front of each of several
// interchangeable backends and tries them in order. [LLMFallback] is the
// [llm.Provider] built on top of it.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is
// open and the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Enough
	// successes close the breaker; any failure re-opens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels log lines and state-change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before it allows
	// probes. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful probes needed to close the
	// breaker again. Default: 3.
	HalfOpenMax int

	// IsFailure decides whether an error counts against the breaker. The
	// default counts every error except context cancellation, which is the
	// caller giving up rather than the backend failing.
	IsFailure func(error) bool

	// OnStateChange, if set, is called after every transition with the
	// breaker name and the new state. It runs without the breaker lock held.
	OnStateChange func(name string, to State)

	// Now overrides the clock. Default: time.Now.
	Now func() time.Time

	// Logger receives transition logs. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultIsFailure counts every non-nil error except [context.Canceled].
func DefaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	name          string
	maxFailures   int
	resetTimeout  time.Duration
	halfOpenMax   int
	isFailure     func(error) bool
	onStateChange func(string, State)
	now           func() time.Time
	logger        *slog.Logger

	mu              sync.Mutex
	state           State
	consecutiveFail int
	openedAt        time.Time
	halfOpenCalls   int
	halfOpenOK      int
}

// NewCircuitBreaker creates a [CircuitBreaker]. Zero-value config fields are
// replaced with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = DefaultIsFailure
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CircuitBreaker{
		name:          cfg.Name,
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		halfOpenMax:   cfg.HalfOpenMax,
		isFailure:     cfg.IsFailure,
		onStateChange: cfg.OnStateChange,
		now:           cfg.Now,
		logger:        cfg.Logger,
		state:         StateClosed,
	}
}

// Name returns the configured breaker name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn if the breaker allows it and returns fn's error. In the
// open state it returns [ErrCircuitOpen] without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	var changed []State
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		changed = append(changed, StateHalfOpen)
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMax {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	inHalfOpen := cb.state == StateHalfOpen
	if inHalfOpen {
		cb.halfOpenCalls++
	}
	cb.mu.Unlock()
	cb.notify(changed)

	err := fn()

	cb.mu.Lock()
	switch {
	case err == nil:
		changed = cb.recordSuccess(inHalfOpen)
	case cb.isFailure(err):
		changed = cb.recordFailure(inHalfOpen)
	default:
		changed = cb.releaseProbe(inHalfOpen)
	}
	cb.mu.Unlock()
	cb.notify(changed)
	return err
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to State) {
	cb.state = to
	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
		cb.logger.Warn("resilience: circuit opened", "name", cb.name, "consecutive_failures", cb.consecutiveFail)
	case StateHalfOpen:
		cb.halfOpenCalls, cb.halfOpenOK = 0, 0
		cb.logger.Info("resilience: circuit half-open", "name", cb.name)
	case StateClosed:
		cb.consecutiveFail, cb.halfOpenCalls, cb.halfOpenOK = 0, 0, 0
		cb.logger.Info("resilience: circuit closed", "name", cb.name)
	}
}

func (cb *CircuitBreaker) recordFailure(inHalfOpen bool) []State {
	cb.consecutiveFail++
	if (inHalfOpen && cb.state == StateHalfOpen) || (cb.state == StateClosed && cb.consecutiveFail >= cb.maxFailures) {
		cb.transition(StateOpen)
		return []State{StateOpen}
	}
	return nil
}

func (cb *CircuitBreaker) recordSuccess(inHalfOpen bool) []State {
	if !inHalfOpen {
		cb.consecutiveFail = 0
		return nil
	}
	if cb.state != StateHalfOpen {
		return nil
	}
	cb.halfOpenOK++
	if cb.halfOpenOK >= cb.halfOpenMax {
		cb.transition(StateClosed)
		return []State{StateClosed}
	}
	return nil
}

// releaseProbe returns an unused probe slot after an ignored error.
func (cb *CircuitBreaker) releaseProbe(inHalfOpen bool) []State {
	if inHalfOpen && cb.state == StateHalfOpen && cb.halfOpenCalls > 0 {
		cb.halfOpenCalls--
	}
	return nil
}

func (cb *CircuitBreaker) notify(states []State) {
	if cb.onStateChange == nil {
		return
	}
	for _, s := range states {
		cb.onStateChange(cb.name, s)
	}
}

// State returns the current state. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed].
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	prev := cb.state
	cb.transition(StateClosed)
	cb.mu.Unlock()
	if prev != StateClosed {
		cb.notify([]State{StateClosed})
	}
}
