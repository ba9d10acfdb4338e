// Package resilience guards calls to the account-data service with circuit
// breakers, so a broker server that keeps failing is left alone for a while
// instead of being hammered on every scheduled sync.
package resilience

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// CircuitState is the state of a breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// ErrCircuitOpen is returned without calling the server while a breaker is
// open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures a breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// SuccessThreshold successes while half-open close it again.
	SuccessThreshold int
	// Cooldown is how long an open circuit rejects calls before letting a
	// probe through.
	Cooldown time.Duration
	// IsFailure decides whether an error counts against the server. Nil
	// counts every error.
	IsFailure func(error) bool
}

// DefaultCircuitBreakerConfig opens after three failed syncs and probes
// again after five minutes.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Cooldown:         5 * time.Minute,
	}
}

// CircuitBreaker tracks the health of one broker server.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	now    func() time.Time

	mu        sync.Mutex
	state     CircuitState
	streak    int // consecutive failures when closed, successes when half-open
	openedAt  time.Time
	lastError string

	requests, failures, rejected int64
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 1
	}
	return &CircuitBreaker{name: name, config: config, now: time.Now, state: CircuitClosed}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	_, err := ExecuteWithResult(cb, ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// ExecuteWithResult runs fn unless the circuit is open and records the
// outcome. fn must honour ctx; a call that ends because ctx did is not held
// against the server.
func ExecuteWithResult[T any](cb *CircuitBreaker, ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := cb.admit(); err != nil {
		return zero, err
	}

	v, err := fn()
	switch {
	case err == nil:
		cb.succeeded()
	case ctx.Err() != nil:
		// cancelled by the caller
	case cb.config.IsFailure != nil && !cb.config.IsFailure(err):
		// the server answered, the request was wrong
		cb.succeeded()
	default:
		cb.failed(err)
	}
	if err != nil {
		return zero, err
	}
	return v, nil
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.openedAt) < cb.config.Cooldown {
			cb.rejected++
			return ErrCircuitOpen
		}
		cb.setState(CircuitHalfOpen)
	}
	cb.requests++
	return nil
}

func (cb *CircuitBreaker) succeeded() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitHalfOpen:
		cb.streak++
		if cb.streak >= cb.config.SuccessThreshold {
			cb.setState(CircuitClosed)
		}
	default:
		cb.streak = 0
	}
}

func (cb *CircuitBreaker) failed(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastError = err.Error()
	switch cb.state {
	case CircuitHalfOpen:
		cb.setState(CircuitOpen)
	case CircuitClosed:
		cb.streak++
		if cb.streak >= cb.config.FailureThreshold {
			cb.setState(CircuitOpen)
		}
	}
}

func (cb *CircuitBreaker) setState(s CircuitState) {
	cb.state = s
	cb.streak = 0
	if s == CircuitOpen {
		cb.openedAt = cb.now()
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the breaker name, the broker server it guards.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// CircuitBreakerStats is a snapshot of one breaker.
type CircuitBreakerStats struct {
	Name      string       `json:"name"`
	State     CircuitState `json:"state"`
	Requests  int64        `json:"requests"`
	Failures  int64        `json:"failures"`
	Rejected  int64        `json:"rejected"`
	LastError string       `json:"last_error,omitempty"`
	// RetryAt is when an open circuit lets the next probe through.
	RetryAt *time.Time `json:"retry_at,omitempty"`
}

// Stats returns a snapshot of the breaker.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := CircuitBreakerStats{
		Name:      cb.name,
		State:     cb.state,
		Requests:  cb.requests,
		Failures:  cb.failures,
		Rejected:  cb.rejected,
		LastError: cb.lastError,
	}
	if cb.state == CircuitOpen {
		at := cb.openedAt.Add(cb.config.Cooldown)
		s.RetryAt = &at
	}
	return s
}

// Registry hands out one breaker per broker server, so an outage at one
// prop firm does not block syncing accounts at another.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	config   CircuitBreakerConfig
}

// NewRegistry creates a registry whose breakers share config.
func NewRegistry(config CircuitBreakerConfig) *Registry {
	return &Registry{breakers: make(map[string]*CircuitBreaker), config: config}
}

// Get returns the breaker for server, creating it on first use.
func (r *Registry) Get(server string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[server]
	if !ok {
		cb = NewCircuitBreaker(server, r.config)
		r.breakers[server] = cb
	}
	return cb
}

// Stats returns every breaker's snapshot, sorted by server.
func (r *Registry) Stats() []CircuitBreakerStats {
	r.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.Unlock()

	out := make([]CircuitBreakerStats, 0, len(breakers))
	for _, cb := range breakers {
		out = append(out, cb.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
