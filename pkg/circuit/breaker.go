// Package circuit provides a small circuit breaker used around calls to the
// payment network, so a flapping connection degrades into fast failures
// instead of piling up blocked terminals.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
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

// ErrOpen is returned without invoking the protected call while the breaker
// is open.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds breaker tuning.
type Config struct {
	Name          string
	MaxFailures   int           // consecutive failures before opening
	Cooldown      time.Duration // how long to stay open before probing
	OnStateChange func(name string, from, to State)
}

// Breaker guards a single downstream dependency.
type Breaker struct {
	cfg Config

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{cfg: cfg}
}

// Execute runs fn under breaker protection. A context error counts as a
// failure of the dependency only if fn was actually invoked.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(err == nil)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Since(b.lastFailure) < b.cfg.Cooldown {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
	}
	return nil
}

func (b *Breaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		b.failures = 0
		if b.state != StateClosed {
			b.transition(StateClosed)
		}
		return
	}

	b.failures++
	b.lastFailure = time.Now()
	if b.state == StateHalfOpen || b.failures >= b.cfg.MaxFailures {
		b.transition(StateOpen)
	}
}

// transition requires b.mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.failures = 0
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.transition(StateClosed)
}
