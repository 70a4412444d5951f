// Package circuitbreaker stops calling a dependency that keeps failing and
// tries it again after a cooldown. The API puts one in front of the Redis
// read models so an outage costs one fast error per call instead of a timeout.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prepwise/progression-engine/pkg/logger"
	"github.com/prepwise/progression-engine/pkg/timeutil"
)

// State represents the current state of the breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown has passed.
	StateOpen
	// StateHalfOpen lets a limited number of trial calls through.
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

var (
	// ErrOpen is returned without calling the dependency while the breaker is open.
	ErrOpen = errors.New("circuit breaker is open")
	// ErrTrialInFlight is returned in half-open state once every trial slot is taken.
	ErrTrialInFlight = errors.New("circuit breaker trial in flight")
)

// IsRejected reports whether err came from the breaker rather than the dependency.
func IsRejected(err error) bool {
	return errors.Is(err, ErrOpen) || errors.Is(err, ErrTrialInFlight)
}

// Config holds breaker settings. Zero values take the defaults.
type Config struct {
	Name string

	// FailureThreshold consecutive failures open the breaker. Default: 5
	FailureThreshold int

	// SuccessThreshold consecutive trial successes close it again. Default: 2
	SuccessThreshold int

	// Cooldown is the time spent open before probing. Default: 30s
	Cooldown time.Duration

	// HalfOpenTrials is the number of concurrent trials. Default: 1
	HalfOpenTrials int

	// IsFailure filters errors that say nothing about the dependency's
	// health, such as a cache miss. Nil counts every error.
	IsFailure func(error) bool

	OnStateChange func(name string, from, to State)

	Clock timeutil.Clock
}

func (c *Config) withDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.HalfOpenTrials <= 0 {
		c.HalfOpenTrials = 1
	}
	if c.Clock == nil {
		c.Clock = timeutil.SystemClock{}
	}
}

// Counts holds call statistics since the last Reset.
type Counts struct {
	Requests             int
	Rejected             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// Breaker implements the circuit breaker pattern. It is safe for concurrent use.
type Breaker struct {
	config Config

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	trials   int
}

// New creates a closed breaker.
func New(config Config) *Breaker {
	config.withDefaults()
	return &Breaker{config: config, state: StateClosed}
}

// ForCache returns a breaker tuned for a read cache: it opens quickly and
// tries again soon, logging every transition.
func ForCache(name string, isFailure func(error) bool, log *logger.Logger) *Breaker {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("circuit_breaker"), logger.String("breaker", name))
	return New(Config{
		Name:             name,
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Cooldown:         10 * time.Second,
		HalfOpenTrials:   1,
		IsFailure:        isFailure,
		OnStateChange: func(_ string, from, to State) {
			if to == StateOpen {
				log.Warn("breaker opened, calls are short-circuited",
					logger.String("from", from.String()))
				return
			}
			log.Info("breaker state changed",
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
}

// Do runs fn unless the breaker rejects the call, and records the outcome.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.config.Clock.Now().Sub(b.openedAt) < b.config.Cooldown {
			b.counts.Rejected++
			return ErrOpen
		}
		b.setState(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if b.trials >= b.config.HalfOpenTrials {
			b.counts.Rejected++
			return ErrTrialInFlight
		}
		b.trials++
	}
	b.counts.Requests++
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := err != nil
	if failed && b.config.IsFailure != nil {
		failed = b.config.IsFailure(err)
	}

	if b.state == StateHalfOpen && b.trials > 0 {
		b.trials--
	}

	if !failed {
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if b.state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.config.SuccessThreshold {
			b.setState(StateClosed)
		}
		return
	}

	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0
	switch b.state {
	case StateClosed:
		if b.counts.ConsecutiveFailures >= b.config.FailureThreshold {
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		b.setState(StateOpen)
	}
}

// setState must be called with mu held.
func (b *Breaker) setState(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.counts.ConsecutiveSuccesses = 0
	b.counts.ConsecutiveFailures = 0
	b.trials = 0
	if to == StateOpen {
		b.openedAt = b.config.Clock.Now()
	}
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.config.Name, from, to)
	}
}

// State returns the current state. An open breaker whose cooldown has passed
// still reports open until the next call tries it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns the current counts.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Reset closes the breaker and clears its counts.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.counts = Counts{}
	b.trials = 0
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.config.Name
}
