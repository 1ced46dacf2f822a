package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker refuses a call
var ErrOpen = errors.New("circuit breaker is open")

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

type Settings struct {
	FailureThreshold  int           // failures before opening (default 5)
	Cooldown          time.Duration // how long to stay open (default 30s)
	HalfOpenSuccesses int           // successes needed to close again (default 1)
}

// Breaker protects the upstream generation API from being hammered while it
// is failing. Renewal calls go through a separate breaker so a broken
// generation endpoint does not block credential refresh.
type Breaker struct {
	mu       sync.Mutex
	settings Settings

	state       State
	failures    int
	successes   int
	lastFailure time.Time
	lastChange  time.Time
}

func New(settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.HalfOpenSuccesses <= 0 {
		settings.HalfOpenSuccesses = 1
	}

	return &Breaker{
		settings:   settings,
		state:      StateClosed,
		lastChange: time.Now(),
	}
}

// Call runs fn under the breaker
func (b *Breaker) Call(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()
	b.record(err == nil)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Since(b.lastFailure) <= b.settings.Cooldown {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		b.successes = 0
	}

	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !success {
		b.failures++
		b.lastFailure = time.Now()

		if b.state == StateHalfOpen || b.failures >= b.settings.FailureThreshold {
			b.transition(StateOpen)
			b.successes = 0
		}
		return
	}

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.settings.HalfOpenSuccesses {
			b.transition(StateClosed)
			b.failures = 0
		}
	case StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) transition(next State) {
	if b.state != next {
		b.state = next
		b.lastChange = time.Now()
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed (admin operation)
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.lastChange = time.Now()
}

type Snapshot struct {
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure"`
	LastChange  time.Time `json:"last_state_change"`
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		State:       b.state.String(),
		Failures:    b.failures,
		LastFailure: b.lastFailure,
		LastChange:  b.lastChange,
	}
}
