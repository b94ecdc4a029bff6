// Package reliability implements the delivery resilience policy for EFILE
// transmission: a Closed/Open/HalfOpen circuit breaker, exponential backoff
// with jitter, and per-attempt audit records.
package reliability

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the circuit breaker state.
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
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrCircuitOpen is returned by Allow while the breaker refuses traffic.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerConfig holds breaker tuning.
type BreakerConfig struct {
	// FailureThreshold is the consecutive transient-failure count that
	// opens the breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before admitting a
	// single half-open probe.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the tuning used when none is configured.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Cooldown: 60 * time.Second}
}

// Breaker is a process-wide circuit breaker. All transitions happen under
// one mutex so concurrent senders observe a linearizable state: at most one
// probe is ever admitted while half-open.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed breaker. A zero-valued config falls back to
// defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig().Cooldown
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// SetClock overrides the breaker's time source. Test use only.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Allow reports whether a network attempt may proceed. While open it fails
// with ErrCircuitOpen until the cooldown elapses, then admits exactly one
// half-open probe; concurrent callers racing for that probe all but one
// receive ErrCircuitOpen.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if b.probing {
			return fmt.Errorf("half-open probe in flight: %w", ErrCircuitOpen)
		}
		b.probing = true
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return fmt.Errorf("cooling down until %s: %w",
				b.openedAt.Add(b.cfg.Cooldown).Format(time.RFC3339), ErrCircuitOpen)
		}
		b.state = StateHalfOpen
		b.probing = true
		return nil
	}
	return nil
}

// RecordSuccess resets the breaker to closed with zero failures.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

// RecordRejection notes a protocol-level rejection. The endpoint answered,
// so this is not outage evidence: the failure count resets and the breaker
// closes.
func (b *Breaker) RecordRejection() {
	b.RecordSuccess()
}

// RecordFailure notes a transient transport failure. Crossing the threshold
// opens the breaker; a failed half-open probe reopens it and restarts the
// cooldown clock.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.openedAt = b.now()
		b.probing = false
		return
	}

	b.failures++
	if b.failures >= b.cfg.FailureThreshold {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// Snapshot is a read-only view of breaker state for the health surface.
type Snapshot struct {
	State    State
	Failures int
	OpenedAt time.Time
	// RetryAt is when the next probe will be admitted; zero unless open.
	RetryAt time.Time
}

// Snapshot returns the current breaker state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{State: b.state, Failures: b.failures, OpenedAt: b.openedAt}
	if b.state == StateOpen {
		snap.RetryAt = b.openedAt.Add(b.cfg.Cooldown)
	}
	return snap
}
