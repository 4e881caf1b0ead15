// Package breaker implements C9: a three-state circuit breaker guarding
// an unreliable dependency, per spec.md §4.9.
package breaker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arrowhead-dev/llmbridge/internal/llmerr"
)

// State is the breaker's closed set of states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Config holds the breaker's thresholds. A zero-value FailureThreshold
// or SuccessThreshold defaults to 1 so a misconfigured breaker still
// trips rather than admitting forever.
type Config struct {
	Disabled          bool
	FailureThreshold  int
	SuccessThreshold  int
	RecoveryTimeout   time.Duration
	RequestTimeout    time.Duration
}

// Counters is a point-in-time snapshot of the breaker's atomic tallies.
type Counters struct {
	Total            int64
	Successful       int64
	Failed           int64
	TimedOut         int64
	OpenTransitions  int64
	CloseTransitions int64
}

// Breaker gates calls to a wrapped operation, per spec.md §4.9's
// Closed/Open/HalfOpen contract. The state enum and last-failure
// timestamp are lock-guarded; the tally counters are atomic — mirroring
// spec.md §5's "state enum is lock-guarded, counters are atomic" shared
// resource note.
type Breaker struct {
	cfg Config

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	forced      *State

	total, successful, failed, timedOut     int64
	openTransitions, closeTransitions int64
}

// New returns a Breaker in the Closed state.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}

	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}

	return &Breaker{cfg: cfg, state: Closed}
}

// Call runs fn through the breaker's gate, timeout race, and state
// transitions (spec.md §4.9 steps 1-5).
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if b.cfg.Disabled {
		return fn(ctx)
	}

	if err := b.admit(); err != nil {
		return err
	}

	atomic.AddInt64(&b.total, 1)

	err := b.raceTimeout(ctx, fn)
	if err != nil {
		b.onFailure()
		return err
	}

	b.onSuccess()

	return nil
}

// admit runs the gate check (step 2), transitioning Open->HalfOpen when
// the recovery timeout has elapsed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.forced != nil {
		if *b.forced == Open {
			return llmerr.ErrCircuitOpen
		}

		return nil
	}

	switch b.state {
	case Closed, HalfOpen:
		return nil
	case Open:
		if time.Since(b.lastFailure) >= b.cfg.RecoveryTimeout {
			b.state = HalfOpen
			b.successes = 0

			return nil
		}

		return llmerr.ErrCircuitOpen
	default:
		return nil
	}
}

// raceTimeout runs fn, failing it with KindTimeout if RequestTimeout
// elapses first. A zero RequestTimeout disables the race.
func (b *Breaker) raceTimeout(ctx context.Context, fn func(context.Context) error) error {
	if b.cfg.RequestTimeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()

	done := make(chan error, 1)

	go func() { done <- fn(callCtx) }()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		atomic.AddInt64(&b.timedOut, 1)
		return llmerr.New(llmerr.KindTimeout, "call exceeded the circuit breaker's request timeout")
	}
}

func (b *Breaker) onSuccess() {
	atomic.AddInt64(&b.successful, 1)

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures = 0
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transitionToClosed()
		}
	}
}

func (b *Breaker) onFailure() {
	atomic.AddInt64(&b.failed, 1)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	if b.state == HalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.transitionToOpen()
	}
}

// transitionToOpen/transitionToClosed assume b.mu is held.
func (b *Breaker) transitionToOpen() {
	if b.state != Open {
		atomic.AddInt64(&b.openTransitions, 1)
	}

	b.state = Open
	b.failures = 0
}

func (b *Breaker) transitionToClosed() {
	if b.state != Closed {
		atomic.AddInt64(&b.closeTransitions, 1)
	}

	b.state = Closed
	b.failures = 0
	b.successes = 0
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.forced != nil {
		return *b.forced
	}

	return b.state
}

// ForceOpen/ForceClose are administrative overrides (spec.md §4.9: "force-
// open and force-close administrative operations exist"). Reset clears
// any forced override and returns the breaker to its natural state.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()

	open := Open
	b.forced = &open
}

func (b *Breaker) ForceClose() {
	b.mu.Lock()
	defer b.mu.Unlock()

	closed := Closed
	b.forced = &closed
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.forced = nil
	b.state = Closed
	b.failures = 0
	b.successes = 0
}

// Counters returns a snapshot of the breaker's atomic tallies.
func (b *Breaker) Counters() Counters {
	return Counters{
		Total:            atomic.LoadInt64(&b.total),
		Successful:       atomic.LoadInt64(&b.successful),
		Failed:           atomic.LoadInt64(&b.failed),
		TimedOut:         atomic.LoadInt64(&b.timedOut),
		OpenTransitions:  atomic.LoadInt64(&b.openTransitions),
		CloseTransitions: atomic.LoadInt64(&b.closeTransitions),
	}
}
