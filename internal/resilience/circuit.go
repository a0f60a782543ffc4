package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	// Closed accepts all requests and tracks failures.
	Closed State = iota
	// Open rejects requests until the cool-off period expires.
	Open
	// HalfOpen lets a single probe through to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

const windowBuckets = 10

// BreakerConfig tunes a Breaker.
type BreakerConfig struct {
	// Target labels metrics and logs, e.g. "intent-webhook".
	Target string
	// MinRequests outcomes must land in Window before the ratio is judged.
	MinRequests  int
	FailureRatio float64
	// Window is the rolling period outcomes are counted over.
	Window  time.Duration
	OpenFor time.Duration
	Logger  zerolog.Logger
	Now     func() time.Time
}

type bucket struct {
	start     time.Time
	successes int
	failures  int
}

// Breaker is a failure-ratio circuit breaker over a bucketed rolling window.
type Breaker struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	state    State
	buckets  [windowBuckets]bucket
	openedAt time.Time
	probing  bool
}

// NewBreaker constructs a closed breaker, filling unset config with defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MinRequests <= 0 {
		cfg.MinRequests = 1
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.FailureRatio > 1 {
		cfg.FailureRatio = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Target = strings.TrimSpace(cfg.Target)
	if cfg.Target == "" {
		cfg.Target = "default"
	}
	b := &Breaker{cfg: cfg, state: Closed}
	b.recordState()
	return b
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a request may proceed. Once the cool-off has passed
// an open breaker admits exactly one probe; every caller admitted must
// Report its outcome.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.OpenFor {
			return false
		}
		b.transition(ctx, HalfOpen)
		b.probing = true
		return true
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// Report records the outcome of an admitted request.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.transition(ctx, Closed)
		} else {
			b.transition(ctx, Open)
		}
		return
	}

	cur := b.current()
	if success {
		cur.successes++
	} else {
		cur.failures++
	}

	successes, failures := b.totals()
	total := successes + failures
	if total >= b.cfg.MinRequests && float64(failures)/float64(total) >= b.cfg.FailureRatio {
		b.transition(ctx, Open)
	}
}

func (b *Breaker) bucketWidth() time.Duration {
	return max(b.cfg.Window/windowBuckets, time.Millisecond)
}

func (b *Breaker) current() *bucket {
	now := b.cfg.Now()
	width := b.bucketWidth()
	start := now.Truncate(width)
	idx := int((start.UnixNano() / int64(width)) % windowBuckets)
	bk := &b.buckets[idx]
	if !bk.start.Equal(start) {
		*bk = bucket{start: start}
	}
	return bk
}

func (b *Breaker) totals() (successes, failures int) {
	cutoff := b.cfg.Now().Add(-b.cfg.Window)
	for _, bk := range b.buckets {
		if bk.start.After(cutoff) {
			successes += bk.successes
			failures += bk.failures
		}
	}
	return successes, failures
}

func (b *Breaker) transition(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	switch next {
	case Open:
		b.openedAt = b.cfg.Now()
	case Closed:
		b.openedAt = time.Time{}
		b.buckets = [windowBuckets]bucket{}
	}
	b.recordState()

	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(b.cfg.Target, prev.String(), next.String()).Inc()
	}
	if next == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(b.cfg.Target).Inc()
	}
	evt := b.cfg.Logger.Info().
		Str("target", b.cfg.Target).
		Str("from_state", prev.String()).
		Str("to_state", next.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) recordState() {
	if BreakerState == nil {
		return
	}
	BreakerState.WithLabelValues(b.cfg.Target).Set(float64(b.state))
}
