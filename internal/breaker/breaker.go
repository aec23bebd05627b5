// Package breaker implements a keyed circuit breaker. Each key (a provider
// name, a route) has its own failure counter and state; keys are created on
// first use.
package breaker

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State of one circuit.
type State int

const (
	// Closed lets every call through.
	Closed State = iota
	// Open rejects calls until the recovery window has elapsed.
	Open
	// HalfOpen admits a single probe call.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "up"
	case Open:
		return "down"
	case HalfOpen:
		return "degraded"
	default:
		return "unknown"
	}
}

// MarshalText keeps status reports readable.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Config holds the breaker thresholds.
type Config struct {
	FailureThreshold int
	RecoveryTime     time.Duration
}

// Default thresholds.
const (
	DefaultFailureThreshold = 3
	DefaultRecoveryTime     = 300 * time.Second
)

// Status is a point-in-time view of one circuit.
type Status struct {
	State       State     `json:"status"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitempty"`
	OpenUntil   time.Time `json:"open_until,omitempty"`
}

type circuit struct {
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
}

// Breaker tracks circuits by key. Safe for concurrent use.
type Breaker struct {
	name   string
	cfg    Config
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	circuits map[string]*circuit
}

// Option customizes a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New creates a breaker. Non-positive thresholds fall back to the defaults.
func New(name string, cfg Config, logger *zap.Logger, opts ...Option) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.RecoveryTime <= 0 {
		cfg.RecoveryTime = DefaultRecoveryTime
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Breaker{
		name:     name,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.With(zap.String("breaker", name)),
		circuits: make(map[string]*circuit),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Config returns the thresholds in use.
func (b *Breaker) Config() Config { return b.cfg }

// State reports the current state without changing it. Unknown keys are
// Closed.
func (b *Breaker) State(key string) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.circuits[key]; ok {
		return c.state
	}
	return Closed
}

// Refresh moves an Open circuit to HalfOpen once the recovery window since
// the last failure has elapsed, and returns the resulting state.
func (b *Breaker) Refresh(key string) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.refreshLocked(b.get(key), key)
}

// Allow refreshes the circuit and reports whether a call may proceed. A
// HalfOpen circuit admits exactly one probe until the probe's outcome is
// recorded.
func (b *Breaker) Allow(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(key)
	switch b.refreshLocked(c, key) {
	case Closed:
		return true
	case HalfOpen:
		if c.probing {
			return false
		}
		c.probing = true
		return true
	default:
		return false
	}
}

// IsOpen is the negation of Allow and shares its side effects.
func (b *Breaker) IsOpen(key string) bool {
	return !b.Allow(key)
}

// RecordSuccess resets the failure counter and closes the circuit.
func (b *Breaker) RecordSuccess(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(key)
	if c.state != Closed {
		b.logger.Info("circuit closed", zap.String("key", key), zap.String("from", c.state.String()))
	}
	c.state = Closed
	c.failures = 0
	c.probing = false
}

// RecordFailure counts a failure. The circuit opens after FailureThreshold
// consecutive failures, or immediately when a HalfOpen probe fails.
func (b *Breaker) RecordFailure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(key)
	c.failures++
	c.lastFailure = b.now()
	c.probing = false

	switch c.state {
	case HalfOpen:
		c.state = Open
		b.logger.Warn("probe failed, circuit reopened", zap.String("key", key), zap.Int("failures", c.failures))
	case Closed:
		if c.failures >= b.cfg.FailureThreshold {
			c.state = Open
			b.logger.Warn("circuit opened",
				zap.String("key", key),
				zap.Int("failures", c.failures),
				zap.Duration("recovery_time", b.cfg.RecoveryTime),
			)
		}
	case Open:
	}
}

// Release hands back a HalfOpen probe whose outcome is unknown, for example
// because the caller gave up. State and counters are left alone.
func (b *Breaker) Release(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.circuits[key]; ok {
		c.probing = false
	}
}

// Forget drops a Closed circuit and reports whether the key was removed.
// Open and HalfOpen circuits are kept.
func (b *Breaker) Forget(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[key]
	if !ok || c.state != Closed {
		return false
	}
	delete(b.circuits, key)
	return true
}

// Failures returns the consecutive failure count for key.
func (b *Breaker) Failures(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.circuits[key]; ok {
		return c.failures
	}
	return 0
}

// Snapshot returns the status of every known key.
func (b *Breaker) Snapshot() map[string]Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]Status, len(b.circuits))
	for key, c := range b.circuits {
		st := Status{State: c.state, Failures: c.failures, LastFailure: c.lastFailure}
		if c.state == Open {
			st.OpenUntil = c.lastFailure.Add(b.cfg.RecoveryTime)
		}
		out[key] = st
	}
	return out
}

// Keys returns the known keys in sorted order.
func (b *Breaker) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0, len(b.circuits))
	for k := range b.circuits {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *Breaker) get(key string) *circuit {
	c, ok := b.circuits[key]
	if !ok {
		c = &circuit{}
		b.circuits[key] = c
	}
	return c
}

func (b *Breaker) refreshLocked(c *circuit, key string) State {
	if c.state == Open && !b.now().Before(c.lastFailure.Add(b.cfg.RecoveryTime)) {
		c.state = HalfOpen
		c.probing = false
		b.logger.Info("circuit half-open, allowing probe", zap.String("key", key))
	}
	return c.state
}
