// Package admission guards inbound HTTP routes with a circuit breaker and
// keeps per-route request telemetry.
package admission

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const (
	DefaultTTL             = 10 * time.Minute
	DefaultCleanupInterval = time.Minute
)

var meter = otel.GetMeterProvider().Meter("resume-optimizer/admission")

// Breaker decides admission per route key.
type Breaker interface {
	Allow(key string) bool
	RecordSuccess(key string)
	RecordFailure(key string)
	Forget(key string) bool
}

// KeyFunc maps a request to the route it is tracked under.
type KeyFunc func(r *http.Request) string

// RouteKey is the default KeyFunc: method and path.
func RouteKey(r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

// Entry is the telemetry kept for one route.
type Entry struct {
	Route      string    `json:"route"`
	InFlight   int       `json:"in_flight"`
	Requests   int64     `json:"requests"`
	Failures   int64     `json:"failures"`
	Rejected   int64     `json:"rejected"`
	LastStatus int       `json:"last_status"`
	LastSeen   time.Time `json:"last_seen"`
}

type Tracker struct {
	breaker    Breaker
	logger     *zap.Logger
	key        KeyFunc
	ttl        time.Duration
	interval   time.Duration
	retryAfter time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry
}

type Option func(*Tracker)

// WithTTL sets how long an idle route is kept and how often idle routes are
// swept.
func WithTTL(ttl, interval time.Duration) Option {
	return func(t *Tracker) {
		if ttl > 0 {
			t.ttl = ttl
		}
		if interval > 0 {
			t.interval = interval
		}
	}
}

// WithRetryAfter advertises d in the Retry-After header of rejections.
func WithRetryAfter(d time.Duration) Option {
	return func(t *Tracker) { t.retryAfter = d }
}

func WithKeyFunc(fn KeyFunc) Option {
	return func(t *Tracker) { t.key = fn }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func New(b Breaker, logger *zap.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tracker{
		breaker:  b,
		logger:   logger,
		key:      RouteKey,
		ttl:      DefaultTTL,
		interval: DefaultCleanupInterval,
		now:      time.Now,
		entries:  make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Middleware rejects requests with 503 while the route's circuit is open.
// Admitted requests that end in a 5xx count as breaker failures, everything
// else as success.
func (t *Tracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := t.key(r)
		if route == "" {
			next.ServeHTTP(w, r)
			return
		}

		if !t.breaker.Allow(route) {
			t.reject(route)
			t.logger.Warn("request rejected, circuit open", zap.String("route", route))
			countRequest(r.Context(), route, http.StatusServiceUnavailable, true)
			t.writeUnavailable(w, route)
			return
		}

		t.begin(route)
		start := t.now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		defer func() {
			failed := wrapped.statusCode >= http.StatusInternalServerError
			t.end(route, wrapped.statusCode, failed)
			if failed {
				t.breaker.RecordFailure(route)
			} else {
				t.breaker.RecordSuccess(route)
			}

			countRequest(r.Context(), route, wrapped.statusCode, false)
			if hist, err := meter.Float64Histogram("http.server.duration", otelmetric.WithUnit("ms")); err == nil {
				hist.Record(r.Context(), float64(t.now().Sub(start).Milliseconds()),
					otelmetric.WithAttributes(attribute.String("http.route", route)))
			}
		}()

		next.ServeHTTP(wrapped, r)
	})
}

// Run evicts idle routes every cleanup interval until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.EvictStale(); n > 0 {
				t.logger.Debug("evicted idle routes", zap.Int("count", n))
			}
		}
	}
}

// EvictStale drops routes with nothing in flight that were last seen more
// than the TTL ago, together with their circuit when it is closed. It returns
// the number of routes dropped.
func (t *Tracker) EvictStale() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.ttl)
	evicted := 0
	for route, e := range t.entries {
		if e.InFlight == 0 && e.LastSeen.Before(cutoff) {
			delete(t.entries, route)
			t.breaker.Forget(route)
			evicted++
		}
	}
	return evicted
}

// Snapshot returns a copy of every tracked route, sorted by route.
func (t *Tracker) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

// InFlight is the number of admitted requests still being served.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	for _, e := range t.entries {
		total += e.InFlight
	}
	return total
}

func (t *Tracker) entry(route string) *Entry {
	e, ok := t.entries[route]
	if !ok {
		e = &Entry{Route: route}
		t.entries[route] = e
	}
	e.LastSeen = t.now()
	return e
}

func (t *Tracker) begin(route string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(route)
	e.InFlight++
	e.Requests++
}

func (t *Tracker) end(route string, status int, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(route)
	e.InFlight--
	e.LastStatus = status
	if failed {
		e.Failures++
	}
}

func (t *Tracker) reject(route string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entry(route)
	e.Rejected++
	e.LastStatus = http.StatusServiceUnavailable
}

func (t *Tracker) writeUnavailable(w http.ResponseWriter, route string) {
	if secs := int(t.retryAfter.Seconds()); secs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "service temporarily unavailable",
		"route": route,
	})
}

func countRequest(ctx context.Context, route string, status int, rejected bool) {
	if counter, err := meter.Int64Counter("http.server.request_count"); err == nil {
		counter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Bool("admission.rejected", rejected),
		))
	}
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
