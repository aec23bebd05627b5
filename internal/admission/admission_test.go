package admission

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resume-optimizer/internal/breaker"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTracker(threshold int, clock *fakeClock, opts ...Option) (*Tracker, *breaker.Breaker) {
	b := breaker.New("admission", breaker.Config{FailureThreshold: threshold, RecoveryTime: time.Minute}, nil,
		breaker.WithClock(clock.Now))
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(b, nil, opts...), b
}

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestMiddlewarePassesThrough(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	tr, b := newTracker(3, clock)
	h := tr.Middleware(statusHandler(http.StatusOK))

	rec := serve(h, http.MethodGet, "/v1/budget")
	assert.Equal(t, http.StatusOK, rec.Code)

	entries := tr.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{
		Route:      "GET /v1/budget",
		Requests:   1,
		LastStatus: http.StatusOK,
		LastSeen:   clock.Now(),
	}, entries[0])
	assert.Equal(t, breaker.Closed, b.State("GET /v1/budget"))
}

func TestServerErrorsOpenTheCircuit(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	tr, b := newTracker(2, clock, WithRetryAfter(time.Minute))

	calls := 0
	h := tr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))

	serve(h, http.MethodPost, "/v1/invoke")
	serve(h, http.MethodPost, "/v1/invoke")
	assert.Equal(t, breaker.Open, b.State("POST /v1/invoke"))

	rec := serve(h, http.MethodPost, "/v1/invoke")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"service temporarily unavailable","route":"POST /v1/invoke"}`, rec.Body.String())
	assert.Equal(t, 2, calls)

	entries := tr.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].Requests)
	assert.Equal(t, int64(2), entries[0].Failures)
	assert.Equal(t, int64(1), entries[0].Rejected)

	// Other routes are unaffected.
	assert.Equal(t, http.StatusOK, serve(tr.Middleware(statusHandler(http.StatusOK)), http.MethodGet, "/healthz").Code)
}

func TestClientErrorsCountAsSuccess(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	tr, b := newTracker(1, clock)
	h := tr.Middleware(statusHandler(http.StatusBadRequest))

	for range 3 {
		assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/v1/select").Code)
	}
	assert.Equal(t, breaker.Closed, b.State("POST /v1/select"))
	assert.Equal(t, 0, b.Failures("POST /v1/select"))
}

func TestHalfOpenProbeRecovers(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	tr, b := newTracker(1, clock)

	code := http.StatusInternalServerError
	h := tr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))

	serve(h, http.MethodGet, "/v1/report")
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, http.MethodGet, "/v1/report").Code)

	clock.Advance(time.Minute)
	code = http.StatusOK
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/v1/report").Code)
	assert.Equal(t, breaker.Closed, b.State("GET /v1/report"))
}

func TestInFlightTracking(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	tr, _ := newTracker(3, clock)

	entered := make(chan struct{})
	release := make(chan struct{})
	h := tr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		serve(h, http.MethodPost, "/v1/invoke")
	}()

	<-entered
	assert.Equal(t, 1, tr.InFlight())
	assert.Zero(t, tr.EvictStale())

	close(release)
	<-done
	assert.Equal(t, 0, tr.InFlight())
}

func TestEvictStale(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	tr, _ := newTracker(3, clock, WithTTL(10*time.Minute, time.Minute))
	h := tr.Middleware(statusHandler(http.StatusOK))

	serve(h, http.MethodGet, "/old")
	clock.Advance(6 * time.Minute)
	serve(h, http.MethodGet, "/recent")
	clock.Advance(5 * time.Minute)

	assert.Equal(t, 1, tr.EvictStale())
	entries := tr.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "GET /recent", entries[0].Route)
}

func TestRunStopsWithContext(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	tr, _ := newTracker(3, clock, WithTTL(time.Minute, 5*time.Millisecond))
	serve(tr.Middleware(statusHandler(http.StatusOK)), http.MethodGet, "/stale")
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		tr.Run(ctx)
	}()

	require.Eventually(t, func() bool { return len(tr.Snapshot()) == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEmptyKeySkipsAdmission(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	tr, _ := newTracker(1, clock, WithKeyFunc(func(r *http.Request) string {
		if r.URL.Path == "/healthz" {
			return ""
		}
		return RouteKey(r)
	}))
	h := tr.Middleware(statusHandler(http.StatusInternalServerError))

	for range 3 {
		assert.Equal(t, http.StatusInternalServerError, serve(h, http.MethodGet, "/healthz").Code)
	}
	assert.Empty(t, tr.Snapshot())
}

func TestEvictStaleFreesClosedCircuits(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	tr, b := newTracker(1, clock, WithTTL(time.Minute, time.Minute))

	ok := tr.Middleware(statusHandler(http.StatusNotFound))
	for i := range 500 {
		serve(ok, http.MethodGet, "/missing/"+strconv.Itoa(i))
	}
	serve(tr.Middleware(statusHandler(http.StatusInternalServerError)), http.MethodGet, "/broken")
	require.Len(t, b.Keys(), 501)

	clock.Advance(time.Hour)
	assert.Equal(t, 501, tr.EvictStale())
	assert.Empty(t, tr.Snapshot())
	assert.Equal(t, []string{"GET /broken"}, b.Keys())
	assert.Equal(t, breaker.Open, b.State("GET /broken"))
}
