package costs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/resume-optimizer/internal/catalog"
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

type successLog struct {
	mu   sync.Mutex
	keys []string
}

func (s *successLog) RecordSuccess(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
}

// dollar costs exactly $1 per 1000 input tokens.
var dollar = catalog.Model{
	ID:              "test:dollar",
	Provider:        catalog.Provider("test"),
	Name:            "dollar",
	Tier:            catalog.TierEconomy,
	InputCostPer1K:  1,
	OutputCostPer1K: 2,
}

func testRates() *catalog.Registry {
	return catalog.NewRegistry(append(catalog.Default(), dollar), nil)
}

func newTestLedger(t *testing.T, limits Limits, opts ...Option) (*Ledger, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(testRates(), limits, nil, opts...), clock
}

func TestTrackPricesUsage(t *testing.T) {
	l, _ := newTestLedger(t, Limits{})

	b := l.Track(context.Background(), "anthropic:claude-3-5-haiku-20241022", "keyword_extraction", "req-1", 1000, 500)

	assert.True(t, b.Known)
	assert.Equal(t, 1500, b.TotalTokens)
	assert.InDelta(t, 0.0008, b.InputCost, 1e-12)
	assert.InDelta(t, 0.002, b.OutputCost, 1e-12)
	assert.InDelta(t, 0.0028, b.TotalCost, 1e-12)
}

func TestTrackAccumulatesMonotonically(t *testing.T) {
	l, _ := newTestLedger(t, Limits{})
	ctx := context.Background()

	first := l.Track(ctx, "test:dollar", "resume_evaluation", "a", 1000, 0)
	afterFirst := l.Totals()
	second := l.Track(ctx, "google:gemini-2.0-flash-lite", "resume_evaluation", "b", 2000, 400)
	afterSecond := l.Totals()

	assert.GreaterOrEqual(t, afterSecond.Cost, afterFirst.Cost)
	assert.InDelta(t, first.TotalCost+second.TotalCost, afterSecond.Cost, 1e-12)
	assert.Equal(t, first.TotalTokens+second.TotalTokens, afterSecond.TotalTokens)
	assert.Equal(t, 2, afterSecond.Requests)

	report := l.Report()
	require.Contains(t, report.Tasks, "resume_evaluation")
	task := report.Tasks["resume_evaluation"]
	assert.Equal(t, 2, task.Requests)
	assert.Len(t, task.Models, 2)
	assert.Equal(t, 1000, report.Models["test:dollar"].InputTokens)
}

func TestTrackUnknownModelIsNotRecorded(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	recorder := &successLog{}
	l := New(testRates(), Limits{}, zap.New(core), WithBreaker(recorder))

	b := l.Track(context.Background(), "acme:unknown", "resume_evaluation", "x", 100, 100)

	assert.False(t, b.Known)
	assert.Zero(t, b.TotalCost)
	assert.Zero(t, l.Totals().Requests)
	assert.Empty(t, recorder.keys)
	require.Equal(t, 1, logs.FilterMessage("usage for unknown model is not priced").Len())
}

func TestTrackRecordsProviderSuccess(t *testing.T) {
	recorder := &successLog{}
	l, _ := newTestLedger(t, Limits{}, WithBreaker(recorder))

	l.Track(context.Background(), "openai:gpt-4o-mini", "job_analysis", "r", 10, 10)
	l.Track(context.Background(), "google:gemini-2.5-flash", "job_analysis", "s", 10, 10)

	assert.Equal(t, []string{"openai", "google"}, recorder.keys)
}

func TestRegisteredRequestIsCompletedInPlace(t *testing.T) {
	l, clock := newTestLedger(t, Limits{})

	l.Register("req-7", "test:dollar", "job_analysis", map[string]any{"complexity": "moderate"})
	clock.Advance(3 * time.Second)
	l.Track(context.Background(), "test:dollar", "job_analysis", "req-7", 500, 0)

	rec, ok := l.Request("req-7")
	require.True(t, ok)
	assert.False(t, rec.Synthetic)
	assert.Equal(t, 500, rec.InputTokens)
	assert.InDelta(t, 0.5, rec.TotalCost, 1e-12)
	require.NotNil(t, rec.CompletedAt)
	assert.Equal(t, 3*time.Second, rec.CompletedAt.Sub(rec.StartedAt))
	assert.Equal(t, "moderate", rec.Metadata["complexity"])
	assert.Len(t, l.Report().Requests, 1)
}

func TestUnregisteredRequestGetsSyntheticEntry(t *testing.T) {
	l, _ := newTestLedger(t, Limits{})

	l.Track(context.Background(), "test:dollar", "job_analysis", "ghost", 100, 0)

	rec, ok := l.Request("ghost")
	require.True(t, ok)
	assert.True(t, rec.Synthetic)
	assert.Equal(t, 100, rec.InputTokens)
}

func TestRingEvictsOldest(t *testing.T) {
	l, _ := newTestLedger(t, Limits{}, WithRingCapacity(3))

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		l.Register(id, "test:dollar", "job_analysis", nil)
	}

	_, ok := l.Request("a")
	assert.False(t, ok)
	_, ok = l.Request("b")
	assert.False(t, ok)

	ids := []string{}
	for _, rec := range l.Report().Requests {
		ids = append(ids, rec.RequestID)
	}
	assert.Equal(t, []string{"c", "d", "e"}, ids)

	// a completion for an evicted id becomes a fresh synthetic entry
	l.Track(context.Background(), "test:dollar", "job_analysis", "a", 10, 0)
	rec, ok := l.Request("a")
	require.True(t, ok)
	assert.True(t, rec.Synthetic)
	_, ok = l.Request("c")
	assert.False(t, ok)
}

func TestBudgetStatusLevels(t *testing.T) {
	tests := []struct {
		name   string
		spend  int // input tokens on test:dollar, 1000 = $1
		daily  Level
		status Level
	}{
		{name: "under", spend: 7000, daily: LevelOK, status: LevelOK},
		{name: "warning at 75", spend: 7500, daily: LevelWarning, status: LevelWarning},
		{name: "warning at 90", spend: 9000, daily: LevelWarning, status: LevelWarning},
		{name: "critical above 90", spend: 9500, daily: LevelCritical, status: LevelCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := newTestLedger(t, Limits{Daily: 10, Monthly: 1000})
			l.Track(context.Background(), "test:dollar", "job_analysis", "r", tt.spend, 0)

			status := l.BudgetStatus()
			assert.Equal(t, tt.daily, status.Daily.Status)
			assert.Equal(t, LevelOK, status.Monthly.Status)
			assert.Equal(t, tt.status, status.Status)
			assert.InDelta(t, float64(tt.spend)/100, status.Daily.PercentUsed, 1e-9)
		})
	}
}

func TestBudgetStatusTakesWorsePeriod(t *testing.T) {
	l, clock := newTestLedger(t, Limits{Daily: 100, Monthly: 20})

	l.Track(context.Background(), "test:dollar", "job_analysis", "yesterday", 16000, 0)
	clock.Advance(24 * time.Hour)
	l.Track(context.Background(), "test:dollar", "job_analysis", "today", 1000, 0)

	status := l.BudgetStatus()
	assert.InDelta(t, 1.0, status.Daily.Spent, 1e-9)
	assert.Equal(t, LevelOK, status.Daily.Status)
	assert.InDelta(t, 17.0, status.Monthly.Spent, 1e-9)
	assert.Equal(t, LevelWarning, status.Monthly.Status)
	assert.Equal(t, LevelWarning, status.Status)
	assert.Equal(t, "2026-10-16", status.Date)
}

func TestMonthRolloverStartsFresh(t *testing.T) {
	l, clock := newTestLedger(t, Limits{Monthly: 10})

	l.Track(context.Background(), "test:dollar", "job_analysis", "october", 9500, 0)
	require.Equal(t, LevelCritical, l.BudgetStatus().Status)

	clock.Advance(20 * 24 * time.Hour)
	status := l.BudgetStatus()
	assert.Zero(t, status.Monthly.Spent)
	assert.Equal(t, LevelOK, status.Status)
}

func TestBudgetWithoutLimitsIsOK(t *testing.T) {
	l, _ := newTestLedger(t, Limits{})
	l.Track(context.Background(), "test:dollar", "job_analysis", "r", 1_000_000, 0)

	assert.Equal(t, LevelOK, l.BudgetStatus().Status)
}

func TestPerRequestLimitWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := New(testRates(), Limits{PerRequest: 0.5}, zap.New(core))

	l.Track(context.Background(), "test:dollar", "job_analysis", "cheap", 100, 0)
	require.Zero(t, logs.Len())

	l.Track(context.Background(), "test:dollar", "job_analysis", "pricey", 1000, 0)
	entries := logs.FilterMessage("request cost above per-request limit").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "pricey", entries[0].ContextMap()["request_id"])
}

func TestFlushByRequestCount(t *testing.T) {
	dir := t.TempDir()
	l, _ := newTestLedger(t, Limits{Daily: 10}, WithReportsDir(dir), WithFlushThresholds(2, 100))

	l.Track(context.Background(), "test:dollar", "job_analysis", "1", 10, 0)
	files, _ := filepath.Glob(filepath.Join(dir, "cost_report_*.json"))
	require.Empty(t, files)

	l.Track(context.Background(), "test:dollar", "job_analysis", "2", 10, 0)
	files, _ = filepath.Glob(filepath.Join(dir, "cost_report_*.json"))
	require.Equal(t, []string{filepath.Join(dir, "cost_report_20261015_120000.json")}, files)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"total_tokens", "total_cost", "models", "tasks", "requests", "timestamp", "date", "budget_limits", "budget_status"} {
		assert.Contains(t, raw, key)
	}
	assert.EqualValues(t, 20, raw["total_tokens"])
}

func TestFlushByCost(t *testing.T) {
	dir := t.TempDir()
	l, _ := newTestLedger(t, Limits{}, WithReportsDir(dir))

	l.Track(context.Background(), "test:dollar", "job_analysis", "1", 1500, 0)

	files, _ := filepath.Glob(filepath.Join(dir, "cost_report_*.json"))
	assert.Len(t, files, 1)
}

func TestSameSecondSnapshotsDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	l, _ := newTestLedger(t, Limits{}, WithReportsDir(dir))

	first, err := l.Flush()
	require.NoError(t, err)
	l.Track(context.Background(), "test:dollar", "job_analysis", "1", 10, 0)
	second, err := l.Flush()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	latest, err := LoadLatest(dir)
	require.NoError(t, err)
	assert.Equal(t, 10, latest.TotalTokens)
}

func TestResetFlushesThenZeroes(t *testing.T) {
	dir := t.TempDir()
	l, _ := newTestLedger(t, Limits{}, WithReportsDir(dir))

	l.Track(context.Background(), "test:dollar", "job_analysis", "1", 300, 0)
	l.Reset()

	assert.Zero(t, l.Totals())
	assert.Empty(t, l.Report().Requests)

	latest, err := LoadLatest(dir)
	require.NoError(t, err)
	assert.Equal(t, 300, latest.TotalTokens)
}

func TestLoadLatestEmptyDir(t *testing.T) {
	_, err := LoadLatest(t.TempDir())
	assert.True(t, errors.Is(err, ErrNoSnapshot))

	_, err = LoadLatest(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, ErrNoSnapshot))
}

func TestRestoreKeepsBudgetState(t *testing.T) {
	dir := t.TempDir()
	l, clock := newTestLedger(t, Limits{Daily: 10}, WithReportsDir(dir))
	l.Register("r", "test:dollar", "job_analysis", nil)
	l.Track(context.Background(), "test:dollar", "job_analysis", "r", 8000, 0)
	_, err := l.Flush()
	require.NoError(t, err)

	snap, err := LoadLatest(dir)
	require.NoError(t, err)

	restored := New(testRates(), Limits{Daily: 10}, nil, WithClock(clock.Now))
	restored.Restore(snap)

	assert.Equal(t, l.Totals(), restored.Totals())
	assert.Equal(t, LevelWarning, restored.BudgetStatus().Status)
	rec, ok := restored.Request("r")
	require.True(t, ok)
	assert.Equal(t, 8000, rec.InputTokens)
	assert.Equal(t, 1, restored.Report().Tasks["job_analysis"].Models["test:dollar"].Requests)
}

func TestConcurrentTracking(t *testing.T) {
	l, _ := newTestLedger(t, Limits{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Track(context.Background(), "test:dollar", "job_analysis", "", 10, 10)
		}()
	}
	wg.Wait()

	totals := l.Totals()
	assert.Equal(t, 50, totals.Requests)
	assert.Equal(t, 1000, totals.TotalTokens)
}
