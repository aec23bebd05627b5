// Package costs keeps the running token and dollar ledger for model calls and
// derives the budget status that feeds back into model selection.
package costs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/resume-optimizer/internal/catalog"
)

const (
	DefaultRingCapacity  = 1000
	DefaultFlushRequests = 50
	DefaultFlushCost     = 1.0
)

// RateLookup resolves a model id to its catalog entry.
type RateLookup interface {
	Lookup(id string) (catalog.Model, bool)
}

// SuccessRecorder receives a success for the provider of every tracked call.
type SuccessRecorder interface {
	RecordSuccess(key string)
}

// Usage is an aggregate of tracked calls.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`
	Requests     int     `json:"requests"`
}

func (u *Usage) add(b Breakdown) {
	u.InputTokens += b.InputTokens
	u.OutputTokens += b.OutputTokens
	u.TotalTokens += b.TotalTokens
	u.Cost += b.TotalCost
	u.Requests++
}

// TaskUsage is the per-task aggregate with its per-model split.
type TaskUsage struct {
	Usage
	Models map[string]Usage `json:"models"`
}

// Breakdown is the cost of one tracked call.
type Breakdown struct {
	RequestID    string  `json:"request_id"`
	Model        string  `json:"model"`
	Task         string  `json:"task"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	InputCost    float64 `json:"input_cost"`
	OutputCost   float64 `json:"output_cost"`
	TotalCost    float64 `json:"total_cost"`
	// Known is false when the model was not in the catalog and nothing was recorded.
	Known bool `json:"-"`
}

// RequestRecord is one entry of the request ring.
type RequestRecord struct {
	RequestID    string         `json:"request_id"`
	Model        string         `json:"model"`
	Task         string         `json:"task"`
	InputTokens  int            `json:"input_tokens"`
	OutputTokens int            `json:"output_tokens"`
	TotalTokens  int            `json:"total_tokens"`
	InputCost    float64        `json:"input_cost"`
	OutputCost   float64        `json:"output_cost"`
	TotalCost    float64        `json:"total_cost"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Synthetic    bool           `json:"synthetic,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func (r RequestRecord) clone() RequestRecord {
	out := r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithBreaker makes every tracked call count as a provider success.
func WithBreaker(r SuccessRecorder) Option {
	return func(l *Ledger) { l.breaker = r }
}

// WithReportsDir enables snapshot files in dir.
func WithReportsDir(dir string) Option {
	return func(l *Ledger) { l.dir = dir }
}

func WithFlushThresholds(requests int, cost float64) Option {
	return func(l *Ledger) {
		l.flushRequests = requests
		l.flushCost = cost
	}
}

func WithRingCapacity(n int) Option {
	return func(l *Ledger) { l.ringCapacity = n }
}

// Ledger is safe for concurrent use.
type Ledger struct {
	rates         RateLookup
	breaker       SuccessRecorder
	limits        Limits
	dir           string
	logger        *zap.Logger
	now           func() time.Time
	flushRequests int
	flushCost     float64
	ringCapacity  int

	mu                 sync.Mutex
	totals             Usage
	models             map[string]Usage
	tasks              map[string]*TaskUsage
	ring               *requestRing
	spend              spendBuckets
	requestsSinceFlush int
	costSinceFlush     float64

	writeMu sync.Mutex
}

func New(rates RateLookup, limits Limits, logger *zap.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Ledger{
		rates:         rates,
		limits:        limits,
		logger:        logger,
		now:           time.Now,
		flushRequests: DefaultFlushRequests,
		flushCost:     DefaultFlushCost,
		ringCapacity:  DefaultRingCapacity,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.resetLocked()

	return l
}

func (l *Ledger) Limits() Limits { return l.limits }

func (l *Ledger) resetLocked() {
	l.totals = Usage{}
	l.models = make(map[string]Usage)
	l.tasks = make(map[string]*TaskUsage)
	l.ring = newRequestRing(l.ringCapacity)
	l.spend = newSpendBuckets()
	l.requestsSinceFlush = 0
	l.costSinceFlush = 0
}

// Register opens a zero-valued ring entry for a request about to be sent.
func (l *Ledger) Register(requestID, model, task string, metadata map[string]any) {
	rec := RequestRecord{
		RequestID: requestID,
		Model:     model,
		Task:      task,
		StartedAt: l.now(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	l.ring.push(rec.clone())
	l.mu.Unlock()

	l.logger.Debug("request registered",
		zap.String("request_id", requestID),
		zap.String("ai_model", model),
		zap.String("task", task),
	)
}

// Track prices a completed call and adds it to every aggregate. A model
// missing from the catalog is logged and left out of the ledger.
func (l *Ledger) Track(ctx context.Context, model, task, requestID string, inputTokens, outputTokens int) Breakdown {
	inputTokens = max(inputTokens, 0)
	outputTokens = max(outputTokens, 0)

	b := Breakdown{
		RequestID:    requestID,
		Model:        model,
		Task:         task,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
	}

	m, ok := l.rates.Lookup(model)
	if !ok {
		l.logger.Warn("usage for unknown model is not priced",
			zap.String("ai_model", model),
			zap.String("task", task),
			zap.String("request_id", requestID),
		)
		return b
	}

	b.Known = true
	b.InputCost = float64(inputTokens) / 1000 * m.InputCostPer1K
	b.OutputCost = float64(outputTokens) / 1000 * m.OutputCostPer1K
	b.TotalCost = b.InputCost + b.OutputCost

	now := l.now()

	l.mu.Lock()
	l.applyLocked(b, now)
	var snap *Snapshot
	if l.dir != "" && (l.requestsSinceFlush >= l.flushRequests || l.costSinceFlush >= l.flushCost) {
		snap = l.snapshotLocked(now)
		l.requestsSinceFlush = 0
		l.costSinceFlush = 0
	}
	l.mu.Unlock()

	if l.breaker != nil {
		l.breaker.RecordSuccess(string(m.Provider))
	}
	recordMetrics(ctx, b, string(m.Provider))

	if l.limits.PerRequest > 0 && b.TotalCost > l.limits.PerRequest {
		l.logger.Warn("request cost above per-request limit",
			zap.String("ai_model", model),
			zap.String("request_id", requestID),
			zap.Float64("cost", b.TotalCost),
			zap.Float64("limit", l.limits.PerRequest),
		)
	}

	if snap != nil {
		if _, err := l.write(snap); err != nil {
			l.logger.Error("failed to write cost snapshot", zap.Error(err))
		}
	}

	return b
}

func (l *Ledger) applyLocked(b Breakdown, at time.Time) {
	l.totals.add(b)

	mu := l.models[b.Model]
	mu.add(b)
	l.models[b.Model] = mu

	tu, ok := l.tasks[b.Task]
	if !ok {
		tu = &TaskUsage{Models: make(map[string]Usage)}
		l.tasks[b.Task] = tu
	}
	tu.add(b)
	tm := tu.Models[b.Model]
	tm.add(b)
	tu.Models[b.Model] = tm

	rec := l.ring.find(b.RequestID)
	if rec == nil {
		l.ring.push(RequestRecord{
			RequestID: b.RequestID,
			Model:     b.Model,
			Task:      b.Task,
			StartedAt: at,
			Synthetic: true,
		})
		rec = l.ring.find(b.RequestID)
	}
	rec.Model = b.Model
	rec.Task = b.Task
	rec.InputTokens += b.InputTokens
	rec.OutputTokens += b.OutputTokens
	rec.TotalTokens += b.TotalTokens
	rec.InputCost += b.InputCost
	rec.OutputCost += b.OutputCost
	rec.TotalCost += b.TotalCost
	completed := at
	rec.CompletedAt = &completed

	l.spend.add(at, b.TotalCost)
	l.requestsSinceFlush++
	l.costSinceFlush += b.TotalCost
}

// BudgetStatus compares today's and this month's spend against the limits.
func (l *Ledger) BudgetStatus() BudgetStatus {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.budgetLocked(now)
}

func (l *Ledger) budgetLocked(now time.Time) BudgetStatus {
	daily := periodStatus(l.spend.Days[dayKey(now)], l.limits.Daily)
	monthly := periodStatus(l.spend.Months[monthKey(now)], l.limits.Monthly)

	return BudgetStatus{
		Daily:           daily,
		Monthly:         monthly,
		Status:          worse(daily.Status, monthly.Status),
		PerRequestLimit: l.limits.PerRequest,
		Date:            dayKey(now),
	}
}

// Report returns a point-in-time copy of the whole ledger.
func (l *Ledger) Report() *Snapshot {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.snapshotLocked(now)
}

// Totals returns the global aggregate.
func (l *Ledger) Totals() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.totals
}

// Request returns a copy of the newest ring entry with the id.
func (l *Ledger) Request(requestID string) (RequestRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.ring.find(requestID)
	if rec == nil {
		return RequestRecord{}, false
	}
	return rec.clone(), true
}

// Flush writes a snapshot now. Without a reports directory it does nothing.
func (l *Ledger) Flush() (string, error) {
	if l.dir == "" {
		return "", nil
	}

	now := l.now()
	l.mu.Lock()
	snap := l.snapshotLocked(now)
	l.requestsSinceFlush = 0
	l.costSinceFlush = 0
	l.mu.Unlock()

	return l.write(snap)
}

// Reset writes a final snapshot and then zeroes every aggregate.
func (l *Ledger) Reset() {
	if _, err := l.Flush(); err != nil {
		l.logger.Error("failed to write final cost snapshot", zap.Error(err))
	}

	l.mu.Lock()
	l.resetLocked()
	l.mu.Unlock()

	l.logger.Info("cost tracking reset")
}

// Restore replaces the in-memory state with a previously written snapshot.
func (l *Ledger) Restore(s *Snapshot) {
	if s == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetLocked()
	l.totals = s.Totals
	for id, u := range s.Models {
		l.models[id] = u
	}
	for name, tu := range s.Tasks {
		restored := &TaskUsage{Usage: tu.Usage, Models: make(map[string]Usage, len(tu.Models))}
		for id, u := range tu.Models {
			restored.Models[id] = u
		}
		l.tasks[name] = restored
	}
	for _, rec := range s.Requests {
		l.ring.push(rec.clone())
	}

	if len(s.Spend.Days) > 0 || len(s.Spend.Months) > 0 {
		l.spend = s.Spend.clone()
		return
	}
	for _, rec := range s.Requests {
		if rec.CompletedAt != nil {
			l.spend.add(*rec.CompletedAt, rec.TotalCost)
		}
	}
}
