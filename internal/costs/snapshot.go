package costs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

const (
	snapshotPrefix = "cost_report_"
	snapshotLayout = "20060102_150405"
)

// ErrNoSnapshot is returned by LoadLatest when the directory holds no report.
var ErrNoSnapshot = errors.New("no cost snapshot found")

// Snapshot is the on-disk cost report.
type Snapshot struct {
	TotalTokens  int                  `json:"total_tokens"`
	TotalCost    float64              `json:"total_cost"`
	Totals       Usage                `json:"totals"`
	Models       map[string]Usage     `json:"models"`
	Tasks        map[string]TaskUsage `json:"tasks"`
	Requests     []RequestRecord      `json:"requests"`
	Timestamp    float64              `json:"timestamp"`
	Date         string               `json:"date"`
	BudgetLimits Limits               `json:"budget_limits"`
	BudgetStatus BudgetStatus         `json:"budget_status"`
	Spend        spendBuckets         `json:"spend"`
}

func (l *Ledger) snapshotLocked(now time.Time) *Snapshot {
	s := &Snapshot{
		TotalTokens:  l.totals.TotalTokens,
		TotalCost:    l.totals.Cost,
		Totals:       l.totals,
		Models:       make(map[string]Usage, len(l.models)),
		Tasks:        make(map[string]TaskUsage, len(l.tasks)),
		Requests:     l.ring.records(),
		Timestamp:    float64(now.UnixNano()) / float64(time.Second),
		Date:         now.UTC().Format(time.RFC3339),
		BudgetLimits: l.limits,
		BudgetStatus: l.budgetLocked(now),
		Spend:        l.spend.clone(),
	}
	for id, u := range l.models {
		s.Models[id] = u
	}
	for name, tu := range l.tasks {
		models := make(map[string]Usage, len(tu.Models))
		for id, u := range tu.Models {
			models[id] = u
		}
		s.Tasks[name] = TaskUsage{Usage: tu.Usage, Models: models}
	}

	return s
}

func (l *Ledger) write(s *Snapshot) (string, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	path, err := WriteSnapshot(l.dir, s)
	if err != nil {
		return "", err
	}

	l.logger.Info("cost snapshot written",
		zap.String("path", path),
		zap.Float64("total_cost", s.TotalCost),
		zap.Int("requests", s.Totals.Requests),
	)
	return path, nil
}

// WriteSnapshot stores s in dir under a name derived from its date. The file
// appears atomically.
func WriteSnapshot(dir string, s *Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}

	at, err := time.Parse(time.RFC3339, s.Date)
	if err != nil {
		at = time.Now()
	}
	path := freeName(dir, at.UTC().Format(snapshotLayout))

	tmp, err := os.CreateTemp(dir, ".cost_report_*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		tmp.Close()
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename snapshot: %w", err)
	}

	return path, nil
}

func freeName(dir, stamp string) string {
	path := filepath.Join(dir, snapshotPrefix+stamp+".json")
	for i := 1; ; i++ {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s%s_%03d.json", snapshotPrefix, stamp, i))
	}
}

// LoadLatest reads the newest cost report in dir.
func LoadLatest(dir string) (*Snapshot, error) {
	matches, err := filepath.Glob(filepath.Join(dir, snapshotPrefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	if len(matches) == 0 {
		return nil, ErrNoSnapshot
	}
	sort.Strings(matches)
	latest := matches[len(matches)-1]

	data, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", latest, err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", latest, err)
	}
	if s.Totals.TotalTokens == 0 && s.TotalTokens > 0 {
		s.Totals.TotalTokens = s.TotalTokens
		s.Totals.Cost = s.TotalCost
	}

	return &s, nil
}
