package costs

import "time"

// Limits are the configured dollar caps. Non-positive values disable a cap.
type Limits struct {
	Daily      float64 `json:"daily"`
	Monthly    float64 `json:"monthly"`
	PerRequest float64 `json:"per_request"`
}

// Level classifies spend against a limit.
type Level string

const (
	LevelOK       Level = "ok"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

const (
	warningPercent  = 75.0
	criticalPercent = 90.0
)

func (l Level) rank() int {
	switch l {
	case LevelCritical:
		return 2
	case LevelWarning:
		return 1
	default:
		return 0
	}
}

// UnderPressure reports whether spend should force cheaper models.
func (l Level) UnderPressure() bool {
	return l == LevelWarning || l == LevelCritical
}

// PeriodStatus is spend for one period.
type PeriodStatus struct {
	Spent       float64 `json:"spent"`
	Limit       float64 `json:"limit"`
	PercentUsed float64 `json:"percent_used"`
	Status      Level   `json:"status"`
}

// BudgetStatus is the daily and monthly view; Status is the worse of the two.
type BudgetStatus struct {
	Daily           PeriodStatus `json:"daily"`
	Monthly         PeriodStatus `json:"monthly"`
	Status          Level        `json:"status"`
	PerRequestLimit float64      `json:"per_request_limit"`
	Date            string       `json:"date"`
}

func periodStatus(spent, limit float64) PeriodStatus {
	ps := PeriodStatus{Spent: spent, Limit: limit, Status: LevelOK}
	if limit <= 0 {
		return ps
	}

	ps.PercentUsed = spent * 100 / limit
	switch {
	case ps.PercentUsed > criticalPercent:
		ps.Status = LevelCritical
	case ps.PercentUsed >= warningPercent:
		ps.Status = LevelWarning
	}
	return ps
}

func worse(a, b Level) Level {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

func dayKey(t time.Time) string   { return t.UTC().Format("2006-01-02") }
func monthKey(t time.Time) string { return t.UTC().Format("2006-01") }

// spendBuckets accumulates cost per UTC day and month so budget status does
// not depend on what is still in the request ring.
type spendBuckets struct {
	Days   map[string]float64 `json:"days"`
	Months map[string]float64 `json:"months"`
}

func newSpendBuckets() spendBuckets {
	return spendBuckets{Days: make(map[string]float64), Months: make(map[string]float64)}
}

func (s *spendBuckets) add(at time.Time, cost float64) {
	day, month := dayKey(at), monthKey(at)
	s.Days[day] += cost
	s.Months[month] += cost

	// days outside the current month are no longer read
	for k := range s.Days {
		if k[:7] != month {
			delete(s.Days, k)
		}
	}
}

func (s *spendBuckets) clone() spendBuckets {
	out := newSpendBuckets()
	for k, v := range s.Days {
		out.Days[k] = v
	}
	for k, v := range s.Months {
		out.Months[k] = v
	}
	return out
}
