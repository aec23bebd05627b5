// Package thinking computes how many reasoning tokens a model may spend on a
// task and renders that allowance in each provider's request shape.
package thinking

import (
	"math"

	"go.uber.org/zap"

	"github.com/spigell/resume-optimizer/internal/catalog"
	"github.com/spigell/resume-optimizer/internal/content"
	"github.com/spigell/resume-optimizer/internal/tasks"
)

// Default clamp bounds.
const (
	DefaultMin = 0
	DefaultMax = 30000
)

// Context factor keys. Values are expected in [0,1].
const (
	FactorImportance      = "importance"
	FactorTimeSensitive   = "time_sensitive"
	FactorQualityCritical = "quality_critical"
)

const (
	sizeThreshold    = 2000
	maxSizeFactor    = 2.5
	sectionThreshold = 5
	maxSectionFactor = 1.5
)

// Factors carries named context factors.
type Factors map[string]float64

// Options shapes a budget calculation. A nil Min and a non-positive Max fall
// back to the calculator bounds.
type Options struct {
	Metrics *content.Metrics
	Factors Factors
	Min     *int
	Max     int
}

// Calculator turns task complexity into a thinking budget.
type Calculator struct {
	enabled  bool
	min, max int
	logger   *zap.Logger
}

type CalculatorOption func(*Calculator)

// WithBounds sets the process-wide clamp used when a calculation does not
// carry its own.
func WithBounds(minBudget, maxBudget int) CalculatorOption {
	return func(c *Calculator) {
		c.min = minBudget
		if maxBudget > 0 {
			c.max = maxBudget
		}
	}
}

// NewCalculator creates a calculator. When enabled is false every budget is
// zero, regardless of the inputs.
func NewCalculator(enabled bool, logger *zap.Logger, opts ...CalculatorOption) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Calculator{enabled: enabled, min: DefaultMin, max: DefaultMax, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports the global toggle.
func (c *Calculator) Enabled() bool { return c.enabled }

// Budget returns the reasoning-token allowance and its provider-specific
// configuration. It never fails.
func (c *Calculator) Budget(complexity tasks.Complexity, provider string, opts Options) (int, Config) {
	if !c.enabled {
		return 0, Config{}
	}
	if complexity == tasks.Simple {
		return 0, Config{}
	}

	minBudget, maxBudget := c.min, opts.Max
	if opts.Min != nil {
		minBudget = *opts.Min
	}
	if maxBudget <= 0 {
		maxBudget = c.max
	}
	if minBudget < 0 {
		minBudget = 0
	}
	if minBudget > maxBudget {
		minBudget = maxBudget
	}

	budget := float64(baseBudget(complexity))

	if m := opts.Metrics; m != nil {
		budget *= sizeFactor(m.Tokens)
		budget *= sectionFactor(m.Sections)
		if m.Score > 0 {
			budget *= clamp(m.Score, 0.5, 2.0)
		}
	}

	if v, ok := opts.Factors[FactorImportance]; ok {
		budget *= 1 + clamp(v, 0, 1)
	}
	if v, ok := opts.Factors[FactorTimeSensitive]; ok {
		budget *= 1 - 0.5*clamp(v, 0, 1)
	}
	if v, ok := opts.Factors[FactorQualityCritical]; ok {
		budget *= 1 + clamp(v, 0, 1)
	}

	tokens := int(math.Round(budget))
	if tokens < minBudget {
		tokens = minBudget
	}
	if tokens > maxBudget {
		tokens = maxBudget
	}

	c.logger.Debug("calculated thinking budget",
		zap.String("complexity", complexity.String()),
		zap.String("provider", provider),
		zap.Int("budget", tokens),
	)

	return tokens, c.Format(provider, tokens)
}

// Format renders a budget for a provider. Unknown providers are logged and
// get Anthropic's shape.
func (c *Calculator) Format(provider string, tokens int) Config {
	if tokens <= 0 {
		return Config{}
	}

	p, err := catalog.ParseProvider(provider)
	if err != nil {
		c.logger.Warn("unknown provider for thinking config, using anthropic format",
			zap.String("provider", provider),
		)
		p = catalog.ProviderAnthropic
	}

	return Config{Provider: p, Budget: tokens}
}

func baseBudget(c tasks.Complexity) int {
	switch c {
	case tasks.Simple:
		return 0
	case tasks.Moderate:
		return 2000
	case tasks.Complex:
		return 5000
	case tasks.VeryComplex:
		return 10000
	case tasks.Critical:
		return 15000
	default:
		return 0
	}
}

// sizeFactor grows logarithmically once input passes the threshold.
func sizeFactor(tokens int) float64 {
	if tokens <= sizeThreshold {
		return 1.0
	}
	f := 1 + 0.5*math.Log2(float64(tokens)/sizeThreshold)
	return math.Min(f, maxSizeFactor)
}

func sectionFactor(sections int) float64 {
	if sections <= sectionThreshold {
		return 1.0
	}
	f := 1 + 0.05*float64(sections-sectionThreshold)
	return math.Min(f, maxSectionFactor)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
