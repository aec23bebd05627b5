package optimizer

import (
	"math"
	"sort"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/resume-optimizer/internal/catalog"
	"github.com/spigell/resume-optimizer/internal/tasks"
)

// rawOverrides is the loosely typed caller dict after decoding.
type rawOverrides struct {
	Complexity      string   `json:"complexity"`
	Importance      string   `json:"importance"`
	Tier            string   `json:"tier"`
	CostSensitivity *float64 `json:"cost_sensitivity"`
}

// Overrides are the validated caller overrides. Nil members were absent or
// invalid.
type Overrides struct {
	Complexity      *tasks.Complexity
	Importance      *tasks.Importance
	Tier            *catalog.Tier
	CostSensitivity *float64
}

// ParseOverrides decodes a caller dict. Numbers given as strings are accepted.
// Invalid values are logged and dropped; unknown keys are logged.
func ParseOverrides(in map[string]any, logger *zap.Logger) Overrides {
	var out Overrides
	if len(in) == 0 {
		return out
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		raw rawOverrides
		md  mapstructure.Metadata
	)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           &raw,
	})
	if err != nil {
		logger.Warn("cannot build override decoder", zap.Error(err))
		return out
	}
	if err := decoder.Decode(in); err != nil {
		// fields decoded before the failure are still usable
		logger.Warn("ignoring malformed overrides", zap.Error(err))
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		logger.Warn("ignoring unknown override keys", zap.Strings("keys", md.Unused))
	}

	if raw.Complexity != "" {
		if c, err := tasks.ParseComplexity(raw.Complexity); err != nil {
			logger.Warn("ignoring complexity override", zap.Error(err))
		} else {
			out.Complexity = &c
		}
	}
	if raw.Importance != "" {
		if i, err := tasks.ParseImportance(raw.Importance); err != nil {
			logger.Warn("ignoring importance override", zap.Error(err))
		} else {
			out.Importance = &i
		}
	}
	if raw.Tier != "" {
		if t, err := catalog.ParseTier(raw.Tier); err != nil {
			logger.Warn("ignoring tier override", zap.Error(err))
		} else {
			out.Tier = &t
		}
	}
	if v := raw.CostSensitivity; v != nil {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			logger.Warn("ignoring cost_sensitivity override", zap.Float64("value", *v))
		} else {
			out.CostSensitivity = v
		}
	}

	return out
}
