package tasks

import (
	"fmt"
	"strings"
)

// Complexity orders how hard a task is. The zero value is Simple.
type Complexity int

const (
	Simple Complexity = iota
	Moderate
	Complex
	VeryComplex
	Critical
)

var complexityNames = [...]string{"simple", "moderate", "complex", "very_complex", "critical"}

func (c Complexity) String() string {
	if c < Simple || c > Critical {
		return "unknown"
	}
	return complexityNames[c]
}

// MarshalText keeps JSON output readable.
func (c Complexity) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Escalate returns c raised by n levels, capped at Critical.
func (c Complexity) Escalate(n int) Complexity {
	next := c + Complexity(n)
	if next > Critical {
		return Critical
	}
	return next
}

// Max returns the higher of the two complexities.
func (c Complexity) Max(other Complexity) Complexity {
	if other > c {
		return other
	}
	return c
}

// Importance orders how much a task matters to the user.
type Importance int

const (
	Background Importance = iota
	Low
	Medium
	High
	CriticalImportance
)

var importanceNames = [...]string{"background", "low", "medium", "high", "critical"}

func (i Importance) String() string {
	if i < Background || i > CriticalImportance {
		return "unknown"
	}
	return importanceNames[i]
}

// MarshalText keeps JSON output readable.
func (i Importance) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

// Weight maps importance onto [0,1] for thinking-budget context factors.
func (i Importance) Weight() float64 {
	return float64(i) / float64(CriticalImportance)
}

// InvalidValueError is returned when an override names a value outside its
// enum. The caller decides which default to keep.
type InvalidValueError struct {
	Field string
	Value string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// ParseComplexity parses a complexity name.
func ParseComplexity(s string) (Complexity, error) {
	norm := normalizeLevel(s)
	for i, name := range complexityNames {
		if name == norm {
			return Complexity(i), nil
		}
	}
	return Simple, &InvalidValueError{Field: "complexity", Value: s}
}

// ParseImportance parses an importance name.
func ParseImportance(s string) (Importance, error) {
	norm := normalizeLevel(s)
	for i, name := range importanceNames {
		if name == norm {
			return Importance(i), nil
		}
	}
	return Background, &InvalidValueError{Field: "importance", Value: s}
}

func normalizeLevel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "-", "_")
}

// Sensitivity is how strongly a task penalises expensive models.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Factor is the multiplier applied to the selector's cost penalty.
func (s Sensitivity) Factor() float64 {
	switch s {
	case SensitivityLow:
		return 0.5
	case SensitivityHigh:
		return 2.0
	case SensitivityMedium:
		return 1.0
	default:
		return 1.0
	}
}

// TokenClass is the rough size of a task's prompt and output.
type TokenClass string

const (
	TokensSmall  TokenClass = "small"
	TokensMedium TokenClass = "medium"
	TokensLarge  TokenClass = "large"
)
