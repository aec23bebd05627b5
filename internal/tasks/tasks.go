// Package tasks holds the static knowledge about named resume tasks: what they
// require from a model, how complex and important they are by default, and
// which tier a (complexity, importance) pair maps to.
package tasks

import (
	"strings"

	"github.com/stoewer/go-strcase"

	"github.com/spigell/resume-optimizer/internal/catalog"
)

// Known task names.
const (
	ResumeEvaluation      = "resume_evaluation"
	OptimizationPlan      = "optimization_plan"
	ResumeCustomization   = "resume_customization"
	ResumeVerification    = "resume_verification"
	CoverLetterGeneration = "cover_letter_generation"
	KeywordExtraction     = "keyword_extraction"
	RequirementExtraction = "requirement_extraction"
	JobAnalysis           = "job_analysis"
	FeedbackAnalysis      = "feedback_analysis"
)

// Names lists the tasks with table entries.
var Names = []string{
	ResumeEvaluation,
	OptimizationPlan,
	ResumeCustomization,
	ResumeVerification,
	CoverLetterGeneration,
	KeywordExtraction,
	RequirementExtraction,
	JobAnalysis,
	FeedbackAnalysis,
}

// Requirement is what a task needs from a model.
type Requirement struct {
	PreferredTier     catalog.Tier
	FallbackTier      catalog.Tier
	Capabilities      catalog.CapabilitySet
	BudgetSensitivity Sensitivity
	TokenClass        TokenClass
}

// Clone returns a copy safe to mutate.
func (r Requirement) Clone() Requirement {
	r.Capabilities = r.Capabilities.Clone()
	return r
}

// Classification is the result of classifying one invocation.
type Classification struct {
	Complexity Complexity
	Importance Importance
}

// Normalize turns a free-form task name into its table key.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strcase.SnakeCase(name)
}

// Known reports whether the task has a table entry.
func Known(name string) bool {
	name = Normalize(name)
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// RequirementFor returns the requirement for a task. Unknown tasks get the
// default: standard tier, structured output, medium sensitivity.
func RequirementFor(name string) Requirement {
	caps := catalog.NewCapabilitySet
	switch Normalize(name) {
	case ResumeEvaluation:
		return Requirement{catalog.TierPremium, catalog.TierStandard,
			caps(catalog.CapStructuredOutput, catalog.CapThinking, catalog.CapDetailed), SensitivityLow, TokensLarge}
	case OptimizationPlan:
		return Requirement{catalog.TierPremium, catalog.TierStandard,
			caps(catalog.CapStructuredOutput, catalog.CapThinking, catalog.CapDetailed), SensitivityLow, TokensLarge}
	case ResumeCustomization:
		return Requirement{catalog.TierPremium, catalog.TierStandard,
			caps(catalog.CapStructuredOutput, catalog.CapDetailed), SensitivityLow, TokensLarge}
	case ResumeVerification:
		return Requirement{catalog.TierStandard, catalog.TierEconomy,
			caps(catalog.CapStructuredOutput), SensitivityMedium, TokensMedium}
	case CoverLetterGeneration:
		return Requirement{catalog.TierStandard, catalog.TierPremium,
			caps(catalog.CapCreative, catalog.CapDetailed), SensitivityMedium, TokensMedium}
	case KeywordExtraction:
		return Requirement{catalog.TierEconomy, catalog.TierStandard,
			caps(catalog.CapStructuredOutput, catalog.CapConcise), SensitivityHigh, TokensSmall}
	case RequirementExtraction:
		return Requirement{catalog.TierEconomy, catalog.TierStandard,
			caps(catalog.CapStructuredOutput), SensitivityHigh, TokensSmall}
	case JobAnalysis:
		return Requirement{catalog.TierStandard, catalog.TierEconomy,
			caps(catalog.CapStructuredOutput), SensitivityMedium, TokensMedium}
	case FeedbackAnalysis:
		return Requirement{catalog.TierStandard, catalog.TierEconomy,
			caps(catalog.CapStructuredOutput, catalog.CapThinking), SensitivityMedium, TokensMedium}
	default:
		return Requirement{catalog.TierStandard, catalog.TierEconomy,
			caps(catalog.CapStructuredOutput), SensitivityMedium, TokensMedium}
	}
}

// StaticClassification returns the table complexity and importance of a task.
func StaticClassification(name string) Classification {
	switch Normalize(name) {
	case ResumeEvaluation:
		return Classification{Complex, High}
	case OptimizationPlan:
		return Classification{VeryComplex, CriticalImportance}
	case ResumeCustomization:
		return Classification{VeryComplex, CriticalImportance}
	case ResumeVerification:
		return Classification{Moderate, Medium}
	case CoverLetterGeneration:
		return Classification{Complex, High}
	case KeywordExtraction:
		return Classification{Simple, Low}
	case RequirementExtraction:
		return Classification{Simple, Medium}
	case JobAnalysis:
		return Classification{Moderate, Medium}
	case FeedbackAnalysis:
		return Classification{Moderate, Medium}
	default:
		return Classification{Moderate, Medium}
	}
}

// RequiresHighImportance reports whether a task can never be classified below
// High importance.
func RequiresHighImportance(name string) bool {
	switch Normalize(name) {
	case ResumeCustomization, CoverLetterGeneration, OptimizationPlan:
		return true
	default:
		return false
	}
}

// IsCreative reports whether a task produces generative prose.
func IsCreative(name string) bool {
	switch Normalize(name) {
	case CoverLetterGeneration, ResumeCustomization:
		return true
	default:
		return false
	}
}

// BenefitsFromThinking reports whether a task gets the selector's thinking
// bonus.
func BenefitsFromThinking(name string) bool {
	name = Normalize(name)
	for _, prefix := range []string{"resume_evaluation", "optimization", "feedback"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// TierFor maps a classification onto a model tier. Every cell of the
// complexity x importance product is listed; unknown values fall back to
// standard.
func TierFor(c Complexity, i Importance) catalog.Tier {
	switch c {
	case Simple:
		switch i {
		case Background, Low, Medium:
			return catalog.TierEconomy
		case High:
			return catalog.TierStandard
		case CriticalImportance:
			return catalog.TierPremium
		}
	case Moderate:
		switch i {
		case Background, Low:
			return catalog.TierEconomy
		case Medium, High:
			return catalog.TierStandard
		case CriticalImportance:
			return catalog.TierPremium
		}
	case Complex:
		switch i {
		case Background, Low, Medium:
			return catalog.TierStandard
		case High, CriticalImportance:
			return catalog.TierPremium
		}
	case VeryComplex:
		switch i {
		case Background, Low:
			return catalog.TierStandard
		case Medium, High, CriticalImportance:
			return catalog.TierPremium
		}
	case Critical:
		switch i {
		case Background, Low, Medium, High, CriticalImportance:
			return catalog.TierPremium
		}
	}
	return catalog.TierStandard
}

// CostSensitivity is the selector multiplier derived from importance.
func CostSensitivity(i Importance) float64 {
	switch i {
	case Background:
		return 2.0
	case Low:
		return 1.8
	case Medium:
		return 1.4
	case High:
		return 1.0
	case CriticalImportance:
		return 0.7
	default:
		return 1.4
	}
}
