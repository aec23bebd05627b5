package tasks

import (
	"errors"
	"testing"

	"github.com/spigell/resume-optimizer/internal/catalog"
)

func TestRequirementForUnknownTaskUsesDefault(t *testing.T) {
	req := RequirementFor("translate_to_klingon")

	if req.PreferredTier != catalog.TierStandard {
		t.Fatalf("expected standard tier, got %s", req.PreferredTier)
	}
	if req.BudgetSensitivity != SensitivityMedium {
		t.Fatalf("expected medium sensitivity, got %s", req.BudgetSensitivity)
	}
	if req.Capabilities.Len() != 1 || !req.Capabilities.Has(catalog.CapStructuredOutput) {
		t.Fatalf("expected only structured output, got %v", req.Capabilities.Strings())
	}
}

func TestRequirementForNormalizesNames(t *testing.T) {
	for _, name := range []string{"keyword_extraction", "  keyword_extraction ", "KeywordExtraction", "keyword-extraction"} {
		if got := RequirementFor(name).PreferredTier; got != catalog.TierEconomy {
			t.Fatalf("%q: expected economy tier, got %s", name, got)
		}
	}
}

func TestRequirementCloneIsIndependent(t *testing.T) {
	req := RequirementFor(ResumeEvaluation)
	clone := req.Clone()
	clone.Capabilities.Add(catalog.CapCreative)

	if RequirementFor(ResumeEvaluation).Capabilities.Has(catalog.CapCreative) || req.Capabilities.Has(catalog.CapCreative) {
		t.Fatal("clone mutated the original capabilities")
	}
}

func TestTierForIsTotal(t *testing.T) {
	valid := map[catalog.Tier]bool{catalog.TierEconomy: true, catalog.TierStandard: true, catalog.TierPremium: true}

	for c := Simple; c <= Critical; c++ {
		for i := Background; i <= CriticalImportance; i++ {
			if tier := TierFor(c, i); !valid[tier] {
				t.Fatalf("TierFor(%s, %s) = %q", c, i, tier)
			}
		}
	}

	if TierFor(Simple, Low) != catalog.TierEconomy {
		t.Fatal("simple+low must map to economy")
	}
	for i := Background; i <= CriticalImportance; i++ {
		if TierFor(Critical, i) != catalog.TierPremium {
			t.Fatalf("critical+%s must map to premium", i)
		}
	}
	if TierFor(Complexity(42), Importance(42)) != catalog.TierStandard {
		t.Fatal("unknown cell must default to standard")
	}
}

func TestParseLevels(t *testing.T) {
	tests := []struct {
		in      string
		want    Complexity
		wantErr bool
	}{
		{"simple", Simple, false},
		{" Very-Complex ", VeryComplex, false},
		{"CRITICAL", Critical, false},
		{"extreme", Simple, true},
		{"", Simple, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseComplexity(tt.in)
			if tt.wantErr {
				var invalid *InvalidValueError
				if !errors.As(err, &invalid) {
					t.Fatalf("expected InvalidValueError, got %v", err)
				}
				if invalid.Field != "complexity" || invalid.Value != tt.in {
					t.Fatalf("unexpected error payload: %+v", invalid)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ParseComplexity(%q) = %s, %v", tt.in, got, err)
			}
		})
	}

	if i, err := ParseImportance("high"); err != nil || i != High {
		t.Fatalf("ParseImportance(high) = %s, %v", i, err)
	}
	if _, err := ParseImportance("urgent"); err == nil {
		t.Fatal("expected error for unknown importance")
	}
}

func TestEscalate(t *testing.T) {
	if Simple.Escalate(1) != Moderate {
		t.Fatal("simple+1 should be moderate")
	}
	if VeryComplex.Escalate(3) != Critical {
		t.Fatal("escalation must cap at critical")
	}
	if Complex.Max(Simple) != Complex || Simple.Max(Complex) != Complex {
		t.Fatal("max must return the higher level")
	}
}

func TestCostSensitivityFollowsImportance(t *testing.T) {
	want := map[Importance]float64{Background: 2.0, Low: 1.8, Medium: 1.4, High: 1.0, CriticalImportance: 0.7}
	for i, v := range want {
		if got := CostSensitivity(i); got != v {
			t.Fatalf("CostSensitivity(%s) = %v, want %v", i, got, v)
		}
	}
}

func TestTaskAllowlists(t *testing.T) {
	for _, name := range []string{ResumeCustomization, CoverLetterGeneration, OptimizationPlan} {
		if !RequiresHighImportance(name) {
			t.Fatalf("%s must require high importance", name)
		}
	}
	if RequiresHighImportance(KeywordExtraction) {
		t.Fatal("keyword extraction is not on the allowlist")
	}
	if !BenefitsFromThinking("optimization_plan") || !BenefitsFromThinking("feedback_analysis") || !BenefitsFromThinking(ResumeEvaluation) {
		t.Fatal("expected thinking bonus tasks to match")
	}
	if BenefitsFromThinking(KeywordExtraction) {
		t.Fatal("keyword extraction gets no thinking bonus")
	}
	if !IsCreative(CoverLetterGeneration) || IsCreative(JobAnalysis) {
		t.Fatal("unexpected creative allowlist result")
	}
}

func TestStringers(t *testing.T) {
	if VeryComplex.String() != "very_complex" || Complexity(-1).String() != "unknown" {
		t.Fatal("unexpected complexity names")
	}
	if CriticalImportance.String() != "critical" || Importance(9).String() != "unknown" {
		t.Fatal("unexpected importance names")
	}
	if Background.Weight() != 0 || CriticalImportance.Weight() != 1 {
		t.Fatal("importance weight must span [0,1]")
	}
}
