package content

import (
	"strings"
	"testing"

	"github.com/spigell/resume-optimizer/internal/tasks"
)

const sampleResume = `# Jane Doe

## Summary
Backend engineer with **distributed systems** focus.

## Experience
* Built *payment* pipelines.

## Education
BSc Computer Science

## Skills
Skills: Go, Python, Kubernetes; Terraform | Postgres
`

func TestClassifyEmptyInput(t *testing.T) {
	level, m := Classify("", "", "")
	if level != tasks.Simple {
		t.Fatalf("expected simple, got %s", level)
	}
	if m.Tokens != 0 || m.Sections != 0 || m.Keywords != 0 {
		t.Fatalf("unexpected metrics for empty input: %+v", m)
	}
}

func TestAnalyzeCountsMarkdownStructure(t *testing.T) {
	m := Analyze(sampleResume, "", "")

	if m.Sections != 5 {
		t.Fatalf("expected 5 headings, got %d", m.Sections)
	}
	// two emphasis spans plus five skill items
	if m.Keywords != 7 {
		t.Fatalf("expected 7 keywords, got %d", m.Keywords)
	}
	if m.Tokens != len(sampleResume)/4 {
		t.Fatalf("unexpected token estimate %d", m.Tokens)
	}
}

func TestAnalyzeFallsBackToSectionNames(t *testing.T) {
	plain := "John Smith\nSummary\nText\nExperience:\nMore text\nEducation\nSkills: Go, SQL\n"
	m := Analyze(plain, "", "")

	if m.Sections != 4 {
		t.Fatalf("expected 4 sections from line scan, got %d", m.Sections)
	}
	if m.Keywords != 2 {
		t.Fatalf("expected 2 skill keywords, got %d", m.Keywords)
	}
}

func TestAnalyzeAddsJobDescriptionTokens(t *testing.T) {
	jd := strings.Repeat("a", 400)
	m := Analyze("abcd", jd, "")
	if m.Tokens != 101 {
		t.Fatalf("expected 101 tokens, got %d", m.Tokens)
	}
}

func TestScoreFactors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		industry string
		want     float64
		level    tasks.Complexity
	}{
		{
			name:  "short unstructured",
			want:  1.0 * 0.7 * 0.8,
			level: tasks.Simple,
		},
		{
			name:    "medium length few sections",
			content: strings.Repeat("x", 2500*4),
			want:    1.0 * 1.0 * 0.8,
			level:   tasks.Moderate,
		},
		{
			name:     "long legal resume many sections",
			content:  strings.Repeat("# Section\n", 8) + strings.Repeat("y", 4000*4),
			industry: "Corporate Legal",
			want:     1.3 * 1.3 * 1.2,
			level:    tasks.Critical,
		},
		{
			name:     "technology medium with sections",
			content:  strings.Repeat("# S\n", 6) + strings.Repeat("z", 2100*4),
			industry: "technology",
			want:     1.1 * 1.0 * 1.0,
			level:    tasks.Complex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, m := Classify(tt.content, "", tt.industry)
			if diff := m.Score - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("expected score %v, got %v", tt.want, m.Score)
			}
			if level != tt.level {
				t.Fatalf("expected %s, got %s", tt.level, level)
			}
		})
	}
}

func TestBand(t *testing.T) {
	tests := []struct {
		score float64
		want  tasks.Complexity
	}{
		{0.0, tasks.Simple},
		{0.79, tasks.Simple},
		{0.8, tasks.Moderate},
		{0.99, tasks.Moderate},
		{1.0, tasks.Complex},
		{1.29, tasks.Complex},
		{1.3, tasks.VeryComplex},
		{1.59, tasks.VeryComplex},
		{1.6, tasks.Critical},
		{5, tasks.Critical},
	}
	for _, tt := range tests {
		if got := Band(tt.score); got != tt.want {
			t.Fatalf("Band(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestIndustryFactor(t *testing.T) {
	if IndustryFactor("") != 1.0 || IndustryFactor("retail") != 1.0 {
		t.Fatal("unknown industries must not scale")
	}
	if IndustryFactor("Healthcare") != 1.2 {
		t.Fatal("expected healthcare factor")
	}
}
