// Package content estimates how demanding a resume or job description is for
// a model: rough token count, structure and keyword density, folded into a
// discrete complexity level.
package content

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/spigell/resume-optimizer/internal/tasks"
)

// Metrics describes one piece of content. Values are recomputed per call.
type Metrics struct {
	Tokens   int     `json:"tokens"`
	Sections int     `json:"sections"`
	Keywords int     `json:"keywords"`
	Score    float64 `json:"score"`
}

const charsPerToken = 4

var sectionNames = []string{
	"summary",
	"professional summary",
	"objective",
	"experience",
	"work experience",
	"professional experience",
	"employment",
	"education",
	"skills",
	"technical skills",
	"projects",
	"certifications",
	"awards",
	"publications",
	"languages",
	"volunteer",
	"interests",
	"references",
}

var complexIndustries = map[string]float64{
	"healthcare":     1.2,
	"finance":        1.2,
	"legal":          1.3,
	"pharmaceutical": 1.3,
	"aerospace":      1.3,
	"engineering":    1.15,
	"technology":     1.1,
	"consulting":     1.1,
	"research":       1.25,
}

var md = goldmark.New()

// Classify analyzes text (plus an optional job description) and returns its
// complexity level and metrics. Empty input lands in the lowest band.
func Classify(content, jobDescription, industry string) (tasks.Complexity, Metrics) {
	m := Analyze(content, jobDescription, industry)
	return Band(m.Score), m
}

// Analyze computes metrics without mapping them to a level.
func Analyze(content, jobDescription, industry string) Metrics {
	m := Metrics{
		Tokens: EstimateTokens(content) + EstimateTokens(jobDescription),
	}

	headings, emphasis := walkMarkdown(content)
	m.Sections = headings
	if m.Sections == 0 {
		m.Sections = countSectionLines(content)
	}
	m.Keywords = emphasis + countSkillItems(content)

	m.Score = 1.0 * IndustryFactor(industry) * lengthFactor(m.Tokens) * sectionFactor(m.Sections)
	return m
}

// EstimateTokens uses the chars/4 heuristic.
func EstimateTokens(s string) int {
	return len(s) / charsPerToken
}

// Band maps a complexity score onto a level.
func Band(score float64) tasks.Complexity {
	switch {
	case score < 0.8:
		return tasks.Simple
	case score < 1.0:
		return tasks.Moderate
	case score < 1.3:
		return tasks.Complex
	case score < 1.6:
		return tasks.VeryComplex
	default:
		return tasks.Critical
	}
}

// IndustryFactor returns the multiplier for industries known to produce dense
// resumes, 1.0 otherwise.
func IndustryFactor(industry string) float64 {
	industry = strings.ToLower(strings.TrimSpace(industry))
	if industry == "" {
		return 1.0
	}

	factor := 1.0
	for name, f := range complexIndustries {
		if strings.Contains(industry, name) && f > factor {
			factor = f
		}
	}
	return factor
}

func lengthFactor(tokens int) float64 {
	switch {
	case tokens < 2000:
		return 0.7
	case tokens < 4000:
		return 1.0
	default:
		return 1.3
	}
}

func sectionFactor(sections int) float64 {
	switch {
	case sections < 5:
		return 0.8
	case sections < 8:
		return 1.0
	default:
		return 1.2
	}
}

// walkMarkdown counts headings and top-level emphasis spans.
func walkMarkdown(content string) (headings, emphasis int) {
	if strings.TrimSpace(content) == "" {
		return 0, 0
	}

	doc := md.Parser().Parse(text.NewReader([]byte(content)))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading:
			headings++
		case ast.KindEmphasis:
			emphasis++
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return headings, emphasis
}

func countSectionLines(content string) int {
	count := 0
	for _, line := range strings.Split(content, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		line = strings.TrimRight(line, ":")
		if line == "" || len(line) > 40 {
			continue
		}
		for _, name := range sectionNames {
			if strings.HasPrefix(line, name) {
				count++
				break
			}
		}
	}
	return count
}

func countSkillItems(content string) int {
	count := 0
	for _, line := range strings.Split(content, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "skills") && !strings.Contains(lower, "technologies") {
			continue
		}
		_, items, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		for _, item := range strings.FieldsFunc(items, func(r rune) bool {
			return r == ',' || r == ';' || r == '|'
		}) {
			if strings.TrimSpace(item) != "" {
				count++
			}
		}
	}
	return count
}
