package optimizer

import (
	"regexp"
	"strings"

	"github.com/spigell/resume-optimizer/internal/tasks"
)

// Example blocks are delimited by these tags.
const (
	ExampleOpen  = "<example>"
	ExampleClose = "</example>"
)

var (
	exampleBlock   = regexp.MustCompile(`(?is)` + regexp.QuoteMeta(ExampleOpen) + `.*?` + regexp.QuoteMeta(ExampleClose))
	exampleLine    = regexp.MustCompile(`(?im)^[ \t]*example:.*$`)
	explanatory    = regexp.MustCompile(`(?:This means|In other words)\b[^.!?\n]*[.!?]?[ \t]*`)
	blankLineGroup = regexp.MustCompile(`\n[ \t]*(?:\n[ \t]*)+\n`)
)

// OptimizePrompt trims a prompt according to task complexity. Simple and
// moderate prompts always lose example blocks; excludeExamples also drops
// "Example:" lines from simple prompts. Complex and harder tasks get the
// prompt back unchanged.
func OptimizePrompt(text string, c tasks.Complexity, excludeExamples bool) string {
	switch c {
	case tasks.Simple:
		text = exampleBlock.ReplaceAllString(text, "")
		if excludeExamples {
			text = exampleLine.ReplaceAllString(text, "")
		}
		text = explanatory.ReplaceAllString(text, "")
		return dropBlankLines(text)
	case tasks.Moderate:
		text = exampleBlock.ReplaceAllString(text, "")
		return blankLineGroup.ReplaceAllString(text, "\n\n")
	default:
		return text
	}
}

func dropBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
