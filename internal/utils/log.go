// Package utils holds small helpers shared by the CLI and the invocation layer.
package utils

import (
	"strings"
	"unicode"
)

// TruncateForLog collapses whitespace runs and cuts s to limit runes, marking
// the cut with an ellipsis. Model output is multi-line and would otherwise
// break console log lines.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	s = strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
