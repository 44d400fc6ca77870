// Package util provides small text helpers shared by the command line.
package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const ellipsis = "..."

// Truncate shortens s to maxWidth terminal columns, ending it with "..."
// when anything was cut. Escape sequences and wide characters are measured
// the way the terminal draws them.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= len(ellipsis) {
		return ellipsis
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, ellipsis)
}

// FirstLine returns the first line of s that is not blank, trimmed. Leading
// markdown heading markers are dropped.
func FirstLine(s string) string {
	for line := range strings.Lines(s) {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimLeft(line, "#"))
		if line != "" {
			return line
		}
	}
	return ""
}

// Excerpt is the first meaningful line of a page's content, cut to fit
// maxWidth columns.
func Excerpt(content string, maxWidth int) string {
	line := FirstLine(content)
	if line == "" {
		return ""
	}
	return Truncate(line, maxWidth)
}
