// Package util provides shared utility functions used across the codebase.
package util

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Truncate shortens a string to max runes, appending "…" when it is cut.
// It is rune-aware but ignores ANSI escape codes and wide characters; for
// styled terminal rows use TruncateANSI instead.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}

// TruncateANSI shortens a string to maxWidth visual columns, appending "…"
// when it is cut. It accounts for ANSI escape sequences and wide characters,
// so styled rows keep their colors after truncation.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 1 {
		return ""
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "…")
}
