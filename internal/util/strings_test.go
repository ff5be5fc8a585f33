package util

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{name: "short string unchanged", input: "hello", max: 10, expected: "hello"},
		{name: "exact length unchanged", input: "hello", max: 5, expected: "hello"},
		{name: "long string truncated", input: "a-very-long-project-name", max: 10, expected: "a-very-lo…"},
		{name: "max of one keeps first rune", input: "hello", max: 1, expected: "h"},
		{name: "multibyte runes counted as one", input: "héllo wörld", max: 8, expected: "héllo w…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.input, tt.max); got != tt.expected {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.expected)
			}
		})
	}
}

func TestTruncateANSIPlain(t *testing.T) {
	if got := TruncateANSI("hello", 10); got != "hello" {
		t.Errorf("TruncateANSI(hello, 10) = %q", got)
	}
	got := TruncateANSI("hello world", 8)
	if lipgloss.Width(got) > 8 {
		t.Errorf("TruncateANSI width = %d, want <= 8", lipgloss.Width(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("TruncateANSI(hello world, 8) = %q, want ellipsis suffix", got)
	}
}

func TestTruncateANSIPreservesStyling(t *testing.T) {
	styled := lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Render("a styled session status line")
	got := TruncateANSI(styled, 12)
	if lipgloss.Width(got) > 12 {
		t.Errorf("TruncateANSI width = %d, want <= 12", lipgloss.Width(got))
	}
}

func TestTruncateANSIZeroWidth(t *testing.T) {
	if got := TruncateANSI("hello", 0); got != "" {
		t.Errorf("TruncateANSI(hello, 0) = %q, want empty", got)
	}
}
