// Package style holds the colors and icons shared by the logger and the renderers.
package style

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Violet = lipgloss.Color("#7C3AED")
	Slate  = lipgloss.Color("#667085")
	Ink    = lipgloss.Color("#0B0F19")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
	Cyan   = lipgloss.Color("#0891B2")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Cached  = "↺"
	Dot     = "●"
	Circle  = "○"
)

// Header is the bold title style used by the interactive renderer.
var Header = lipgloss.NewStyle().Bold(true).Foreground(Violet)

// Muted renders secondary text such as durations.
var Muted = lipgloss.NewStyle().Foreground(Slate)
