package tui

import (
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/wasmblock/internal/ui/style"
)

var (
	pendingStyle = lipgloss.NewStyle().Foreground(style.Slate)
	runningStyle = lipgloss.NewStyle().Foreground(style.Violet).Bold(true)
	builtStyle   = lipgloss.NewStyle().Foreground(style.Green)
	cachedStyle  = lipgloss.NewStyle().Foreground(style.Cyan)
	failedStyle  = lipgloss.NewStyle().Foreground(style.Red)

	selectedStyle = lipgloss.NewStyle().Foreground(style.Violet).Bold(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Background(style.Violet).
			Foreground(lipgloss.Color("#FFFFFF"))

	failureTitleStyle = titleStyle.Background(style.Red)
)
