package tui

import (
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithInterrupt registers fn to run when the user quits the view.
func WithInterrupt(fn func()) ModelOption {
	return func(m *Model) {
		m.onQuit = fn
	}
}

// NewModel creates a model drawing to w.
func NewModel(w io.Writer, opts ...ModelOption) *Model {
	if w == nil {
		w = os.Stderr
	}
	lipgloss.SetColorProfile(ColorProfile())

	m := &Model{
		Follow:  true,
		byName:  make(map[string]*Row),
		bySpan:  make(map[string]*Row),
		spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(runningStyle)),
		logs:    viewport.New(0, minLogHeight),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ColorProfile returns Ascii when NO_COLOR is set and TrueColor otherwise.
func ColorProfile() termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	return termenv.TrueColor
}
