// Package detector picks the progress output mode for the current terminal.
package detector

import (
	"os"

	"go.trai.ch/zerr"
	"golang.org/x/term"
)

// OutputMode is the rendering mode of build progress.
type OutputMode int

const (
	// ModeAuto selects a mode from the environment.
	ModeAuto OutputMode = iota
	// ModeTUI is the interactive progress view.
	ModeTUI
	// ModeLinear prints one line per event, for CI logs and pipes.
	ModeLinear
)

// ErrInvalidOutputMode is returned for unknown --output-mode values.
var ErrInvalidOutputMode = zerr.New("invalid output mode")

// String returns the flag spelling of m.
func (m OutputMode) String() string {
	switch m {
	case ModeTUI:
		return "tui"
	case ModeLinear:
		return "linear"
	default:
		return "auto"
	}
}

// ciVariables are set by common CI services.
var ciVariables = []string{"GITHUB_ACTIONS", "GITLAB_CI", "BUILDKITE", "CIRCLECI", "JENKINS_URL"}

// DetectEnvironment returns ModeLinear when stdout is not a terminal or a CI service is detected,
// and ModeTUI otherwise.
func DetectEnvironment() OutputMode {
	if !term.IsTerminal(int(os.Stdout.Fd())) || isCI(os.Getenv) || os.Getenv("TERM") == "dumb" {
		return ModeLinear
	}
	return ModeTUI
}

func isCI(getenv func(string) string) bool {
	if ci := getenv("CI"); ci == "true" || ci == "1" {
		return true
	}
	for _, name := range ciVariables {
		if getenv(name) != "" {
			return true
		}
	}
	return false
}

// ResolveMode applies the --output-mode flag to the detected mode.
// flag is one of "auto", "tui", "linear", "ci" or empty.
func ResolveMode(detected OutputMode, flag string) (OutputMode, error) {
	switch flag {
	case "tui":
		return ModeTUI, nil
	case "linear", "ci":
		return ModeLinear, nil
	case "auto", "":
		return detected, nil
	default:
		return ModeAuto, zerr.With(ErrInvalidOutputMode, "mode", flag)
	}
}
