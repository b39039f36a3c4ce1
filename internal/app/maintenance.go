package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.trai.ch/wasmblock/internal/adapters/cas"
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/zerr"
)

// CacheOptions configuration for the Cache method.
type CacheOptions struct {
	ConfigPath string
	Clean      bool
}

// Cache prints the location, size and entry count of the build cache, or removes it.
func (a *App) Cache(_ context.Context, opts CacheOptions) error {
	cfg, err := a.configLoader.Load(".", opts.ConfigPath)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}
	store := cas.NewStore(cfg.CacheRoot, a.logger)

	if opts.Clean {
		if err := store.Clean(); err != nil {
			return err
		}
		a.logger.Info("removed cache at " + store.Root())
		return nil
	}

	stats, err := store.Stats()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.stdout, "Location: %s\nSize:     %s\nEntries:  %d\n",
		stats.Root, cas.FormatBytes(stats.Bytes), stats.Entries)
	return err
}

// BackendsOptions configuration for the Backends method.
type BackendsOptions struct {
	ConfigPath string
}

// Backends lists every registered backend with its language tags and the availability of its tools.
func (a *App) Backends(_ context.Context, opts BackendsOptions) error {
	cfg, err := a.configLoader.Load(".", opts.ConfigPath)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}
	exec := a.executors.ForConfig(cfg)
	registry, err := a.newRegistry(exec, cfg)
	if err != nil {
		return domain.NewConfigurationError(err)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("BACKEND", "LANGUAGES", "FAMILY", "TOOLS")
	for _, b := range registry.Backends() {
		d := b.Descriptor()
		t.Row(d.ID, strings.Join(d.Languages, ", "), string(d.Family), toolStatus(exec, d.Tools))
	}

	_, err = fmt.Fprintln(a.stdout, t.String())
	return err
}

func toolStatus(exec ports.Executor, tools []string) string {
	if len(tools) == 0 {
		return "-"
	}
	parts := make([]string, len(tools))
	for i, tool := range tools {
		mark := "✓"
		if _, err := exec.LookPath(tool); err != nil {
			mark = "✗"
		}
		parts[i] = tool + " " + mark
	}
	return strings.Join(parts, ", ")
}
