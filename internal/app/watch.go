package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/wasmblock/internal/adapters/watcher"
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/zerr"
)

// Watch builds the document and rebuilds it whenever the document or its configuration changes.
// Failed builds are reported and watching goes on. It returns nil once ctx is done.
func (a *App) Watch(ctx context.Context, opts BuildOptions) error {
	docPath, err := filepath.Abs(opts.Document)
	if err != nil {
		return zerr.Wrap(err, domain.ErrDocumentReadFailed.Error())
	}
	paths, err := watchPaths(docPath, opts.ConfigPath)
	if err != nil {
		return err
	}

	if err := a.watcher.Start(ctx, paths...); err != nil {
		return zerr.Wrap(err, "failed to start watcher")
	}
	defer func() {
		_ = a.watcher.Stop()
	}()

	changes := make(chan []string, 1)
	debouncer := watcher.NewDebouncer(watcher.DefaultDebounceWindow, func(changed []string) {
		select {
		case changes <- changed:
		default:
		}
	})
	defer debouncer.Stop()

	go func() {
		for event := range a.watcher.Events() {
			debouncer.Add(event.Path)
		}
	}()

	for {
		a.rebuild(ctx, opts)
		a.logger.Info("watching " + strings.Join(paths, ", "))

		select {
		case <-ctx.Done():
			return nil
		case changed := <-changes:
			a.logger.Info(fmt.Sprintf("%s changed, rebuilding", strings.Join(changed, ", ")))
		}
	}
}

func (a *App) rebuild(ctx context.Context, opts BuildOptions) {
	err := a.Build(ctx, opts)
	switch {
	case err == nil, errors.Is(err, domain.ErrBlocksFailed), ctx.Err() != nil:
	default:
		a.logger.Error(err)
	}
}

// watchPaths returns the document and the configuration file that applies to it, when there is one.
func watchPaths(docPath, configPath string) ([]string, error) {
	paths := []string{docPath}
	if configPath != "" {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return nil, zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
		}
		return append(paths, abs), nil
	}

	dir := filepath.Dir(docPath)
	for {
		candidate := filepath.Join(dir, domain.ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return append(paths, candidate), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return paths, nil
		}
		dir = parent
	}
}
