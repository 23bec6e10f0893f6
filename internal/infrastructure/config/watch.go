package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the configuration file whenever it changes on disk.
//
// The parent directory is watched rather than the file itself, because most
// editors replace the file on save and a file watch would be lost. Reloaded
// configuration passes through the same defaults, env overrides and
// validation as Load; a file that fails to load is reported through onError
// and the previous configuration stays in effect.
//
// Parameters:
//   - ctx: Watching stops when the context is cancelled
//   - path: Path to the YAML configuration file
//   - onChange: Called with each successfully reloaded configuration
//   - onError: Called with load or watcher errors (may be nil)
//
// Returns:
//   - error: If the watcher cannot be created
func Watch(ctx context.Context, path string, onChange func(*Config), onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close() //nolint:errcheck // closing after a failed Add
		return fmt.Errorf("watching config directory: %w", err)
	}

	report := func(err error) {
		if onError != nil {
			onError(err)
		}
	}

	go func() {
		defer watcher.Close() //nolint:errcheck // shutdown path

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				cfg, err := Load(target)
				if err != nil {
					report(err)
					continue
				}
				onChange(cfg)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				report(fmt.Errorf("config watcher: %w", err))
			}
		}
	}()

	return nil
}
