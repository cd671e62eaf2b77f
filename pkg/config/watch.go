package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/multipass/pkg/observability"
)

// reloadDelay coalesces the burst of events an editor save produces
const reloadDelay = 200 * time.Millisecond

// Watch reloads path whenever it changes and passes every valid result to
// onChange. Invalid files are logged and skipped; the previous settings
// stay in effect. Watch blocks until ctx is done.
//
// The directory is watched rather than the file so replacements by
// rename, as editors and config map updates do, are seen.
func Watch(ctx context.Context, path string, logger *observability.Logger, onChange func(*FileConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	logger = logger.WithField("file", abs)
	logger.Info("Watching config file for changes")

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			fc, err := LoadFile(abs)
			if err == nil {
				err = fc.Validate()
			}
			if err != nil {
				logger.WithError(err).Error("Ignoring invalid config file")
				continue
			}
			logger.Info("Config file reloaded")
			onChange(fc)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("Config watcher error")
		}
	}
}

// Validate checks a reloaded file
func (f *FileConfig) Validate() error {
	if err := f.Login.Validate(); err != nil {
		return err
	}
	return validateProviders(f.Providers)
}
