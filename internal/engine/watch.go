package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// watchedExts are the files whose changes trigger a run.
var watchedExts = map[string]bool{".json": true, ".yaml": true, ".yml": true, ".csv": true}

// Watch applies the migration once, then again whenever the manifest or a
// data file in the project directory changes, until ctx is done. The manifest
// is reloaded before each triggered run. onRun, when non-nil, receives every
// run outcome.
func (e *Engine) Watch(ctx context.Context, debounce time.Duration, onRun func(*Result, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := e.Manifest().Dir
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	e.logger.Info("watching for changes", "dir", dir)

	runs := make(chan struct{}, 1)
	trigger := func() {
		select {
		case runs <- struct{}{}:
		default:
		}
	}
	trigger()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-runs:
			res, err := e.Apply(ctx)
			if err != nil {
				e.logger.Error("run failed", "error", err.Error())
			}
			if onRun != nil {
				onRun(res, err)
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !watchedExts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			name := filepath.Base(event.Name)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				e.logger.Info("change detected", "file", name)
				if err := e.Reload(); err != nil {
					e.logger.Error("failed to reload manifest", "error", err.Error())
					return
				}
				trigger()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("watcher error", "error", err.Error())
		}
	}
}
