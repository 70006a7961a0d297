package main

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces the burst of filesystem events an editor fires
// for a single save into one reload.
const debounceDelay = 200 * time.Millisecond

// DashboardWatcher watches the on-disk dashboard page and notifies preview
// clients when it changes.
type DashboardWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func()
	logger   *slog.Logger
	done     chan struct{}
}

// NewDashboardWatcher sets up a watch on the directory containing path.
// Watching the directory instead of the file keeps the watch alive across
// editors that save by rename-replace.
func NewDashboardWatcher(path string, onChange func(), logger *slog.Logger) (*DashboardWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	if err = fsWatcher.Add(filepath.Dir(abs)); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	return &DashboardWatcher{
		watcher:  fsWatcher,
		path:     abs,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching for changes to the dashboard page.
func (w *DashboardWatcher) Start() {
	go func() {
		var pending <-chan time.Time
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				name, err := filepath.Abs(event.Name)
				if err != nil || name != w.path {
					continue
				}
				pending = time.After(debounceDelay)

			case <-pending:
				pending = nil
				w.logger.Debug("Dashboard page changed, notifying preview clients", "path", w.path)
				w.onChange()

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("Dashboard watcher error", "error", err)

			case <-w.done:
				return
			}
		}
	}()
}

// Stop stops the watcher.
func (w *DashboardWatcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}
