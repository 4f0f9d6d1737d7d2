// Package watcher notifies when the EndNote XML export file changes on
// disk, so `index --watch` can re-run incremental indexing. Rapid save
// sequences (editors often truncate, write, and rename) are coalesced
// into a single notification per debounce window.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceWindow is how long to wait after the last write before
// signaling a change.
const DefaultDebounceWindow = 500 * time.Millisecond

// ExportWatcher watches one export file for changes.
type ExportWatcher struct {
	path   string // absolute path of the watched file
	window time.Duration
	logger *slog.Logger

	fsw     *fsnotify.Watcher
	changes chan time.Time
	errs    chan error

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewExportWatcher creates a watcher for the given export file. A
// non-positive window uses DefaultDebounceWindow.
func NewExportWatcher(path string, window time.Duration, logger *slog.Logger) (*ExportWatcher, error) {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &ExportWatcher{
		path:    abs,
		window:  window,
		logger:  logger,
		changes: make(chan time.Time, 1),
		errs:    make(chan error, 1),
	}, nil
}

// Start begins watching. The watcher observes the parent directory
// rather than the file itself: EndNote and most editors replace the
// export via rename, which would otherwise detach a file-level watch.
func (w *ExportWatcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}
	w.fsw = fsw

	go w.loop(ctx)
	w.logger.Info("watching export file", slog.String("path", w.path))
	return nil
}

func (w *ExportWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleNotify()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
				w.logger.Warn("watcher error dropped", slog.String("error", err.Error()))
			}
		}
	}
}

// scheduleNotify restarts the debounce timer; the notification fires
// once writes go quiet for a full window.
func (w *ExportWatcher) scheduleNotify() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.window, w.notify)
}

func (w *ExportWatcher) notify() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	select {
	case w.changes <- time.Now():
	default:
		// A notification is already pending; the consumer will pick up
		// the latest state when it runs.
	}
}

// Changes delivers one signal per quiet period after the export file
// was written.
func (w *ExportWatcher) Changes() <-chan time.Time {
	return w.changes
}

// Errors delivers non-fatal watcher errors.
func (w *ExportWatcher) Errors() <-chan error {
	return w.errs
}

// Stop stops watching. Safe to call more than once.
func (w *ExportWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	if w.fsw != nil {
		_ = w.fsw.Close()
	}
}
