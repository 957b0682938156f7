package host

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/spatialbridge/internal/logging"
)

// DefaultDebounce collapses the burst of events editors produce per save.
const DefaultDebounce = 50 * time.Millisecond

// SettingsWatcher calls back when a file is written or replaced.
type SettingsWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func(path string)
	logger   *logging.Logger

	started  atomic.Bool
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewSettingsWatcher watches path. onChange runs on the watcher goroutine;
// callers hand work to the main context themselves. The parent directory is
// watched so that editors that save by rename are seen.
func NewSettingsWatcher(path string, debounce time.Duration, logger *logging.Logger, onChange func(path string)) (*SettingsWatcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("settings watcher: onChange must not be nil")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &SettingsWatcher{
		watcher:  watcher,
		path:     abs,
		debounce: debounce,
		onChange: onChange,
		logger:   logger.With("component", "settings_watcher"),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start begins delivering change notifications.
func (w *SettingsWatcher) Start() {
	if w.started.CompareAndSwap(false, true) {
		go w.watchLoop()
	}
}

// Stop stops the watcher and waits for the loop to exit. It is safe to call
// more than once.
func (w *SettingsWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
		if w.started.CompareAndSwap(false, true) {
			close(w.done)
		}
	})
	<-w.done
}

func (w *SettingsWatcher) watchLoop() {
	defer close(w.done)

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C
	pending := false

	for {
		select {
		case <-w.stopCh:
			debounceTimer.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = true
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			if !pending {
				continue
			}
			pending = false
			w.logger.Debug("watched file changed", "path", w.path)
			w.onChange(w.path)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err.Error())
		}
	}
}
