// Package watch reports changes to a single file.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dimitar-ivanov-93/dag-sorting/internal/log"
)

// DefaultDebounce is how long a burst of events is coalesced for.
const DefaultDebounce = 100 * time.Millisecond

// Watcher calls a handler each time a file changes.
type Watcher struct {
	Path     string
	Debounce time.Duration
	Logger   log.Logger
}

// Run watches the file until ctx is cancelled and calls onChange after every
// burst of writes, creates or renames of it. The parent directory is watched
// so editors that replace the file on save are seen too.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	logger := w.Logger
	if logger == nil {
		logger = log.Noop
	}
	logger = logger.WithValues(log.Kv{"svc": "watch.Watcher", "file": w.Path})

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	target, err := filepath.Abs(w.Path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", w.Path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, target) {
				continue
			}
			logger.Debugf("fsnotify event=%s", event.Op)
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Errorf("fsnotify error=%v", err)
		case <-timer.C:
			onChange()
		}
	}
}

func relevant(event fsnotify.Event, target string) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
