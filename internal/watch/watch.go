// Package watch runs a callback when max_migration.txt changes in any of a
// set of migrations directories.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lherron/rebase-migrations/internal/logging"
)

const (
	// Must match migration.MaxMigrationFile.
	pointerFile     = "max_migration.txt"
	DefaultDebounce = 500 * time.Millisecond
)

// Handler is called with the migrations directories whose pointer file
// changed since the last call.
type Handler func(ctx context.Context, dirs []string) error

type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	handler  Handler
	log      logging.Logger
}

// New starts watching dirs. Changes are reported to handler once no new
// event arrived for debounce.
func New(dirs []string, debounce time.Duration, handler Handler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		watcher:  fw,
		debounce: debounce,
		handler:  handler,
		log:      logging.Default(),
	}, nil
}

// Run processes events until ctx is done. Handler errors are logged and do
// not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	pending := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Base(event.Name) != pointerFile {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.log.WithField(logging.PathFieldKey, event.Name).Debugf("pointer file event: %s", event.Op)
			pending[filepath.Dir(event.Name)] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.log.WithError(err).Warn("watcher error")

		case <-timer.C:
			dirs := make([]string, 0, len(pending))
			for dir := range pending {
				dirs = append(dirs, dir)
			}
			clear(pending)
			if len(dirs) == 0 {
				continue
			}
			slices.Sort(dirs)
			if err := w.handler(ctx, dirs); err != nil {
				w.log.WithError(err).Error("handling pointer file change failed")
			}
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
