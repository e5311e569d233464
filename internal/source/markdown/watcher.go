package markdown

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last filesystem
// event before notifying, so a burst of editor writes triggers one sync.
const DefaultDebounce = 2 * time.Second

// Watcher reports changes to markdown notes under a source directory.
type Watcher struct {
	dir      string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher over a source directory.
func NewWatcher(dir string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{dir: dir, debounce: DefaultDebounce, logger: logger}
}

// WithDebounce overrides the settle delay.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// Run watches the directory tree and calls onChange after writes settle.
// It blocks until the context is cancelled.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := w.addRecursive(watcher, w.dir); err != nil {
		return err
	}

	var timer *time.Timer
	var timerCh <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			// New directories need their own watch.
			if event.Op.Has(fsnotify.Create) {
				if err := w.addRecursive(watcher, event.Name); err == nil {
					w.logger.Debug("watching new path", "path", event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-timerCh:
			timer = nil
			timerCh = nil
			onChange()
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op.Has(fsnotify.Chmod) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if strings.EqualFold(filepath.Ext(event.Name), ".md") {
		return true
	}
	if filepath.Ext(event.Name) != "" {
		return false
	}
	// Extensionless creates are checked on disk: a new directory needs its
	// own watch, but a stray file like LICENSE must not trigger a sync.
	if event.Op.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		return err == nil && info.IsDir()
	}
	// A removed or renamed directory may have held notes.
	return event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename)
}

func (w *Watcher) addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || !entry.IsDir() {
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
