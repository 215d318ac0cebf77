package formspec

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader keeps the store of a spec directory current. Readers call Store
// for the latest successfully loaded version; a reload that fails keeps the
// previous store.
type Reloader struct {
	dir      string
	current  atomic.Pointer[Store]
	logger   *slog.Logger
	debounce time.Duration
	onReload func(*Store)
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithReloadLogger sets the logger used for reload events.
func WithReloadLogger(logger *slog.Logger) ReloaderOption {
	return func(r *Reloader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDebounce sets how long Watch waits for a burst of file events to
// settle before reloading.
func WithDebounce(d time.Duration) ReloaderOption {
	return func(r *Reloader) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// WithOnReload registers a callback run after every successful reload.
func WithOnReload(fn func(*Store)) ReloaderOption {
	return func(r *Reloader) {
		r.onReload = fn
	}
}

// NewReloader loads dir once and returns a Reloader serving it.
func NewReloader(dir string, opts ...ReloaderOption) (*Reloader, error) {
	r := &Reloader{
		dir:      dir,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		debounce: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	store, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	r.current.Store(store)
	return r, nil
}

// Store returns the current store.
func (r *Reloader) Store() *Store {
	return r.current.Load()
}

// Reload loads the directory again and swaps the store on success.
func (r *Reloader) Reload() error {
	store, err := LoadDir(r.dir)
	if err != nil {
		return err
	}
	r.current.Store(store)
	r.logger.Info("formspec: specs reloaded", "dir", r.dir, "specs", len(store.Names()))
	if r.onReload != nil {
		r.onReload(store)
	}
	return nil
}

// Watch reloads the store whenever a file below the directory is written,
// created, removed or renamed. It blocks until ctx is done.
func (r *Reloader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("formspec: watch: %w", err)
	}
	defer w.Close()

	err = filepath.WalkDir(r.dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("formspec: watch %s: %w", r.dir, err)
	}

	timer := time.NewTimer(r.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				r.watchCreated(w, event.Name)
			}
			r.logger.Debug("formspec: spec change", "file", event.Name, "op", event.Op.String())
			timer.Reset(r.debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("formspec: watch error", "error", err)
		case <-timer.C:
			if err := r.Reload(); err != nil {
				r.logger.Warn("formspec: reload failed, keeping previous specs", "dir", r.dir, "error", err)
			}
		}
	}
}

type pathWatcher interface {
	Add(name string) error
}

// watchCreated adds a watch for a newly created directory. Files are
// covered by the watch on their parent.
func (r *Reloader) watchCreated(w pathWatcher, name string) {
	info, err := os.Stat(name)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.Add(name); err != nil {
		r.logger.Warn("formspec: watch directory failed", "dir", name, "error", err)
	}
}
