// Package watch runs a callback after files in a directory change. Bursts
// of events are debounced into a single call so a batch of document edits
// or an atomic snapshot replace triggers one rebuild or reload.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 400 * time.Millisecond

type Watcher struct {
	dir      string
	match    func(path string) bool
	onChange func(ctx context.Context)
	debounce time.Duration
	ready    chan struct{}
	readyOne sync.Once
	logger   *slog.Logger
}

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New watches dir (not recursively) and calls onChange once events for
// paths accepted by match have been quiet for the debounce interval. A nil
// match accepts every path.
func New(dir string, match func(path string) bool, onChange func(ctx context.Context), opts ...Option) *Watcher {
	w := &Watcher{
		dir:      filepath.Clean(dir),
		match:    match,
		onChange: onChange,
		debounce: defaultDebounce,
		ready:    make(chan struct{}),
		logger:   slog.Default().With("component", "watch"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// File watches a single file. The parent directory is watched so that a
// file replaced by rename is still seen.
func File(path string, onChange func(ctx context.Context), opts ...Option) *Watcher {
	clean := filepath.Clean(path)
	return New(filepath.Dir(clean), func(p string) bool {
		return filepath.Clean(p) == clean
	}, onChange, opts...)
}

// Extension watches the files of dir ending in ext.
func Extension(dir, ext string, onChange func(ctx context.Context), opts ...Option) *Watcher {
	return New(dir, func(p string) bool {
		return strings.HasSuffix(p, ext)
	}, onChange, opts...)
}

// Ready is closed once the directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is cancelled. onChange runs on the Run goroutine,
// so events arriving during a call are coalesced into the next one. Run may
// be called again after it returns; Ready stays closed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.readyOne.Do(func() { close(w.ready) })
	w.logger.Info("watching for changes", "dir", w.dir, "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod || (w.match != nil && !w.match(ev.Name)) {
				continue
			}
			w.logger.Debug("file event", "op", ev.Op.String(), "path", ev.Name)
			timer.Reset(w.debounce)
			pending = true
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "dir", w.dir, "error", err)
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			w.onChange(ctx)
		}
	}
}
