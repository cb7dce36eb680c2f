// Package watch feeds image files dropped into a directory to a handler,
// one at a time.
package watch

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AnyUserName/imgshrink/internal/source"
)

// DefaultDebounce is how long a file must stay quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// Handler processes one settled file.
type Handler func(ctx context.Context, path string) error

// Watcher monitors one directory (not recursive).
type Watcher struct {
	dir      string
	fs       *fsnotify.Watcher
	debounce time.Duration
	log      *log.Logger
}

// New starts watching dir. Call Close when done.
func New(dir string, debounce time.Duration, logger *log.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch folder %s: %w", dir, err)
	}
	return &Watcher{dir: dir, fs: fsw, debounce: debounce, log: logger}, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run delivers settled image files to h until ctx is done or the watcher is
// closed. Handler calls never overlap; an error from h is logged and the
// loop continues.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	pending := make(map[string]time.Time)
	tick := time.NewTicker(w.debounce / 4)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					delete(pending, event.Name)
				}
				continue
			}
			if !source.IsImagePath(event.Name) {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Printf("watcher error: %v", err)

		case now := <-tick.C:
			for _, path := range settled(pending, now, w.debounce) {
				delete(pending, path)
				if err := h(ctx, path); err != nil {
					w.log.Printf("handle %s: %v", path, err)
				}
				if ctx.Err() != nil {
					return nil
				}
			}
		}
	}
}

// settled returns paths quiet for at least d, oldest name first.
func settled(pending map[string]time.Time, now time.Time, d time.Duration) []string {
	var due []string
	for p, t := range pending {
		if now.Sub(t) >= d {
			due = append(due, p)
		}
	}
	sort.Strings(due)
	return due
}
