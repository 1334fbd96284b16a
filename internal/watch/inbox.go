// Package watch converts series directories as they arrive in an inbox directory.
//
// Every direct child directory of the inbox is one series. A series is handed to the
// Handler once no file inside it has changed for the settle interval, and only once per
// lifetime of the directory: removing and re-creating it queues it again.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler converts one settled series directory.
type Handler func(ctx context.Context, seriesDir string) error

// Options configures an Inbox.
type Options struct {
	Logger *slog.Logger
	// Settle is the quiet period required before a series is handled. Default 5s.
	Settle time.Duration
}

// Inbox watches a directory tree with fsnotify.
type Inbox struct {
	root   string
	settle time.Duration
	handle Handler
	log    *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
	handled map[string]bool
}

// New returns an Inbox for root. Nothing is watched until Run.
func New(root string, handle Handler, opts Options) (*Inbox, error) {
	if handle == nil {
		return nil, errors.New("watch: nil handler")
	}
	if opts.Settle <= 0 {
		opts.Settle = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	return &Inbox{
		root:    abs,
		settle:  opts.Settle,
		handle:  handle,
		log:     opts.Logger.With("inbox", abs),
		pending: make(map[string]time.Time),
		handled: make(map[string]bool),
	}, nil
}

// Run watches until ctx is done. Series already present in the inbox are queued at
// start. Handler errors are logged and do not stop the watcher.
func (w *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return fmt.Errorf("watch: create inbox: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.root); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := w.queueExisting(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	tick := max(w.settle/4, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	w.log.Info("watching inbox", "settle", w.settle)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("inbox watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", "error", err)

		case now := <-ticker.C:
			w.flushSettled(ctx, now)
		}
	}
}

// seriesOf returns the inbox child that contains path, or "" for the root itself,
// hidden entries and plain files directly inside the root.
func (w *Inbox) seriesOf(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	first, _, nested := strings.Cut(rel, string(filepath.Separator))
	if strings.HasPrefix(first, ".") {
		return ""
	}
	if !nested {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return ""
		}
	}
	return filepath.Join(w.root, first)
}

func (w *Inbox) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	series := w.seriesOf(event.Name)
	if series == "" {
		return
	}

	if event.Name == series && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
		w.mu.Lock()
		delete(w.pending, series)
		delete(w.handled, series)
		w.mu.Unlock()
		w.log.Debug("series removed", "series", series)
		return
	}

	if _, err := os.Stat(series); err != nil {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(fsw, event.Name); err != nil {
				w.log.Warn("failed to watch directory", "path", event.Name, "error", err)
			}
		}
	}
	w.touch(series, time.Now())
}

// touch records activity on series unless it was already handled.
func (w *Inbox) touch(series string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.handled[series] {
		return
	}
	w.pending[series] = at
}

func (w *Inbox) flushSettled(ctx context.Context, now time.Time) {
	w.mu.Lock()
	var ready []string
	for series, last := range w.pending {
		if now.Sub(last) >= w.settle {
			ready = append(ready, series)
			delete(w.pending, series)
			w.handled[series] = true
		}
	}
	w.mu.Unlock()

	for _, series := range ready {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		if err := w.handle(ctx, series); err != nil {
			w.log.Error("series conversion failed", "series", series, "error", err)
			continue
		}
		w.log.Info("series converted", "series", series, "duration", time.Since(start))
	}
}

func (w *Inbox) queueExisting() error {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			w.touch(filepath.Join(w.root, e.Name()), now)
		}
	}
	return nil
}

func (w *Inbox) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return err
		}
		w.log.Debug("watching directory", "path", path)
		return nil
	})
}
