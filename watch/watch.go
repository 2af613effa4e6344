// CLAUDE:SUMMARY Debounced recursive filesystem watcher for the document root, driving automatic refresh publication.
// Package watch observes the document root for markdown changes and reports
// them in debounced batches. It standardises the reactive pattern so the
// server gets consistent debounce windows and observability for free.
//
// Typical usage:
//
//	w, err := watch.New(docRoot, watch.Options{Debounce: 500 * time.Millisecond})
//	go w.Run(ctx, func(changed []string) { hub.Notify("file changed", nav) })
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Options tunes the watcher behaviour.
type Options struct {
	// Debounce is the quiet period events are batched over before the
	// callback fires. Default: 500ms.
	Debounce time.Duration
	// Extensions lists file extensions to report. Default: .md, .markdown.
	Extensions []string
	// Excludes lists directory names to skip. Hidden directories are
	// always skipped. Default: node_modules, vendor.
	Excludes []string
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Debounce <= 0 {
		o.Debounce = 500 * time.Millisecond
	}
	if len(o.Extensions) == 0 {
		o.Extensions = []string{".md", ".markdown"}
	}
	if len(o.Excludes) == 0 {
		o.Excludes = []string{"node_modules", "vendor"}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Stats are point-in-time counters.
type Stats struct {
	Events  int64 `json:"events"`
	Flushes int64 `json:"flushes"`
	Errors  int64 `json:"errors"`
}

// Watcher reports batched document changes under one root directory.
type Watcher struct {
	root       string
	opts       Options
	fsw        *fsnotify.Watcher
	extensions map[string]bool
	excludes   map[string]bool

	events  atomic.Int64
	flushes atomic.Int64
	errors  atomic.Int64
}

// New creates a Watcher over root and registers watches on every directory
// beneath it. Call Run to start delivering changes.
func New(root string, opts Options) (*Watcher, error) {
	opts.defaults()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:       filepath.Clean(root),
		opts:       opts,
		fsw:        fsw,
		extensions: make(map[string]bool, len(opts.Extensions)),
		excludes:   make(map[string]bool, len(opts.Excludes)),
	}
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		w.extensions[strings.ToLower(ext)] = true
	}
	for _, dir := range opts.Excludes {
		w.excludes[dir] = true
	}

	if err := w.addWatchesRecursive(w.root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Events:  w.events.Load(),
		Flushes: w.flushes.Load(),
		Errors:  w.errors.Load(),
	}
}

// Run blocks until ctx is cancelled, calling onChange with the sorted,
// root-relative paths accumulated over each debounce window. The callback
// runs on the watcher goroutine; keep it short.
func (w *Watcher) Run(ctx context.Context, onChange func(changed []string)) error {
	defer w.fsw.Close()

	w.opts.Logger.Info("document watcher started",
		"root", w.root, "debounce", w.opts.Debounce)

	ticker := time.NewTicker(w.opts.Debounce)
	defer ticker.Stop()

	pending := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, pending)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.errors.Add(1)
			w.opts.Logger.Error("watch error", "error", err)

		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			sort.Strings(changed)
			w.flushes.Add(1)
			w.opts.Logger.Debug("flushing changes", "count", len(changed))
			onChange(changed)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, pending map[string]struct{}) {
	path := event.Name

	ext := strings.ToLower(filepath.Ext(path))
	if !w.extensions[ext] {
		// New directories need a watch of their own.
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				w.watchNewDirectory(path)
			}
		}
		return
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if w.excludes[part] || strings.HasPrefix(part, ".") {
			return
		}
	}

	pending[rel] = struct{}{}
	w.events.Add(1)
	w.opts.Logger.Debug("document change detected", "path", rel, "op", event.Op.String())
}

func (w *Watcher) watchNewDirectory(path string) {
	base := filepath.Base(path)
	if w.excludes[base] || strings.HasPrefix(base, ".") {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.opts.Logger.Warn("failed to watch new directory", "path", path, "error", err)
	}
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != root && (w.excludes[base] || strings.HasPrefix(base, ".")) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.opts.Logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}
