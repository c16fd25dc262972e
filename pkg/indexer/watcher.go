package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gnana997/tsunused/pkg/util"
)

// ChangeFunc receives one debounced batch of changed source files, sorted.
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher watches search dirs and reports batches of changed source files.
//
// **Features:**
//   - Debouncing: a burst of events (save, format-on-save, git checkout)
//     becomes one batch once the tree has been quiet for Debounce
//   - Serialized callbacks: a batch never starts while the previous one runs
//   - Cache invalidation: changed paths are dropped from the attached
//     ExtractionCache before the callback sees them
//   - New directories are watched as they appear
//
// **Usage:**
//
//	w, err := NewWatcher(cfg.SearchDirs, DefaultWatchOptions(), cache, rerun, logger)
//	if err != nil {
//	    return err
//	}
//	err = w.Run(ctx) // blocks until ctx is cancelled
type Watcher struct {
	fsw        *fsnotify.Watcher
	dirs       []string
	options    WatchOptions
	extensions map[string]bool
	ignoreDirs map[string]bool
	cache      *ExtractionCache
	onChange   ChangeFunc
	logger     *slog.Logger

	// Debouncing
	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
	ctx     context.Context
	stopped bool

	// Serializes onChange
	runMu sync.Mutex
	// Tracks flushes that passed the stopped check
	inflight sync.WaitGroup

	watched atomic.Int64
	batches atomic.Int64
	running atomic.Bool
}

// NewWatcher creates a watcher over dirs. cache may be nil.
func NewWatcher(dirs []string, options WatchOptions, cache *ExtractionCache, onChange ChangeFunc, logger *slog.Logger) (*Watcher, error) {
	defaults := DefaultWatchOptions()
	if options.Debounce <= 0 {
		options.Debounce = defaults.Debounce
	}
	if len(options.Extensions) == 0 {
		options.Extensions = defaults.Extensions
	}
	if options.IgnoreDirs == nil {
		options.IgnoreDirs = defaults.IgnoreDirs
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		fsw:        fsw,
		dirs:       dirs,
		options:    options,
		extensions: make(map[string]bool, len(options.Extensions)),
		ignoreDirs: make(map[string]bool, len(options.IgnoreDirs)),
		cache:      cache,
		onChange:   onChange,
		logger:     util.LoggerOrDefault(logger),
		pending:    make(map[string]bool),
	}
	for _, ext := range options.Extensions {
		w.extensions[strings.ToLower(ext)] = true
	}
	for _, dir := range options.IgnoreDirs {
		w.ignoreDirs[dir] = true
	}
	return w, nil
}

// Run watches until ctx is cancelled, then waits for a running callback and
// releases the fsnotify handle. Missing search dirs are skipped; a dir that exists but can not be
// watched is an error.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if err := w.addTree(dir); err != nil {
			return err
		}
	}

	w.running.Store(true)
	defer w.running.Store(false)
	w.logger.Info("file watcher started", "dirs", len(w.dirs), "watched", w.watched.Load())

	for {
		select {
		case <-ctx.Done():
			w.stop()
			w.logger.Info("file watcher stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

// addTree watches root and every directory below it.
func (w *Watcher) addTree(root string) error {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		w.logger.Debug("watch dir does not exist, skipping", "dir", root)
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return util.NewError(util.KindIO, path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignoreDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return util.NewError(util.KindIO, path, fmt.Errorf("watch: %w", err))
		}
		w.watched.Add(1)
		return nil
	})
}

// handleEvent processes a file system event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.ignoreDirs[filepath.Base(path)] {
				return
			}
			if err := w.addTree(path); err != nil {
				w.logger.Warn("failed to watch new directory", "dir", path, "error", err)
			}
			return
		}
	}

	if !w.extensions[strings.ToLower(filepath.Ext(path))] {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.logger.Debug("file event", "op", event.Op.String(), "file", path)
	if w.cache != nil {
		w.cache.Invalidate(path)
	}
	w.schedule(path)
}

// schedule adds path to the pending batch and restarts the quiet period.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.pending[path] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.options.Debounce, w.flush)
}

// flush hands the pending batch to onChange.
func (w *Watcher) flush() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.inflight.Add(1)
	defer w.inflight.Done()
	changed := make([]string, 0, len(w.pending))
	for path := range w.pending {
		changed = append(changed, path)
	}
	w.pending = make(map[string]bool)
	w.timer = nil
	ctx := w.ctx
	w.mu.Unlock()

	if len(changed) == 0 || ctx.Err() != nil {
		return
	}
	sort.Strings(changed)

	w.runMu.Lock()
	defer w.runMu.Unlock()

	w.batches.Add(1)
	w.logger.Info("changes detected", "files", len(changed))
	w.onChange(ctx, changed)
}

// stop cancels the pending timer, refuses later flushes and waits for the
// one in progress. Callers release their resources only after onChange has
// returned.
func (w *Watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	w.inflight.Wait()
}

// Stats returns watcher statistics.
func (w *Watcher) Stats() WatcherStats {
	w.mu.Lock()
	pending := len(w.pending)
	w.mu.Unlock()

	return WatcherStats{
		WatchedDirs:    int(w.watched.Load()),
		PendingChanges: pending,
		Batches:        w.batches.Load(),
		IsRunning:      w.running.Load(),
	}
}
