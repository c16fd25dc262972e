// Package indexer keeps per-file extraction results alive between detection
// runs and watches the search dirs for changes.
//
// A one-shot scan does not need it. Long-lived processes (tsunused watch,
// tsunused serve) re-run detection many times over a mostly unchanged tree:
// the ExtractionCache lets those runs skip reading and parsing files whose
// size and modification time are unchanged, and the Watcher tells them when
// to run again.
package indexer

import (
	"os"
	"time"

	"github.com/gnana997/tsunused/pkg/extractor"
	"github.com/gnana997/tsunused/pkg/util"
)

// Stamp identifies one version of a file on disk.
type Stamp struct {
	ModTime time.Time
	Size    int64
}

// StatFile returns the current stamp of path. Errors are KindIO.
//
// Callers take the stamp BEFORE reading the file, so a write that lands
// between the read and the cache store leaves an entry that no longer
// matches and is re-extracted on the next run.
func StatFile(path string) (Stamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Stamp{}, util.NewError(util.KindIO, path, err)
	}
	return Stamp{ModTime: info.ModTime(), Size: info.Size()}, nil
}

// cacheKey addresses one pass over one file under one extraction variant.
type cacheKey struct {
	path       string
	variant    string
	references bool
}

// cacheEntry is the unit of caching in the ExtractionCache.
type cacheEntry struct {
	stamp       Stamp
	definitions []extractor.ElementDefinition
	references  []extractor.ElementReference
}

// ExtractionCacheConfig configures the extraction cache.
type ExtractionCacheConfig struct {
	// MaxEntries is the maximum number of (file, pass) entries kept.
	// When the cache is full, least recently used entries are evicted.
	// Default: 20000
	MaxEntries int

	// Debug enables per-eviction logging
	Debug bool
}

// DefaultExtractionCacheConfig returns the default configuration.
func DefaultExtractionCacheConfig() ExtractionCacheConfig {
	return ExtractionCacheConfig{
		MaxEntries: 20000,
	}
}

// ExtractionCacheStats provides statistics about the cache state.
type ExtractionCacheStats struct {
	// Entries is the number of entries currently cached
	Entries int

	// Hits counts lookups answered from the cache
	Hits int64

	// Misses counts lookups that found nothing or a stale entry
	Misses int64

	// Stale counts misses caused by a changed stamp
	Stale int64

	// Evictions counts LRU evictions
	Evictions int64

	// Invalidations counts entries dropped through Invalidate
	Invalidations int64
}

// WatchOptions configures the Watcher.
type WatchOptions struct {
	// Debounce is the quiet period after the last event before the
	// change callback fires. Default: 300ms
	Debounce time.Duration

	// Extensions selects the files whose changes matter, e.g. ".ts".
	Extensions []string

	// IgnoreDirs are directory base names never watched.
	IgnoreDirs []string
}

// DefaultWatchOptions returns options for the default extension set.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Debounce:   300 * time.Millisecond,
		Extensions: []string{".ts", ".tsx"},
		IgnoreDirs: []string{"node_modules", ".git", "dist", "build", ".next", ".turbo", "coverage"},
	}
}

// WatcherStats contains watcher statistics.
type WatcherStats struct {
	WatchedDirs    int
	PendingChanges int
	Batches        int64
	IsRunning      bool
}
