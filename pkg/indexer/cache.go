package indexer

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gnana997/tsunused/pkg/extractor"
	"github.com/gnana997/tsunused/pkg/util"
)

// ExtractionCache remembers per-file extraction results across detection
// runs.
//
// Entries are keyed by path, pass (definitions or references) and a variant
// string naming everything else the result depends on (strategy, detection
// types, parse fallback). An entry is only served while the file's stamp is
// unchanged, so a stale entry is never returned even without a Watcher.
//
// **Thread Safety:** Safe for concurrent use; the underlying LRU is locked.
//
// Usage:
//
//	cache := NewExtractionCache(DefaultExtractionCacheConfig(), logger)
//	stamp, _ := StatFile(path)
//	if defs, ok := cache.Definitions(path, variant, stamp); ok {
//	    return defs
//	}
//	defs := extract(path)
//	cache.StoreDefinitions(path, variant, stamp, defs)
type ExtractionCache struct {
	entries *lru.Cache[cacheKey, *cacheEntry]

	hits          atomic.Int64
	misses        atomic.Int64
	stale         atomic.Int64
	evictions     atomic.Int64
	invalidations atomic.Int64

	logger *slog.Logger
}

// NewExtractionCache creates a cache. A zero MaxEntries uses the default.
func NewExtractionCache(config ExtractionCacheConfig, logger *slog.Logger) *ExtractionCache {
	logger = util.LoggerOrDefault(logger)
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultExtractionCacheConfig().MaxEntries
	}

	ec := &ExtractionCache{logger: logger}

	entries, err := lru.NewWithEvict(config.MaxEntries, func(key cacheKey, _ *cacheEntry) {
		if config.Debug {
			logger.Debug("LRU evicting extraction", "path", key.path, "references", key.references)
		}
	})
	if err != nil {
		// only possible for a non-positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	ec.entries = entries

	logger.Debug("extraction cache initialized", "max_entries", config.MaxEntries)
	return ec
}

// Definitions returns the cached definitions of path when its stamp still
// matches.
func (ec *ExtractionCache) Definitions(path, variant string, stamp Stamp) ([]extractor.ElementDefinition, bool) {
	e, ok := ec.lookup(cacheKey{path: path, variant: variant}, stamp)
	if !ok {
		return nil, false
	}
	return e.definitions, true
}

// StoreDefinitions caches defs for path at stamp.
func (ec *ExtractionCache) StoreDefinitions(path, variant string, stamp Stamp, defs []extractor.ElementDefinition) {
	ec.add(cacheKey{path: path, variant: variant}, &cacheEntry{stamp: stamp, definitions: defs})
}

// References returns the cached references of path when its stamp still
// matches.
func (ec *ExtractionCache) References(path, variant string, stamp Stamp) ([]extractor.ElementReference, bool) {
	e, ok := ec.lookup(cacheKey{path: path, variant: variant, references: true}, stamp)
	if !ok {
		return nil, false
	}
	return e.references, true
}

// StoreReferences caches refs for path at stamp.
//
// Only extracted references belong here; raw source kept by the pattern
// strategy points into memory that is released after each run.
func (ec *ExtractionCache) StoreReferences(path, variant string, stamp Stamp, refs []extractor.ElementReference) {
	ec.add(cacheKey{path: path, variant: variant, references: true}, &cacheEntry{stamp: stamp, references: refs})
}

func (ec *ExtractionCache) add(key cacheKey, e *cacheEntry) {
	if ec.entries.Add(key, e) {
		ec.evictions.Add(1)
	}
}

func (ec *ExtractionCache) lookup(key cacheKey, stamp Stamp) (*cacheEntry, bool) {
	e, ok := ec.entries.Get(key)
	if !ok {
		ec.misses.Add(1)
		return nil, false
	}
	if !e.stamp.ModTime.Equal(stamp.ModTime) || e.stamp.Size != stamp.Size {
		ec.entries.Remove(key)
		ec.misses.Add(1)
		ec.stale.Add(1)
		return nil, false
	}
	ec.hits.Add(1)
	return e, true
}

// Invalidate drops every entry of path, in all variants. It returns the
// number of entries removed.
func (ec *ExtractionCache) Invalidate(path string) int {
	removed := 0
	for _, key := range ec.entries.Keys() {
		if key.path == path && ec.entries.Remove(key) {
			removed++
		}
	}
	ec.invalidations.Add(int64(removed))
	return removed
}

// Len returns the number of cached entries.
func (ec *ExtractionCache) Len() int {
	return ec.entries.Len()
}

// Stats returns cache statistics.
func (ec *ExtractionCache) Stats() ExtractionCacheStats {
	return ExtractionCacheStats{
		Entries:       ec.entries.Len(),
		Hits:          ec.hits.Load(),
		Misses:        ec.misses.Load(),
		Stale:         ec.stale.Load(),
		Evictions:     ec.evictions.Load(),
		Invalidations: ec.invalidations.Load(),
	}
}

// Purge drops every entry.
func (ec *ExtractionCache) Purge() {
	ec.entries.Purge()
}
