// FileCache gives the detection run read-only access to source files through
// memory-mapped regions.
//
// A run reads most files twice: once as a definition source and once as a
// reference source. The cache maps each file on first access and hands the
// same bytes to both passes, so every file is read from disk at most once.
//
// **Lifecycle:**
//   - Lazy loading: files are mapped on first access
//   - Kept mapped until Close()
//   - Bytes returned by Content are only valid until Close(); callers must
//     copy anything they keep (names, matched substrings) into strings
//
// **Safety Features:**
//   - Optional MaxFiles / MaxMemoryMB limits
//   - Graceful fallback to os.ReadFile if mmap fails
//   - Thread-safe with sync.RWMutex (parallel reads, exclusive loads)
package util

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
)

// FileCache provides shared, read-only file contents for a detection run.
//
// Thread-safe: Multiple goroutines can call methods concurrently.
type FileCache interface {
	// Get returns the mapped file, loading it on first access.
	//
	// Errors are *Error values of kind KindIO.
	Get(filePath string) (*MappedFile, error)

	// Content returns the file's bytes. Empty files yield a nil slice.
	Content(filePath string) ([]byte, error)

	// Size returns number of currently cached files.
	Size() int

	// Stats returns current cache metrics.
	Stats() FileCacheStats

	// Close unmaps all files. Slices obtained from Content become invalid.
	Close() error
}

// FileCacheConfig controls FileCache behavior.
type FileCacheConfig struct {
	// MaxFiles is the maximum number of files to keep cached. 0 means unlimited.
	MaxFiles int

	// MaxMemoryMB caps the mapped address space in MB. 0 means unlimited.
	//
	// This limits VIRTUAL memory, not physical RAM: only pages that the
	// parser or the regex engine touch are faulted in.
	MaxMemoryMB int

	// EnableMetrics determines whether to track cache statistics.
	EnableMetrics bool

	// Logger for warnings. If nil, uses slog.Default().
	Logger *slog.Logger
}

// DefaultFileCacheConfig returns the limits used for a nil config: a
// runaway tree fails loudly instead of mapping without bound.
func DefaultFileCacheConfig() *FileCacheConfig {
	return &FileCacheConfig{
		MaxFiles:      50000,
		MaxMemoryMB:   4096,
		EnableMetrics: true,
	}
}

// UnboundedFileCacheConfig returns config with no limits. A single detection
// run must see every enumerated file, so this is what the detector uses.
func UnboundedFileCacheConfig() *FileCacheConfig {
	return &FileCacheConfig{
		EnableMetrics: true,
	}
}

// MappedFile represents a memory-mapped file.
type MappedFile struct {
	// Path is the path the file was requested with.
	Path string

	// Data is the mapped region. Nil for empty files.
	Data mmap.MMap

	// Size is the file size in bytes.
	Size int64

	// MappedAt is when this file was first mapped.
	MappedAt time.Time

	// mapped is false for fallback entries read with os.ReadFile.
	mapped bool
}

// FileCacheStats tracks cache performance metrics.
type FileCacheStats struct {
	// FilesLoaded is the total number of files loaded (cumulative).
	FilesLoaded int64

	// FilesCached is the current number of cached files.
	FilesCached int

	// CacheHits counts lookups served without touching the disk.
	//
	// In a normal run this is roughly the number of files that are both
	// definition and reference sources.
	CacheHits int64

	// CacheMisses counts failed loads.
	CacheMisses int64

	// MmapFailures counts files served by the os.ReadFile fallback.
	MmapFailures int64

	// TotalMappedMB is the mapped virtual memory (current).
	TotalMappedMB float64
}

// NewFileCache creates a new FileCache with the given config.
//
// If config is nil, uses DefaultFileCacheConfig().
func NewFileCache(config *FileCacheConfig) FileCache {
	if config == nil {
		config = DefaultFileCacheConfig()
	}

	return &fileCacheImpl{
		config: config,
		cache:  make(map[string]*MappedFile),
		logger: LoggerOrDefault(config.Logger),
	}
}

// fileCacheImpl is the internal implementation of FileCache.
//
// mu guards cache. statsMu guards stats so that hit counting never contends
// with loads.
type fileCacheImpl struct {
	config *FileCacheConfig
	logger *slog.Logger

	cache    map[string]*MappedFile
	mappedMB float64
	mu       sync.RWMutex

	stats   FileCacheStats
	statsMu sync.Mutex
}

// Get returns mapped file or loads it on first access.
func (fc *fileCacheImpl) Get(filePath string) (*MappedFile, error) {
	fc.mu.RLock()
	if mf, ok := fc.cache[filePath]; ok {
		fc.mu.RUnlock()
		fc.recordHit()
		return mf, nil
	}
	fc.mu.RUnlock()

	fc.mu.Lock()
	defer fc.mu.Unlock()

	// Another goroutine may have loaded it while we waited for Lock.
	if mf, ok := fc.cache[filePath]; ok {
		fc.recordHit()
		return mf, nil
	}

	mf, err := fc.loadFile(filePath)
	if err != nil {
		fc.recordMiss()
		return nil, err
	}

	fc.cache[filePath] = mf
	fc.mappedMB += float64(mf.Size) / (1024 * 1024)
	fc.recordLoad()

	return mf, nil
}

// Content returns the bytes of filePath.
func (fc *fileCacheImpl) Content(filePath string) ([]byte, error) {
	mf, err := fc.Get(filePath)
	if err != nil {
		return nil, err
	}
	return mf.Data, nil
}

// loadFile opens and maps a file, with fallback to os.ReadFile if mmap fails.
//
// Must be called while holding mu.Lock.
func (fc *fileCacheImpl) loadFile(filePath string) (*MappedFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, NewError(KindIO, filePath, err)
	}
	// The mapping stays valid after the descriptor is closed.
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, NewError(KindIO, filePath, err)
	}

	if err := fc.checkLimits(stat.Size()); err != nil {
		return nil, err
	}

	// Zero bytes can't be mapped.
	if stat.Size() == 0 {
		return &MappedFile{Path: filePath, MappedAt: time.Now()}, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		fc.logger.Warn("mmap failed, using fallback",
			"file", filePath,
			"size", stat.Size(),
			"error", err)

		raw, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, NewError(KindIO, filePath, fmt.Errorf("mmap: %v, read: %w", err, readErr))
		}
		fc.recordMmapFailure()

		return &MappedFile{
			Path:     filePath,
			Data:     mmap.MMap(raw),
			Size:     int64(len(raw)),
			MappedAt: time.Now(),
		}, nil
	}

	return &MappedFile{
		Path:     filePath,
		Data:     data,
		Size:     stat.Size(),
		MappedAt: time.Now(),
		mapped:   true,
	}, nil
}

// checkLimits verifies that adding a file of newFileSize bytes stays within
// the configured limits.
//
// Must be called while holding mu.Lock.
func (fc *fileCacheImpl) checkLimits(newFileSize int64) error {
	if fc.config.MaxFiles > 0 && len(fc.cache) >= fc.config.MaxFiles {
		return NewError(KindIO, "", fmt.Errorf("file cache limit reached: %d files (limit: %d)",
			len(fc.cache), fc.config.MaxFiles))
	}

	if fc.config.MaxMemoryMB > 0 && newFileSize > 0 {
		after := fc.mappedMB + float64(newFileSize)/(1024*1024)
		if after >= float64(fc.config.MaxMemoryMB) {
			return NewError(KindIO, "", fmt.Errorf("file cache memory limit reached: %.2f MB (limit: %d MB)",
				after, fc.config.MaxMemoryMB))
		}
	}

	return nil
}

// Size returns number of currently cached files.
func (fc *fileCacheImpl) Size() int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	return len(fc.cache)
}

// Stats returns current cache metrics.
func (fc *fileCacheImpl) Stats() FileCacheStats {
	fc.mu.RLock()
	cached := len(fc.cache)
	mappedMB := fc.mappedMB
	fc.mu.RUnlock()

	fc.statsMu.Lock()
	defer fc.statsMu.Unlock()

	stats := fc.stats
	stats.FilesCached = cached
	stats.TotalMappedMB = mappedMB
	return stats
}

// Close unmaps all files and releases resources.
func (fc *fileCacheImpl) Close() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	var errs []error
	for path, mf := range fc.cache {
		if mf.mapped && mf.Data != nil {
			if err := mf.Data.Unmap(); err != nil {
				fc.logger.Warn("failed to unmap file", "path", path, "error", err)
				errs = append(errs, fmt.Errorf("unmap %q: %w", path, err))
			}
		}
	}

	fc.cache = make(map[string]*MappedFile)
	fc.mappedMB = 0

	fc.statsMu.Lock()
	fc.logger.Debug("file cache closed",
		"files_loaded", fc.stats.FilesLoaded,
		"cache_hits", fc.stats.CacheHits,
		"cache_misses", fc.stats.CacheMisses,
		"mmap_failures", fc.stats.MmapFailures)
	fc.statsMu.Unlock()

	return errors.Join(errs...)
}

func (fc *fileCacheImpl) recordHit() {
	if !fc.config.EnableMetrics {
		return
	}
	fc.statsMu.Lock()
	fc.stats.CacheHits++
	fc.statsMu.Unlock()
}

func (fc *fileCacheImpl) recordMiss() {
	if !fc.config.EnableMetrics {
		return
	}
	fc.statsMu.Lock()
	fc.stats.CacheMisses++
	fc.statsMu.Unlock()
}

func (fc *fileCacheImpl) recordLoad() {
	if !fc.config.EnableMetrics {
		return
	}
	fc.statsMu.Lock()
	fc.stats.FilesLoaded++
	fc.statsMu.Unlock()
}

func (fc *fileCacheImpl) recordMmapFailure() {
	if !fc.config.EnableMetrics {
		return
	}
	fc.statsMu.Lock()
	fc.stats.MmapFailures++
	fc.statsMu.Unlock()
}
