package util

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestFiles creates temporary source files for testing.
func setupTestFiles(t *testing.T) map[string]string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"widget.tsx": "export const Widget = () => <div/>;\n",
		"helper.ts":  "export function helper() {}\n",
		"empty.ts":   "",
		"large.ts":   strings.Repeat("export const A_1 = 1;\n", 2000),
	}

	paths := make(map[string]string, len(files))
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		paths[name] = p
	}
	return paths
}

func TestFileCache_Content(t *testing.T) {
	files := setupTestFiles(t)

	cache := NewFileCache(UnboundedFileCacheConfig())
	defer cache.Close()

	data, err := cache.Content(files["widget.tsx"])
	require.NoError(t, err)
	assert.Equal(t, "export const Widget = () => <div/>;\n", string(data))
	assert.Equal(t, 1, cache.Size())
}

func TestFileCache_SecondReadIsHit(t *testing.T) {
	files := setupTestFiles(t)

	cache := NewFileCache(UnboundedFileCacheConfig())
	defer cache.Close()

	first, err := cache.Get(files["helper.ts"])
	require.NoError(t, err)
	second, err := cache.Get(files["helper.ts"])
	require.NoError(t, err)

	assert.Same(t, first, second)
	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.FilesLoaded)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, 1, stats.FilesCached)
}

func TestFileCache_EmptyFile(t *testing.T) {
	files := setupTestFiles(t)

	cache := NewFileCache(UnboundedFileCacheConfig())
	defer cache.Close()

	data, err := cache.Content(files["empty.ts"])
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestFileCache_MissingFileIsIOError(t *testing.T) {
	cache := NewFileCache(UnboundedFileCacheConfig())
	defer cache.Close()

	_, err := cache.Content(filepath.Join(t.TempDir(), "nope.ts"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO))
	assert.Equal(t, int64(1), cache.Stats().CacheMisses)
}

func TestFileCache_MaxFilesLimit(t *testing.T) {
	files := setupTestFiles(t)

	cache := NewFileCache(&FileCacheConfig{MaxFiles: 1, EnableMetrics: true})
	defer cache.Close()

	_, err := cache.Get(files["widget.tsx"])
	require.NoError(t, err)

	_, err = cache.Get(files["helper.ts"])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit reached")

	// Already cached files are still served.
	_, err = cache.Get(files["widget.tsx"])
	assert.NoError(t, err)
}

func TestFileCache_ConcurrentAccess(t *testing.T) {
	files := setupTestFiles(t)

	cache := NewFileCache(UnboundedFileCacheConfig())
	defer cache.Close()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := cache.Content(files["large.ts"])
			assert.NoError(t, err)
			assert.Len(t, data, len("export const A_1 = 1;\n")*2000)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), cache.Stats().FilesLoaded)
}

func TestFileCache_CloseResets(t *testing.T) {
	files := setupTestFiles(t)

	cache := NewFileCache(UnboundedFileCacheConfig())
	_, err := cache.Get(files["large.ts"])
	require.NoError(t, err)
	assert.Greater(t, cache.Stats().TotalMappedMB, 0.0)

	require.NoError(t, cache.Close())
	assert.Equal(t, 0, cache.Size())
	assert.Equal(t, 0.0, cache.Stats().TotalMappedMB)
}

func TestFileCache_NilConfigUsesDefaults(t *testing.T) {
	files := setupTestFiles(t)

	cache := NewFileCache(nil)
	defer cache.Close()

	impl := cache.(*fileCacheImpl)
	assert.Equal(t, DefaultFileCacheConfig().MaxFiles, impl.config.MaxFiles)

	_, err := cache.Content(files["large.ts"])
	require.NoError(t, err)
	assert.Equal(t, int64(1), cache.Stats().FilesLoaded)
}
