package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/gnana997/tsunused/pkg/util"
)

// poolKey uniquely identifies a parser pool (language + TSX variant)
type poolKey struct {
	lang  Language
	isTSX bool
}

func (k poolKey) String() string {
	if k.isTSX {
		return "tsx"
	}
	return k.lang.String()
}

// ParserManager manages tree-sitter parsers for TypeScript, TSX and
// JavaScript with lazy initialization and thread-safe concurrent access.
//
// Memory Management:
//   - Parser pools are created lazily on first use per grammar
//   - ParserManager owns parser pool instances and must be closed via Close()
//   - Callers own Tree instances and must call tree.Close() after use
//
// Thread Safety:
//   - Each grammar has its own pool of up to poolSize parsers
//   - poolSize should equal the worker pool width so that no worker waits
//     for a parser while another sits idle
//
// Example:
//
//	manager := NewParserManager(logger, 8)
//	defer manager.Close()
//
//	tree, err := manager.ParseFile(src, "src/Widget.tsx")
//	if err != nil {
//	    return err
//	}
//	defer tree.Close()
type ParserManager struct {
	pools    map[poolKey]*parserPool
	poolSize int
	mutex    sync.RWMutex
	closed   bool
	logger   *slog.Logger

	stats struct {
		parsesCalled int
	}
}

// NewParserManager creates a new ParserManager instance. poolSize <= 0 uses
// util.GetOptimalPoolSize().
//
// The returned manager must be closed via Close() to free resources.
func NewParserManager(logger *slog.Logger, poolSize int) *ParserManager {
	return &ParserManager{
		pools:    make(map[poolKey]*parserPool),
		poolSize: util.GetOptimalPoolSizeWithOverride(poolSize),
		logger:   util.LoggerOrDefault(logger),
	}
}

// Parse parses source using the given grammar. isTSX selects the TSX variant
// of the TypeScript grammar and is ignored for JavaScript.
//
// The returned tree may contain ERROR or MISSING nodes; use SyntaxError to
// decide whether to accept it. The tree MUST be closed by the caller.
func (pm *ParserManager) Parse(source []byte, lang Language, isTSX bool) (*ts.Tree, error) {
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("cannot parse unknown language")
	}

	pm.mutex.Lock()
	pm.stats.parsesCalled++
	pm.mutex.Unlock()

	pool, err := pm.getOrCreatePool(lang, isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool for %s: %w", lang, err)
	}

	parser, err := pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire parser: %w", err)
	}
	tree := parser.Parse(source, nil)
	pool.release(parser)

	if tree == nil {
		return nil, fmt.Errorf("parser returned nil tree")
	}
	return tree, nil
}

// ParseFile parses source, picking the grammar from the file path.
//
// Returns a Tree that MUST be closed by the caller via tree.Close().
func (pm *ParserManager) ParseFile(source []byte, filePath string) (*ts.Tree, error) {
	lang := DetectLanguage(filePath)
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("unsupported file extension: %s", filePath)
	}
	return pm.Parse(source, lang, IsTSXFile(filePath))
}

// SyntaxError returns the position of the first ERROR or MISSING node under
// root, or false when the tree parsed cleanly.
func SyntaxError(root *ts.Node) (ts.Point, bool) {
	if root == nil || !root.HasError() {
		return ts.Point{}, false
	}
	var found *ts.Node
	var walk func(n *ts.Node)
	walk = func(n *ts.Node) {
		if found != nil {
			return
		}
		if n.IsError() || n.IsMissing() {
			found = n
			return
		}
		if !n.HasError() {
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			if child := n.Child(i); child != nil {
				walk(child)
			}
		}
	}
	walk(root)
	if found == nil {
		return root.StartPosition(), true
	}
	return found.StartPosition(), true
}

// Close releases all parser pool resources.
//
// MUST be called when ParserManager is no longer needed to avoid memory leaks.
// A Parse running concurrently with Close finishes normally and frees its
// parser; later calls fail with a KindParse error.
func (pm *ParserManager) Close() error {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.closed = true
	closed := 0
	for _, pool := range pm.pools {
		closed += pool.close()
	}
	pm.pools = make(map[poolKey]*parserPool)

	pm.logger.Debug("closed parser manager",
		"parsers_closed", closed,
		"parses_called", pm.stats.parsesCalled)

	return nil
}

// getOrCreatePool returns an existing parser pool or creates a new one.
// Thread-safe using double-checked locking pattern.
func (pm *ParserManager) getOrCreatePool(lang Language, isTSX bool) (*parserPool, error) {
	key := poolKey{lang: lang, isTSX: isTSX && lang == LanguageTypeScript}

	pm.mutex.RLock()
	pool, exists := pm.pools[key]
	pm.mutex.RUnlock()
	if exists {
		return pool, nil
	}

	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pm.closed {
		return nil, util.NewError(util.KindParse, "", errPoolClosed)
	}
	if pool, exists = pm.pools[key]; exists {
		return pool, nil
	}

	langPtr, err := languagePointer(key)
	if err != nil {
		return nil, err
	}

	pool = newParserPool(key, langPtr, pm.poolSize, pm.logger)
	pm.pools[key] = pool

	pm.logger.Debug("created new parser pool", "grammar", key.String(), "maxSize", pm.poolSize)
	return pool, nil
}

// languagePointer returns the tree-sitter grammar for key.
func languagePointer(key poolKey) (unsafe.Pointer, error) {
	switch key.lang {
	case LanguageTypeScript:
		if key.isTSX {
			return ts_typescript.LanguageTSX(), nil
		}
		return ts_typescript.LanguageTypescript(), nil
	case LanguageJavaScript:
		return ts_javascript.Language(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", key.lang)
	}
}

// GetStats returns parser usage statistics.
func (pm *ParserManager) GetStats() ParserStats {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	total := 0
	for _, pool := range pm.pools {
		total += pool.createdCount()
	}
	return ParserStats{
		ParsersCreated: total,
		ParsesCalled:   pm.stats.parsesCalled,
		PoolSize:       pm.poolSize,
	}
}

// ParserStats contains parser usage statistics.
type ParserStats struct {
	// ParsersCreated is the total number of parser instances created
	ParsersCreated int

	// ParsesCalled is the total number of Parse() calls
	ParsesCalled int

	// PoolSize is the per-grammar parser limit
	PoolSize int
}
