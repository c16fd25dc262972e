package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/tsunused/pkg/util"
)

// errPoolClosed is returned by acquire once the owning manager is closed.
var errPoolClosed = errors.New("parser pool closed")

// parserPool hands out tree-sitter parsers for one grammar.
//
// Parsers are created lazily up to maxSize. When every parser is checked out
// acquire blocks until one is released, so the pool never holds more parsers
// than there are workers. A parser released after close is freed instead of
// pooled.
type parserPool struct {
	pool    chan *ts.Parser
	langPtr unsafe.Pointer
	key     poolKey
	maxSize int

	// mutex guards created and closed, and is held while sending on pool
	// so that close never races a release.
	mutex   sync.Mutex
	created int
	closed  bool

	logger *slog.Logger
}

func newParserPool(key poolKey, langPtr unsafe.Pointer, maxSize int, logger *slog.Logger) *parserPool {
	return &parserPool{
		pool:    make(chan *ts.Parser, maxSize),
		langPtr: langPtr,
		key:     key,
		maxSize: maxSize,
		logger:  logger,
	}
}

// acquire returns an idle parser, a fresh one, or blocks for a release.
func (p *parserPool) acquire() (*ts.Parser, error) {
	select {
	case parser, ok := <-p.pool:
		if !ok {
			return nil, util.NewError(util.KindParse, "", errPoolClosed)
		}
		return parser, nil
	default:
	}

	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return nil, util.NewError(util.KindParse, "", errPoolClosed)
	}
	if p.created >= p.maxSize {
		p.mutex.Unlock()
		parser, ok := <-p.pool
		if !ok {
			return nil, util.NewError(util.KindParse, "", errPoolClosed)
		}
		return parser, nil
	}

	parser := ts.NewParser()
	if err := parser.SetLanguage(ts.NewLanguage(p.langPtr)); err != nil {
		p.mutex.Unlock()
		parser.Close()
		return nil, fmt.Errorf("set %s grammar: %w", p.key, err)
	}
	p.created++
	created := p.created
	p.mutex.Unlock()

	p.logger.Debug("created parser in pool", "grammar", p.key.String(), "pool_size", created)
	return parser, nil
}

// release returns a parser to the pool for reuse, or frees it when the pool
// is closed or full.
func (p *parserPool) release(parser *ts.Parser) {
	if parser == nil {
		return
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		parser.Close()
		return
	}
	select {
	case p.pool <- parser:
	default:
		parser.Close()
		p.logger.Warn("parser pool full, closing excess parser", "grammar", p.key.String())
	}
}

// close releases all idle parsers. Parsers still checked out are freed by
// their release. Calling close twice is a no-op.
func (p *parserPool) close() int {
	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return 0
	}
	p.closed = true
	close(p.pool)
	p.mutex.Unlock()

	count := 0
	for parser := range p.pool {
		parser.Close()
		count++
	}
	return count
}

func (p *parserPool) createdCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.created
}
