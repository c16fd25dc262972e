// Package mcp serves unused-export detection over the Model Context
// Protocol, so editors and agents can ask which exports are dead.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/tsunused/pkg/config"
	"github.com/gnana997/tsunused/pkg/indexer"
	"github.com/gnana997/tsunused/pkg/mcplog"
	"github.com/gnana997/tsunused/pkg/parser"
	"github.com/gnana997/tsunused/pkg/util"
	"github.com/gnana997/tsunused/pkg/workerpool"
)

// Server exposes the detect_unused and check_element tools.
//
// Every tool call runs a fresh detection from the base configuration plus
// the call's arguments. Calls share one worker pool, one parser manager and
// one extraction cache, so repeated calls over an unchanged tree skip
// parsing.
type Server struct {
	mcpServer *server.MCPServer
	base      *config.Configuration
	version   string

	pool   *workerpool.Pool
	pm     *parser.ParserManager
	cache  *indexer.ExtractionCache
	calls  *mcplog.Logger // nil disables the call log
	logger *slog.Logger
}

// Options configures a Server.
type Options struct {
	// Version is reported to clients.
	Version string
	// CallLog receives one entry per tool call. May be nil.
	CallLog *mcplog.Logger
	// Logger receives diagnostics. Must not write to stdout.
	Logger *slog.Logger
}

// NewServer creates a server for base. base is not modified.
func NewServer(base *config.Configuration, opts Options) *Server {
	logger := util.LoggerOrDefault(opts.Logger)
	pool := workerpool.New(base.Workers, logger)

	s := &Server{
		base:    base.Clone(),
		version: opts.Version,
		pool:    pool,
		pm:      parser.NewParserManager(logger, pool.Size()),
		cache:   indexer.NewExtractionCache(indexer.DefaultExtractionCacheConfig(), logger),
		calls:   opts.CallLog,
		logger:  logger,
	}
	if s.version == "" {
		s.version = "dev"
	}

	s.mcpServer = server.NewMCPServer(
		"tsunused",
		s.version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(s.loggingMiddleware()),
	)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: detectUnusedTool(), Handler: s.handleDetectUnused},
		server.ServerTool{Tool: checkElementTool(), Handler: s.handleCheckElement},
	)

	return s
}

// ServeStdio serves on stdin/stdout until the client disconnects or the
// process is signalled.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// CacheStats exposes the shared extraction cache counters.
func (s *Server) CacheStats() indexer.ExtractionCacheStats {
	return s.cache.Stats()
}

// Close releases the parser manager.
func (s *Server) Close() error {
	return s.pm.Close()
}
