package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/tsunused/pkg/mcplog"
)

// loggingMiddleware times every tool call, logs it at debug level and
// appends it to the call log when one is configured. Call log write
// failures are logged and never change the tool result.
func (s *Server) loggingMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := mcplog.Now()
			result, err := next(ctx, req)
			elapsed := time.Since(start)

			entry := mcplog.Entry{
				Time:          start.UTC(),
				Tool:          req.Params.Name,
				Args:          mcplog.RedactArgs(req.GetArguments()),
				DurationMs:    elapsed.Milliseconds(),
				ResponseBytes: mcplog.ResponseBytes(result),
				ToolError:     result != nil && result.IsError,
			}
			if err != nil {
				entry.Error = err.Error()
			}

			s.logger.Debug("tool call",
				"tool", entry.Tool,
				"ms", entry.DurationMs,
				"bytes", entry.ResponseBytes,
				"tool_error", entry.ToolError)

			if werr := s.calls.Write(entry); werr != nil {
				s.logger.Warn("failed to write call log", "error", werr)
			}

			return result, err
		}
	}
}
