// Package mcplog records MCP tool calls as JSON lines.
package mcplog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/tsunused/pkg/util"
)

// Entry is one JSONL line, written per tool call.
type Entry struct {
	Time          time.Time      `json:"time"`
	Tool          string         `json:"tool"`
	Args          map[string]any `json:"args"`
	DurationMs    int64          `json:"duration_ms"`
	ResponseBytes int            `json:"response_bytes"`
	// ToolError is set when the tool answered with an error result, e.g. a
	// detection run that failed on a syntax error.
	ToolError bool `json:"tool_error"`
	// Error is a protocol level failure of the handler itself.
	Error string `json:"error,omitempty"`
}

// Logger appends entries to a file. It is safe for concurrent use, and a
// nil *Logger discards everything.
type Logger struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewLogger opens path for appending, creating parent directories.
// An empty path returns a nil Logger and no error.
func NewLogger(path string) (*Logger, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, util.NewError(util.KindIO, path, fmt.Errorf("create log directory: %w", err))
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, util.NewError(util.KindIO, path, fmt.Errorf("open call log: %w", err))
	}
	return &Logger{f: f, enc: json.NewEncoder(f)}, nil
}

// Write appends one entry.
func (l *Logger) Write(e Entry) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(e)
}

// Close closes the file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// Limits applied by RedactArgs.
const (
	maxStringArg = 128
	maxListArg   = 20
)

// RedactArgs returns a copy of args fit for the log. Long strings become a
// "<key>_len" entry and long lists a "<key>_count" entry, so a call that
// passes hundreds of search dirs logs a number instead.
func RedactArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		switch val := v.(type) {
		case string:
			if len(val) > maxStringArg {
				out[k+"_len"] = len(val)
				continue
			}
		case []any:
			if len(val) > maxListArg {
				out[k+"_count"] = len(val)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// ResponseBytes returns the encoded size of result's content, or 0.
func ResponseBytes(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	b, err := json.Marshal(result.Content)
	if err != nil {
		return 0
	}
	return len(b)
}

// Now is the clock used for entry timestamps. Tests replace it.
var Now = time.Now
