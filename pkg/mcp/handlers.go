package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/tsunused/pkg/config"
	"github.com/gnana997/tsunused/pkg/detector"
)

// elementCheck is the check_element response.
type elementCheck struct {
	Name   string                 `json:"name"`
	Found  bool                   `json:"found"`
	Used   []detector.ElementInfo `json:"used"`
	Unused []detector.ElementInfo `json:"unused"`
}

// handleDetectUnused runs a detection with the call's overrides.
//
// Invalid arguments and failed runs are tool errors (IsError results), not
// protocol errors: the client sees the message and may retry.
func (s *Server) handleDetectUnused(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	overrides := config.Overrides{
		SearchDirs: req.GetStringSlice("search_dirs", nil),
		Strategy:   config.Strategy(strings.ToLower(req.GetString("strategy", ""))),
	}
	if names := req.GetStringSlice("types", nil); len(names) > 0 {
		types, err := config.ParseDetectionTypes(names)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		overrides.DetectionTypes = &types
	}

	result, err := s.detect(ctx, config.Merge(s.base, overrides))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultJSON(result)
}

// handleCheckElement classifies every element called name.
func (s *Server) handleCheckElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil || strings.TrimSpace(name) == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	result, err := s.detect(ctx, s.base)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	used, unused := result.Find(name)
	check := elementCheck{
		Name:   name,
		Found:  len(used)+len(unused) > 0,
		Used:   used,
		Unused: unused,
	}
	if check.Used == nil {
		check.Used = []detector.ElementInfo{}
	}
	if check.Unused == nil {
		check.Unused = []detector.ElementInfo{}
	}
	return mcp.NewToolResultJSON(check)
}

// detect runs one detection on the shared pool, parsers and cache.
func (s *Server) detect(ctx context.Context, cfg *config.Configuration) (*detector.DetectionResult, error) {
	d, err := detector.New(cfg,
		detector.WithLogger(s.logger),
		detector.WithPool(s.pool),
		detector.WithParserManager(s.pm),
		detector.WithCache(s.cache),
	)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	return d.Detect(ctx)
}
