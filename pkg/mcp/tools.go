package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/tsunused/pkg/config"
)

// Tool names.
const (
	ToolDetectUnused = "detect_unused"
	ToolCheckElement = "check_element"
)

var detectionTypeNames = []string{"components", "types", "interfaces", "functions", "variables", "enums", "all"}

func detectUnusedTool() mcp.Tool {
	return mcp.NewTool(ToolDetectUnused,
		mcp.WithDescription("Scan the project for exported TypeScript elements (components, types, interfaces, "+
			"functions, constants, enums) that no other file references. Returns the full detection result: "+
			"unused and used elements with usage evidence, totals and per-type counts."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("strategy",
			mcp.Description("Extraction strategy: ast (exact, default) or pattern (regex heuristics)"),
			mcp.Enum(string(config.StrategyAST), string(config.StrategyPattern)),
		),
		mcp.WithArray("search_dirs",
			mcp.Description("Directories to scan instead of the configured ones"),
			mcp.WithStringItems(),
		),
		mcp.WithArray("types",
			mcp.Description("Element kinds to detect instead of the configured ones"),
			mcp.WithStringEnumItems(detectionTypeNames),
		),
	)
}

func checkElementTool() mcp.Tool {
	return mcp.NewTool(ToolCheckElement,
		mcp.WithDescription("Classify every exported element with the given name as used or unused, "+
			"with the files that use it. Run this before deleting or renaming an export."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Exact, case-sensitive element name, e.g. Button or formatDate"),
		),
	)
}
