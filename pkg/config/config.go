// Package config resolves the Configuration a detection run works from:
// built-in defaults, the JSON config file, TSUNUSED_* environment overrides
// and CLI overrides, in that order.
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gnana997/tsunused/pkg/discovery"
	"github.com/gnana997/tsunused/pkg/util"
)

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "tuc.config.json"

// Strategy selects the extraction implementation.
type Strategy string

const (
	// StrategyAST parses every file with tree-sitter.
	StrategyAST Strategy = "ast"
	// StrategyPattern matches declaration and usage shapes with regexes.
	StrategyPattern Strategy = "pattern"
)

// DetectionTypes gates which element kinds are scanned.
type DetectionTypes struct {
	Components bool `json:"components" mapstructure:"components" yaml:"components"`
	Types      bool `json:"types" mapstructure:"types" yaml:"types"`
	Interfaces bool `json:"interfaces" mapstructure:"interfaces" yaml:"interfaces"`
	Functions  bool `json:"functions" mapstructure:"functions" yaml:"functions"`
	Variables  bool `json:"variables" mapstructure:"variables" yaml:"variables"`
	Enums      bool `json:"enums" mapstructure:"enums" yaml:"enums"`
}

// AllDetectionTypes enables every kind.
func AllDetectionTypes() DetectionTypes {
	return DetectionTypes{
		Components: true,
		Types:      true,
		Interfaces: true,
		Functions:  true,
		Variables:  true,
		Enums:      true,
	}
}

// Any reports whether at least one kind is enabled.
func (d DetectionTypes) Any() bool {
	return d.Components || d.Types || d.Interfaces || d.Functions || d.Variables || d.Enums
}

// String lists the enabled kinds, e.g. "components,functions".
func (d DetectionTypes) String() string {
	var parts []string
	for _, f := range []struct {
		on   bool
		name string
	}{
		{d.Components, "components"},
		{d.Types, "types"},
		{d.Interfaces, "interfaces"},
		{d.Functions, "functions"},
		{d.Variables, "variables"},
		{d.Enums, "enums"},
	} {
		if f.on {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseDetectionTypes enables the kinds named in names. Names are the
// detection_types keys ("components", "enums", ...) or "all"; singular
// forms are accepted. Unknown names are a KindConfig error.
func ParseDetectionTypes(names []string) (DetectionTypes, error) {
	var d DetectionTypes
	for _, raw := range names {
		name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "s")
		switch name {
		case "all":
			d = AllDetectionTypes()
		case "component":
			d.Components = true
		case "type":
			d.Types = true
		case "interface":
			d.Interfaces = true
		case "function":
			d.Functions = true
		case "variable":
			d.Variables = true
		case "enum":
			d.Enums = true
		default:
			return DetectionTypes{}, util.Errorf(util.KindConfig, "", "unknown detection type %q", raw)
		}
	}
	return d, nil
}

// CIConfig is the threshold policy applied after a run.
type CIConfig struct {
	MaxUnusedElements int    `json:"max_unused_elements" mapstructure:"max_unused_elements" yaml:"max_unused_elements"`
	FailOnExceed      bool   `json:"fail_on_exceed" mapstructure:"fail_on_exceed" yaml:"fail_on_exceed"`
	LogLevel          string `json:"log_level" mapstructure:"log_level" yaml:"log_level"`
}

// DefaultCIConfig is the policy in force when no config file exists.
func DefaultCIConfig() *CIConfig {
	return &CIConfig{
		MaxUnusedElements: 5,
		FailOnExceed:      true,
		LogLevel:          string(util.LevelWarn),
	}
}

// Exceeded reports whether unused breaks the policy.
func (c *CIConfig) Exceeded(unused int) bool {
	return c != nil && c.FailOnExceed && unused > c.MaxUnusedElements
}

// Configuration is the resolved input of a detection run.
type Configuration struct {
	SearchDirs       []string       `json:"search_dirs" mapstructure:"search_dirs" yaml:"search_dirs"`
	ExcludePatterns  []string       `json:"exclude_patterns" mapstructure:"exclude_patterns" yaml:"exclude_patterns"`
	DetectionTypes   DetectionTypes `json:"detection_types" mapstructure:"detection_types" yaml:"detection_types"`
	CI               *CIConfig      `json:"ci,omitempty" mapstructure:"-" yaml:"ci,omitempty"`
	Extensions       []string       `json:"extensions" mapstructure:"extensions" yaml:"extensions"`
	Strategy         Strategy       `json:"strategy" mapstructure:"strategy" yaml:"strategy"`
	Workers          int            `json:"workers" mapstructure:"workers" yaml:"workers"`
	ParseFallback    bool           `json:"parse_fallback" mapstructure:"parse_fallback" yaml:"parse_fallback"`
	RespectGitignore bool           `json:"respect_gitignore" mapstructure:"respect_gitignore" yaml:"respect_gitignore"`
}

// DefaultSearchDirs is used when search_dirs is empty.
func DefaultSearchDirs() []string {
	return []string{"src"}
}

// DefaultExtensions is the inclusion set of the enumerator.
func DefaultExtensions() []string {
	return []string{".ts", ".tsx"}
}

// DefaultExcludePatterns returns the built-in exclusion list.
func DefaultExcludePatterns() []string {
	return []string{
		"node_modules",
		".next",
		"dist",
		".turbo",
		"build",
		"out",
		"__tests__",
		"*.test.ts",
		"*.test.tsx",
		"*.test.js",
		"*.test.jsx",
		"*.spec.ts",
		"*.spec.tsx",
		"*.spec.js",
		"*.spec.jsx",
		"*.stories.ts",
		"*.stories.tsx",
		"*.stories.js",
		"*.stories.jsx",
		"*.d.ts",
		".git",
		".vscode",
		".idea",
		"coverage",
		".nyc_output",
		"*.min.js",
		"*.min.css",
	}
}

// Default returns the configuration used when no config file exists.
func Default() *Configuration {
	return &Configuration{
		SearchDirs:      DefaultSearchDirs(),
		ExcludePatterns: DefaultExcludePatterns(),
		DetectionTypes:  AllDetectionTypes(),
		CI:              DefaultCIConfig(),
		Extensions:      DefaultExtensions(),
		Strategy:        StrategyAST,
	}
}

// Normalize replaces empty lists with their defaults and canonicalizes
// extensions to a lowercase, dot-prefixed form.
func (c *Configuration) Normalize() {
	if len(c.SearchDirs) == 0 {
		c.SearchDirs = DefaultSearchDirs()
	}
	if len(c.ExcludePatterns) == 0 {
		c.ExcludePatterns = DefaultExcludePatterns()
	}
	if len(c.Extensions) == 0 {
		c.Extensions = DefaultExtensions()
	}
	for i, ext := range c.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Extensions[i] = ext
	}
	if c.Strategy == "" {
		c.Strategy = StrategyAST
	}
	c.Strategy = Strategy(strings.ToLower(string(c.Strategy)))
}

// Validate reports the first invalid setting as a KindConfig error.
func (c *Configuration) Validate() error {
	switch c.Strategy {
	case StrategyAST, StrategyPattern:
	default:
		return util.Errorf(util.KindConfig, "", "unknown strategy %q (want %q or %q)", c.Strategy, StrategyAST, StrategyPattern)
	}
	if c.Workers < 0 {
		return util.Errorf(util.KindConfig, "", "workers must not be negative, got %d", c.Workers)
	}
	for _, ext := range c.Extensions {
		if len(ext) < 2 {
			return util.Errorf(util.KindConfig, "", "invalid extension %q", ext)
		}
	}
	for _, dir := range c.SearchDirs {
		if strings.TrimSpace(dir) == "" {
			return util.Errorf(util.KindConfig, "", "search_dirs contains an empty entry")
		}
	}
	for _, p := range c.ExcludePatterns {
		if err := discovery.ValidatePattern(p); err != nil {
			return util.NewError(util.KindConfig, "", err)
		}
	}
	if c.CI != nil {
		if c.CI.MaxUnusedElements < 0 {
			return util.Errorf(util.KindConfig, "", "ci.max_unused_elements must not be negative, got %d", c.CI.MaxUnusedElements)
		}
		if c.CI.LogLevel != "" {
			if _, err := util.ParseLogLevel(c.CI.LogLevel); err != nil {
				return util.NewError(util.KindConfig, "", fmt.Errorf("ci.log_level: %w", err))
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (c *Configuration) Clone() *Configuration {
	out := *c
	out.SearchDirs = slices.Clone(c.SearchDirs)
	out.ExcludePatterns = slices.Clone(c.ExcludePatterns)
	out.Extensions = slices.Clone(c.Extensions)
	if c.CI != nil {
		ci := *c.CI
		out.CI = &ci
	}
	return &out
}

// Overrides carries CLI supplied values. Zero values mean "not set".
type Overrides struct {
	SearchDirs      []string
	ExcludePatterns []string
	DetectionTypes  *DetectionTypes
	CI              *CIConfig
	Strategy        Strategy
	Workers         int
}

// Merge layers o on top of base and returns a new Configuration.
//
// Search dirs are replaced when set. Extra exclude patterns extend the
// built-in list (sorted, de-duplicated) rather than replacing it, so a
// pattern given on the command line never re-enables node_modules.
func Merge(base *Configuration, o Overrides) *Configuration {
	out := base.Clone()
	if len(o.SearchDirs) > 0 {
		out.SearchDirs = slices.Clone(o.SearchDirs)
	}
	if len(o.ExcludePatterns) > 0 {
		patterns := append(DefaultExcludePatterns(), o.ExcludePatterns...)
		slices.Sort(patterns)
		out.ExcludePatterns = slices.Compact(patterns)
	}
	if o.DetectionTypes != nil {
		out.DetectionTypes = *o.DetectionTypes
	}
	if o.CI != nil {
		ci := *o.CI
		out.CI = &ci
	}
	if o.Strategy != "" {
		out.Strategy = o.Strategy
	}
	if o.Workers > 0 {
		out.Workers = o.Workers
	}
	return out
}
