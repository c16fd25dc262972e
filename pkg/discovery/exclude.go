// Package discovery enumerates the source files a detection run reads.
package discovery

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type patternKind int

const (
	// substring: no '*' at all
	kindSubstring patternKind = iota
	// prefix*suffix: exactly one '*'
	kindPrefixSuffix
	// prefix/**
	kindPrefix
	// anything else with a '*', matched as a doublestar glob
	kindGlob
)

type excludePattern struct {
	raw    string
	kind   patternKind
	prefix string
	suffix string
}

func compilePattern(raw string) excludePattern {
	p := excludePattern{raw: raw}
	if !strings.Contains(raw, "*") {
		p.kind = kindSubstring
		return p
	}
	if parts := strings.Split(raw, "*"); len(parts) == 2 {
		p.kind = kindPrefixSuffix
		p.prefix, p.suffix = parts[0], parts[1]
		return p
	}
	if strings.HasSuffix(raw, "/**") {
		p.kind = kindPrefix
		p.prefix = strings.TrimSuffix(raw, "/**")
		return p
	}
	p.kind = kindGlob
	return p
}

func (p excludePattern) match(path string) bool {
	switch p.kind {
	case kindPrefixSuffix:
		return strings.HasPrefix(path, p.prefix) && strings.HasSuffix(path, p.suffix)
	case kindPrefix:
		return strings.HasPrefix(path, p.prefix)
	case kindGlob:
		ok, _ := doublestar.Match(p.raw, path)
		return ok
	default:
		return strings.Contains(path, p.raw)
	}
}

// ValidatePattern rejects empty patterns and multi-star patterns that are
// not valid globs.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("empty exclude pattern")
	}
	if p := compilePattern(pattern); p.kind == kindGlob && !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid exclude pattern: %s", pattern)
	}
	return nil
}

// Excluder matches paths against a fixed list of exclude patterns.
//
// Pattern forms, checked in list order with the first match winning:
//   - exactly one '*': prefix*suffix, e.g. "*.test.ts"
//   - ending in "/**": path prefix, e.g. "src/generated/**"
//   - other patterns containing '*': doublestar glob, e.g. "**/__mocks__/*.ts"
//   - no '*': plain substring, e.g. "node_modules"
type Excluder struct {
	patterns []excludePattern
}

// NewExcluder compiles patterns once for repeated matching.
func NewExcluder(patterns []string) *Excluder {
	e := &Excluder{patterns: make([]excludePattern, 0, len(patterns))}
	for _, raw := range patterns {
		e.patterns = append(e.patterns, compilePattern(raw))
	}
	return e
}

// Match reports whether path is excluded. Paths are compared in
// slash-separated form.
func (e *Excluder) Match(path string) bool {
	_, ok := e.MatchedBy(path)
	return ok
}

// MatchedBy returns the first pattern excluding path.
func (e *Excluder) MatchedBy(path string) (string, bool) {
	path = filepath.ToSlash(path)
	for _, p := range e.patterns {
		if p.match(path) {
			return p.raw, true
		}
	}
	return "", false
}
