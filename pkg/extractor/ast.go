package extractor

import (
	"fmt"
	"log/slog"
	"regexp"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/tsunused/pkg/config"
	"github.com/gnana997/tsunused/pkg/parser"
	"github.com/gnana997/tsunused/pkg/util"
)

// identifierToken matches identifier-shaped words for the parse fallback.
var identifierToken = regexp.MustCompile(`[A-Za-z_$][\w$]*`)

// ASTStrategy extracts with tree-sitter.
//
// Each file is parsed once per pass and the tree is closed before the call
// returns. With parseFallback set, a file whose tree contains syntax errors
// is handled by the pattern definition rules and an identifier token scan
// instead of failing the run.
type ASTStrategy struct {
	pm            *parser.ParserManager
	types         config.DetectionTypes
	parseFallback bool
	fallback      *PatternStrategy
	logger        *slog.Logger
}

// NewASTStrategy creates a syntax-tree strategy.
func NewASTStrategy(pm *parser.ParserManager, types config.DetectionTypes, parseFallback bool, logger *slog.Logger) (*ASTStrategy, error) {
	logger = util.LoggerOrDefault(logger)

	s := &ASTStrategy{
		pm:            pm,
		types:         types,
		parseFallback: parseFallback,
		logger:        logger,
	}
	if parseFallback {
		fallback, err := NewPatternStrategy(types, logger)
		if err != nil {
			return nil, err
		}
		s.fallback = fallback
	}
	return s, nil
}

// Name implements Strategy.
func (s *ASTStrategy) Name() config.Strategy {
	return config.StrategyAST
}

// ExtractDefinitions implements Strategy.
func (s *ASTStrategy) ExtractDefinitions(path string, src []byte) ([]ElementDefinition, error) {
	var defs []ElementDefinition
	err := s.withTree(path, src, func(root *ts.Node) {
		defs = newDefinitionWalker(path, src, s.types).walk(root)
	}, func() error {
		var err error
		defs, err = s.fallback.ExtractDefinitions(path, src)
		return err
	})
	return defs, err
}

// ScanReferences implements Strategy.
func (s *ASTStrategy) ScanReferences(path string, src []byte) (FileReferences, error) {
	out := FileReferences{File: path}
	err := s.withTree(path, src, func(root *ts.Node) {
		out.References = newReferenceWalker(path, src).walk(root)
	}, func() error {
		out.References = tokenReferences(path, src)
		return nil
	})
	return out, err
}

// withTree parses src and hands the root to fn. A tree with syntax errors
// is a KindParse failure, or goes to fallback when parse fallback is on.
func (s *ASTStrategy) withTree(path string, src []byte, fn func(root *ts.Node), fallback func() error) error {
	tree, err := s.pm.ParseFile(src, path)
	if err != nil {
		return util.NewError(util.KindParse, path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if pos, bad := parser.SyntaxError(root); bad {
		if !s.parseFallback {
			return util.NewError(util.KindParse, path,
				fmt.Errorf("syntax error at %d:%d", pos.Row+1, pos.Column+1))
		}
		s.logger.Warn("syntax error, falling back to pattern matching",
			"file", path,
			"line", pos.Row+1,
			"column", pos.Column+1)
		return fallback()
	}

	fn(root)
	return nil
}

// GroupDefinitions implements Strategy. Every definition stays its own
// candidate, even when another file declares the same name.
func (s *ASTStrategy) GroupDefinitions(defs []ElementDefinition) []Candidate {
	out := make([]Candidate, 0, len(defs))
	for _, d := range defs {
		if d.ShouldIgnore {
			continue
		}
		out = append(out, Candidate{Name: d.Name, Type: d.Type, Files: []string{d.File}})
	}
	return out
}

// BuildIndex implements Strategy. References are bucketed by name so each
// lookup touches only the occurrences of its own name.
func (s *ASTStrategy) BuildIndex(files []FileReferences, candidates []Candidate) (ReferenceIndex, error) {
	wanted := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		wanted[c.Name] = true
	}

	idx := &astIndex{byName: make(map[string][]ElementReference, len(wanted))}
	total := 0
	for _, f := range files {
		for _, ref := range f.References {
			if wanted[ref.Name] {
				idx.byName[ref.Name] = append(idx.byName[ref.Name], ref)
				total++
			}
		}
	}

	s.logger.Debug("reference index built",
		"files", len(files),
		"names", len(idx.byName),
		"references", total)
	return idx, nil
}

// astIndex is read-only after BuildIndex returns.
type astIndex struct {
	byName map[string][]ElementReference
}

// Lookup implements ReferenceIndex.
func (idx *astIndex) Lookup(c Candidate) ([]ElementUsage, error) {
	var out []ElementUsage
	pos := make(map[string]int)
	for _, ref := range idx.byName[c.Name] {
		if c.Defines(ref.File) {
			continue
		}
		i, ok := pos[ref.File]
		if !ok {
			i = len(out)
			pos[ref.File] = i
			out = append(out, ElementUsage{File: ref.File})
		}
		out[i].Usages = append(out[i].Usages, Usage{Line: ref.Line, Context: ref.Context})
	}
	return out, nil
}

// tokenReferences treats every identifier-shaped word as a usage. It is the
// reference pass of the parse fallback.
func tokenReferences(path string, src []byte) []ElementReference {
	lines := newLineIndex(src)
	var refs []ElementReference
	for _, loc := range identifierToken.FindAllIndex(src, -1) {
		refs = append(refs, ElementReference{
			Name:    string(src[loc[0]:loc[1]]),
			File:    path,
			Line:    lines.lineAt(loc[0]),
			Context: ContextUsage,
		})
	}
	return refs
}
