package extractor

import (
	"fmt"
	"log/slog"

	"github.com/gnana997/tsunused/pkg/config"
	"github.com/gnana997/tsunused/pkg/parser"
	"github.com/gnana997/tsunused/pkg/util"
)

// Strategy extracts definitions and references from source files.
//
// Implementations are safe for concurrent use: the detector calls
// ExtractDefinitions and ScanReferences from many workers at once.
//
// Usage:
//
//	strategy, err := NewStrategy(cfg, parserManager, logger)
//	defs, err := strategy.ExtractDefinitions(path, src)
//	refs, err := strategy.ScanReferences(path, src)
//	index, err := strategy.BuildIndex(allRefs, strategy.GroupDefinitions(allDefs))
//	usages, err := index.Lookup(candidate)
type Strategy interface {
	// Name identifies the strategy in logs and cache keys.
	Name() config.Strategy

	// ExtractDefinitions returns the exported elements declared in src,
	// in source order.
	ExtractDefinitions(path string, src []byte) ([]ElementDefinition, error)

	// ScanReferences returns the reference evidence of one file.
	ScanReferences(path string, src []byte) (FileReferences, error)

	// GroupDefinitions drops suppressed definitions and folds the rest
	// into candidates.
	GroupDefinitions(defs []ElementDefinition) []Candidate

	// BuildIndex prepares usage lookups for candidates over files. It runs
	// once per detection run.
	BuildIndex(files []FileReferences, candidates []Candidate) (ReferenceIndex, error)
}

// NewStrategy builds the strategy cfg selects.
//
// pm is only used by the syntax-tree strategy and may be nil for the
// pattern strategy.
func NewStrategy(cfg *config.Configuration, pm *parser.ParserManager, logger *slog.Logger) (Strategy, error) {
	logger = util.LoggerOrDefault(logger)

	switch cfg.Strategy {
	case config.StrategyAST, "":
		if pm == nil {
			return nil, util.Errorf(util.KindConfig, "", "syntax-tree strategy needs a parser manager")
		}
		return NewASTStrategy(pm, cfg.DetectionTypes, cfg.ParseFallback, logger)
	case config.StrategyPattern:
		return NewPatternStrategy(cfg.DetectionTypes, logger)
	default:
		return nil, util.NewError(util.KindConfig, "", fmt.Errorf("unknown strategy %q", cfg.Strategy))
	}
}

// dedupeDefinitions drops repeated (name, type) pairs of one file, keeping
// the first occurrence. Ambient overload lists declare a name once per
// signature.
func dedupeDefinitions(defs []ElementDefinition) []ElementDefinition {
	type key struct {
		name string
		typ  ElementType
	}
	seen := make(map[key]bool, len(defs))
	out := defs[:0]
	for _, d := range defs {
		k := key{d.Name, d.Type}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	return out
}
