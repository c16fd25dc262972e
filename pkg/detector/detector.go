package detector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gnana997/tsunused/pkg/config"
	"github.com/gnana997/tsunused/pkg/discovery"
	"github.com/gnana997/tsunused/pkg/extractor"
	"github.com/gnana997/tsunused/pkg/indexer"
	"github.com/gnana997/tsunused/pkg/parser"
	"github.com/gnana997/tsunused/pkg/util"
	"github.com/gnana997/tsunused/pkg/workerpool"
)

// Detector runs detections for one resolved Configuration.
//
// A Detector may run Detect many times (watch mode, MCP server). Every run
// reads the tree afresh; with an ExtractionCache attached, files whose
// stamp is unchanged skip extraction.
//
// **Usage:**
//
//	d, err := detector.New(cfg, detector.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer d.Close()
//
//	result, err := d.Detect(ctx)
type Detector struct {
	cfg      *config.Configuration
	pool     *workerpool.Pool
	cache    *indexer.ExtractionCache
	pm       *parser.ParserManager
	ownsPM   bool
	strategy extractor.Strategy
	variant  string
	logger   *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

// WithPool sets the worker pool. Default: a pool of cfg.Workers width.
func WithPool(pool *workerpool.Pool) Option {
	return func(d *Detector) { d.pool = pool }
}

// WithCache attaches an extraction cache shared across runs.
func WithCache(cache *indexer.ExtractionCache) Option {
	return func(d *Detector) { d.cache = cache }
}

// WithParserManager shares a parser manager. The Detector does not close
// a manager it was given.
func WithParserManager(pm *parser.ParserManager) Option {
	return func(d *Detector) { d.pm = pm }
}

// New validates cfg and prepares the extraction strategy. cfg is copied and
// normalized; later changes to it do not affect the Detector.
func New(cfg *config.Configuration, opts ...Option) (*Detector, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg = cfg.Clone()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Detector{cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = util.LoggerOrDefault(d.logger)
	if d.pool == nil {
		d.pool = workerpool.New(cfg.Workers, d.logger)
	}
	if d.pm == nil && cfg.Strategy == config.StrategyAST {
		d.pm = parser.NewParserManager(d.logger, d.pool.Size())
		d.ownsPM = true
	}

	strategy, err := extractor.NewStrategy(cfg, d.pm, d.logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.strategy = strategy
	d.variant = fmt.Sprintf("%s|%s|%t", strategy.Name(), cfg.DetectionTypes, cfg.ParseFallback)

	return d, nil
}

// Config returns the normalized configuration the Detector runs with.
func (d *Detector) Config() *config.Configuration {
	return d.cfg
}

// Close releases the parser manager when the Detector created it.
func (d *Detector) Close() error {
	if d.ownsPM && d.pm != nil {
		err := d.pm.Close()
		d.pm = nil
		return err
	}
	return nil
}

// Detect runs one detection.
//
// The definition pass and the reference pass run concurrently, each fanned
// out over the worker pool. The first I/O or parse failure aborts the run
// and no partial result is returned.
func (d *Detector) Detect(ctx context.Context) (*DetectionResult, error) {
	start := time.Now()

	enumerator := discovery.NewEnumerator(discovery.Options{
		SearchDirs:       d.cfg.SearchDirs,
		Extensions:       d.cfg.Extensions,
		ExcludePatterns:  d.cfg.ExcludePatterns,
		RespectGitignore: d.cfg.RespectGitignore,
		Logger:           d.logger,
	})
	sets, err := enumerator.EnumerateAll(ctx, d.pool)
	if err != nil {
		return nil, err
	}

	fcConfig := util.UnboundedFileCacheConfig()
	fcConfig.Logger = d.logger
	files := util.NewFileCache(fcConfig)
	defer files.Close()

	var (
		defs []extractor.ElementDefinition
		refs []extractor.FileReferences
	)
	extractStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		defs, err = workerpool.FlatMap(gctx, d.pool, sets.Definitions, d.definitionsOf(files))
		return err
	})
	g.Go(func() error {
		var err error
		refs, err = workerpool.Map(gctx, d.pool, sets.References, d.referencesOf(files))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.logger.Info("extraction complete",
		"strategy", d.strategy.Name(),
		"definition_files", len(sets.Definitions),
		"reference_files", len(sets.References),
		"definitions", len(defs),
		"ms", time.Since(extractStart).Milliseconds())

	result, err := d.resolve(ctx, defs, refs)
	if err != nil {
		return nil, err
	}

	fcStats := files.Stats()
	d.logger.Info("detection complete",
		"total", result.Total,
		"used", len(result.Used),
		"unused", len(result.Unused),
		"files_mapped", fcStats.FilesLoaded,
		"mmap_fallbacks", fcStats.MmapFailures,
		"ms", time.Since(start).Milliseconds())

	return result, nil
}

// definitionsOf returns the per-file task of the definition pass.
func (d *Detector) definitionsOf(files util.FileCache) func(context.Context, string) ([]extractor.ElementDefinition, error) {
	return func(_ context.Context, path string) ([]extractor.ElementDefinition, error) {
		var stamp indexer.Stamp
		if d.cache != nil {
			s, err := indexer.StatFile(path)
			if err != nil {
				return nil, err
			}
			if defs, ok := d.cache.Definitions(path, d.variant, s); ok {
				return defs, nil
			}
			stamp = s
		}

		src, err := files.Content(path)
		if err != nil {
			return nil, err
		}
		defs, err := d.strategy.ExtractDefinitions(path, src)
		if err != nil {
			return nil, err
		}

		if d.cache != nil {
			d.cache.StoreDefinitions(path, d.variant, stamp, defs)
		}
		return defs, nil
	}
}

// referencesOf returns the per-file task of the reference pass.
//
// Pattern references carry the mapped source itself, which is unmapped at
// the end of the run, so only syntax-tree references are cached.
func (d *Detector) referencesOf(files util.FileCache) func(context.Context, string) (extractor.FileReferences, error) {
	cacheable := d.cache != nil && d.strategy.Name() == config.StrategyAST

	return func(_ context.Context, path string) (extractor.FileReferences, error) {
		var stamp indexer.Stamp
		if cacheable {
			s, err := indexer.StatFile(path)
			if err != nil {
				return extractor.FileReferences{}, err
			}
			if refs, ok := d.cache.References(path, d.variant, s); ok {
				return extractor.FileReferences{File: path, References: refs}, nil
			}
			stamp = s
		}

		src, err := files.Content(path)
		if err != nil {
			return extractor.FileReferences{}, err
		}
		out, err := d.strategy.ScanReferences(path, src)
		if err != nil {
			return extractor.FileReferences{}, err
		}

		if cacheable {
			d.cache.StoreReferences(path, d.variant, stamp, out.References)
		}
		return out, nil
	}
}
