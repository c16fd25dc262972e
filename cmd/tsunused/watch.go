package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/gnana997/tsunused/pkg/detector"
	"github.com/gnana997/tsunused/pkg/indexer"
	"github.com/gnana997/tsunused/pkg/report"
	"github.com/gnana997/tsunused/pkg/util"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run detection whenever a source file changes",
		Long: `watch runs one detection, then watches the search directories and runs
again after every burst of changes. Files that did not change are not parsed
again. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, opts, debounce)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", indexer.DefaultWatchOptions().Debounce, "quiet period before re-running")
	return cmd
}

func runWatch(cmd *cobra.Command, opts *globalOptions, debounce time.Duration) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	cfg, logger, err := opts.resolve(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	cache := indexer.NewExtractionCache(indexer.DefaultExtractionCacheConfig(), logger)
	d, err := detector.New(cfg, detector.WithLogger(logger), detector.WithCache(cache))
	if err != nil {
		return err
	}
	defer d.Close()

	out := cmd.OutOrStdout()
	// A failed run is logged and the watch goes on: the next save usually
	// fixes the syntax error that caused it.
	run := func(ctx context.Context) {
		result, err := d.Detect(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case util.KindOf(err) == util.KindParse:
				logger.Warn("detection skipped, source does not parse", "error", err)
			default:
				logger.Error("detection failed", "error", err)
			}
			return
		}
		if !opts.quiet {
			if err := report.Write(out, result, format, report.Options{Verbose: opts.verbose}); err != nil {
				logger.Error("failed to write report", "error", err)
			}
		}
		stats := cache.Stats()
		logger.Info("detection finished",
			"total", result.Total,
			"unused", len(result.Unused),
			"cache_hits", stats.Hits,
			"cache_misses", stats.Misses)
	}

	ctx := cmd.Context()
	run(ctx)

	w, err := indexer.NewWatcher(cfg.SearchDirs,
		indexer.WatchOptions{Debounce: debounce, Extensions: cfg.Extensions},
		cache,
		func(ctx context.Context, changed []string) {
			logger.Info("change detected", "files", len(changed))
			run(ctx)
		},
		logger)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
