package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnana997/tsunused/pkg/config"
	"github.com/gnana997/tsunused/pkg/detector"
	"github.com/gnana997/tsunused/pkg/report"
	"github.com/gnana997/tsunused/pkg/util"
)

var (
	// ErrUnusedFound fails a strict run that found unused elements.
	ErrUnusedFound = errors.New("unused elements found")
	// ErrThresholdExceeded fails a run that breaks the ci policy.
	ErrThresholdExceeded = errors.New("unused element threshold exceeded")
)

// typeFlags are the --types ... --all switches.
type typeFlags struct {
	types      bool
	interfaces bool
	functions  bool
	variables  bool
	enums      bool
	all        bool
}

// selection returns the detection types the flags ask for, or nil when no
// flag was given. Components are always part of a flag selection.
func (f typeFlags) selection() *config.DetectionTypes {
	if f.all {
		d := config.AllDetectionTypes()
		return &d
	}
	if !f.types && !f.interfaces && !f.functions && !f.variables && !f.enums {
		return nil
	}
	return &config.DetectionTypes{
		Components: true,
		Types:      f.types,
		Interfaces: f.interfaces,
		Functions:  f.functions,
		Variables:  f.variables,
		Enums:      f.enums,
	}
}

// globalOptions holds the flags shared by every command.
type globalOptions struct {
	configPath string
	strategy   string
	format     string
	logLevel   string
	logFormat  string
	jobs       int
	verbose    bool
	quiet      bool
	noMonorepo bool
	types      typeFlags
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	var strict bool

	cmd := &cobra.Command{
		Use:   "tsunused",
		Short: "Find unused exports in TypeScript and React projects",
		Long: `tsunused scans a TypeScript/TSX code base for exported components, types,
interfaces, functions, constants and enums that no other file references.

Configuration is read from tuc.config.json in the working directory (or the
file given with --config). Any TSUNUSED_* environment variable, including
those in a local .env file, overrides the file. In a workspace root with an
apps/ directory every search dir is looked up inside each app.

Exit status is 1 when --strict finds unused elements or when the ci policy
threshold is exceeded.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, opts, strict)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "configuration file (default "+config.DefaultConfigFile+")")
	pf.StringVar(&opts.strategy, "strategy", "", "extraction strategy: ast or pattern")
	pf.IntVarP(&opts.jobs, "jobs", "j", 0, "parallel workers (default: number of CPUs)")
	pf.StringVar(&opts.format, "format", "text", "report format: text, json or yaml")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "list used elements and log progress")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress the report")
	pf.BoolVar(&opts.noMonorepo, "no-monorepo", false, "do not rewrite search dirs into apps/*/<dir> for workspace roots")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (default: ci.log_level, else warn)")
	pf.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")

	pf.BoolVar(&opts.types.types, "types", false, "detect type aliases")
	pf.BoolVar(&opts.types.interfaces, "interfaces", false, "detect interfaces")
	pf.BoolVar(&opts.types.functions, "functions", false, "detect functions")
	pf.BoolVar(&opts.types.variables, "variables", false, "detect constants and variables")
	pf.BoolVar(&opts.types.enums, "enums", false, "detect enums")
	pf.BoolVar(&opts.types.all, "all", false, "detect every element kind")

	cmd.Flags().BoolVarP(&strict, "strict", "s", false, "exit 1 when any unused element is found")

	cmd.AddCommand(
		newWatchCmd(opts),
		newServeCmd(opts),
		newSetupCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// runScan performs one detection run and reports it.
func runScan(cmd *cobra.Command, opts *globalOptions, strict bool) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	cfg, logger, err := opts.resolve(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	d, err := detector.New(cfg, detector.WithLogger(logger))
	if err != nil {
		return err
	}
	defer d.Close()

	result, err := d.Detect(cmd.Context())
	if err != nil {
		return err
	}

	if !opts.quiet {
		if err := report.Write(cmd.OutOrStdout(), result, format, report.Options{Verbose: opts.verbose}); err != nil {
			return err
		}
	}
	return verdict(cfg, result, strict)
}

// verdict maps a finished run to the exit policy.
func verdict(cfg *config.Configuration, result *detector.DetectionResult, strict bool) error {
	unused := len(result.Unused)
	if strict && unused > 0 {
		return fmt.Errorf("%w: %d", ErrUnusedFound, unused)
	}
	if cfg.CI.Exceeded(unused) {
		return fmt.Errorf("%w: %d unused, limit %d", ErrThresholdExceeded, unused, cfg.CI.MaxUnusedElements)
	}
	return nil
}

// resolve loads the configuration, applies the flags and builds the logger.
// Logs go to stderr so reports on stdout stay machine readable.
func (o *globalOptions) resolve(stderr io.Writer) (*config.Configuration, *slog.Logger, error) {
	if o.jobs < 0 {
		return nil, nil, util.Errorf(util.KindConfig, "", "--jobs must not be negative, got %d", o.jobs)
	}

	cfg, found, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.configPath != "" && !found {
		return nil, nil, util.Errorf(util.KindConfig, o.configPath, "configuration file not found")
	}

	cfg = config.Merge(cfg, config.Overrides{
		DetectionTypes: o.types.selection(),
		Strategy:       config.Strategy(strings.ToLower(strings.TrimSpace(o.strategy))),
		Workers:        o.jobs,
	})

	logger, err := o.newLogger(cfg, stderr)
	if err != nil {
		return nil, nil, err
	}

	if !o.noMonorepo {
		adjusted, changed, err := config.AdjustForMonorepo(".", cfg)
		if err != nil {
			return nil, nil, err
		}
		if changed {
			logger.Info("monorepo layout detected", "search_dirs", adjusted.SearchDirs)
		}
		cfg = adjusted
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger.Debug("configuration resolved",
		"config_file", found,
		"search_dirs", cfg.SearchDirs,
		"strategy", cfg.Strategy,
		"types", cfg.DetectionTypes.String(),
		"workers", cfg.Workers)
	return cfg, logger, nil
}

// newLogger picks the level from --log-level, then ci.log_level, then warn.
// --verbose raises anything quieter than info to info.
func (o *globalOptions) newLogger(cfg *config.Configuration, w io.Writer) (*slog.Logger, error) {
	raw := o.logLevel
	if raw == "" && cfg.CI != nil {
		raw = cfg.CI.LogLevel
	}

	level := util.LevelWarn
	if raw != "" {
		parsed, err := util.ParseLogLevel(raw)
		if err != nil {
			return nil, util.NewError(util.KindConfig, "", err)
		}
		level = parsed
	}
	if o.verbose && (level == util.LevelWarn || level == util.LevelError) {
		level = util.LevelInfo
	}

	format, err := util.ParseLogFormat(o.logFormat)
	if err != nil {
		return nil, util.NewError(util.KindConfig, "", err)
	}

	return util.NewLogger(util.LoggerConfig{Level: level, Format: format, Output: w}), nil
}
