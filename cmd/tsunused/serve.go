package main

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/gnana997/tsunused/pkg/mcp"
	"github.com/gnana997/tsunused/pkg/mcplog"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve detection as MCP tools over stdio",
		Long: `serve starts a Model Context Protocol server on stdin/stdout exposing the
detect_unused and check_element tools. Diagnostics go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts, logFile)
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "append one JSON line per tool call to this file")
	return cmd
}

func runServe(cmd *cobra.Command, opts *globalOptions, logFile string) error {
	cfg, logger, err := opts.resolve(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	calls, err := mcplog.NewLogger(logFile)
	if err != nil {
		return err
	}
	defer calls.Close()

	srv := mcpserver.NewServer(cfg, mcpserver.Options{
		Version: version,
		CallLog: calls,
		Logger:  logger,
	})
	defer srv.Close()

	logger.Info("serving MCP on stdio", "search_dirs", cfg.SearchDirs, "strategy", cfg.Strategy, "call_log", logFile)
	return srv.ServeStdio()
}
