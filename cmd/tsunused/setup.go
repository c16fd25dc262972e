package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// serverName is the key tsunused registers under in MCP client configs.
const serverName = "tsunused"

// mcpClient is an editor or agent that reads a project-level MCP config.
// tsunused scans the working directory, so only project files are written.
type mcpClient struct {
	Name        string
	Binary      string // detected when on PATH, may be empty
	Marker      string // detected when this path exists, may be empty
	ConfigFile  string
	ServersKey  string
	ExtraFields map[string]string
}

var mcpClients = []mcpClient{
	{
		Name:       "Claude Code",
		Binary:     "claude",
		Marker:     ".mcp.json",
		ConfigFile: ".mcp.json",
		ServersKey: "mcpServers",
	},
	{
		Name:        "VS Code",
		Marker:      ".vscode",
		ConfigFile:  filepath.Join(".vscode", "mcp.json"),
		ServersKey:  "servers",
		ExtraFields: map[string]string{"type": "stdio"},
	},
	{
		Name:       "Cursor",
		Marker:     ".cursor",
		ConfigFile: filepath.Join(".cursor", "mcp.json"),
		ServersKey: "mcpServers",
	},
}

// Replaced in tests.
var lookPathFunc = exec.LookPath

func newSetupCmd(opts *globalOptions) *cobra.Command {
	var auto bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register `tsunused serve` in this project's MCP client configs",
		Long: `setup looks for MCP clients used in the working directory (Claude Code,
VS Code, Cursor) and adds a tsunused server entry to each project config.
--config, --strategy and --no-monorepo given to setup are passed on to serve.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeSetup(cmd.InOrStdin(), cmd.OutOrStdout(), serveArgs(opts), auto)
		},
	}
	cmd.Flags().BoolVar(&auto, "auto", false, "configure every detected client without prompting")
	return cmd
}

// serveArgs is the argument list the clients launch tsunused with.
func serveArgs(opts *globalOptions) []string {
	args := []string{"serve"}
	if opts.configPath != "" {
		args = append(args, "--config", opts.configPath)
	}
	if opts.strategy != "" {
		args = append(args, "--strategy", strings.ToLower(opts.strategy))
	}
	if opts.noMonorepo {
		args = append(args, "--no-monorepo")
	}
	return args
}

// detectClients returns the clients in use here, in registry order.
func detectClients() []mcpClient {
	var found []mcpClient
	for _, c := range mcpClients {
		if c.Binary != "" {
			if _, err := lookPathFunc(c.Binary); err == nil {
				found = append(found, c)
				continue
			}
		}
		if c.Marker != "" {
			if _, err := os.Stat(c.Marker); err == nil {
				found = append(found, c)
			}
		}
	}
	return found
}

// mergeServerEntry adds the tsunused entry under serversKey to the JSON
// document in existing (empty means a new document). Other keys and servers
// are kept. It returns nil, nil when the entry is already there.
func mergeServerEntry(existing []byte, serversKey string, args []string, extra map[string]string) ([]byte, error) {
	doc := make(map[string]any)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &doc); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}

	servers, ok := doc[serversKey].(map[string]any)
	if !ok {
		servers = make(map[string]any)
	}
	if _, exists := servers[serverName]; exists {
		return nil, nil
	}

	entry := map[string]any{"command": serverName, "args": args}
	for k, v := range extra {
		entry[k] = v
	}
	servers[serverName] = entry
	doc[serversKey] = servers

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return append(out, '\n'), nil
}

// configureClient merges the entry into the client's config file, creating
// the file and its directory when missing. It reports whether the file
// changed.
func configureClient(c mcpClient, args []string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(c.ConfigFile), 0o755); err != nil {
		return false, fmt.Errorf("create directory: %w", err)
	}

	existing, err := os.ReadFile(c.ConfigFile)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("read %s: %w", c.ConfigFile, err)
	}

	merged, err := mergeServerEntry(existing, c.ServersKey, args, c.ExtraFields)
	if err != nil || merged == nil {
		return false, err
	}
	if err := os.WriteFile(c.ConfigFile, merged, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", c.ConfigFile, err)
	}
	return true, nil
}

// promptYesNo asks question and defaults to yes on an empty answer or EOF.
func promptYesNo(r *bufio.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s ", question)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return true
	default:
		return false
	}
}

// executeSetup registers tsunused with every detected client, asking first
// unless auto is set. A client that fails does not stop the others; the
// first failure is returned.
func executeSetup(in io.Reader, w io.Writer, args []string, auto bool) error {
	clients := detectClients()
	if len(clients) == 0 {
		fmt.Fprintln(w, "No MCP clients found in this project.")
		return nil
	}

	r := bufio.NewReader(in)
	command := serverName + " " + strings.Join(args, " ")

	var firstErr error
	for _, c := range clients {
		if !auto && !promptYesNo(r, w, fmt.Sprintf("%s: add %q to %s? [Y/n]", c.Name, command, c.ConfigFile)) {
			fmt.Fprintf(w, "  - %s skipped\n", c.Name)
			continue
		}
		changed, err := configureClient(c, args)
		switch {
		case err != nil:
			fmt.Fprintf(w, "  ! %s: %v\n", c.Name, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", c.Name, err)
			}
		case changed:
			fmt.Fprintf(w, "  + %s configured (%s)\n", c.Name, c.ConfigFile)
		default:
			fmt.Fprintf(w, "  = %s already configured\n", c.Name)
		}
	}
	return firstErr
}
