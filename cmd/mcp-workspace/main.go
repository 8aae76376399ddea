// Command mcp-workspace is a stdio MCP server that gives agents access to
// the Workbench document workspace.
//
// Usage:
//
//	mcp-workspace [docs-dir]
//
// Without an argument the workspace directory comes from the Workbench
// config (workspace.docsDir, WORKBENCH_DOCS_DIR). When gateway.url or
// WORKBENCH_GATEWAY_URL is set and no directory is given, tool calls go
// through that gateway instead of touching the directory directly.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soyeahso/workbench/internal/config"
	"github.com/soyeahso/workbench/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "mcp-workspace:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	paths, err := config.ResolvePaths()
	if err != nil {
		return err
	}
	if err := config.LoadDotEnv(paths.DotEnv); err != nil {
		return err
	}
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Workspace.DocsDir = args[0]
		cfg.Gateway.URL = ""
	}
	paths.Fill(&cfg)

	log, closer, err := logging.Open(logging.Options{
		Level: cfg.Logging.Level,
		Style: "compact",
		File:  filepath.Join(paths.Logs, "mcp-workspace.log"),
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	ws, err := openWorkspace(cfg, log)
	if err != nil {
		return err
	}

	return NewServer(ws, os.Stdout, log).Run(context.Background(), os.Stdin)
}
