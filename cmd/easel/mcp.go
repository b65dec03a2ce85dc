package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/easel-dev/easel/internal/config"
	"github.com/easel-dev/easel/internal/mcp"
	"github.com/easel-dev/easel/internal/render"
	"github.com/easel-dev/easel/internal/workspace"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		Long: `Run a Model Context Protocol server that exposes diagram rendering
to AI assistants over stdin/stdout.

The server speaks JSON-RPC 2.0, one message per line. Logs go to
stderr so they never corrupt the protocol stream. The process exits
when the client closes stdin.

Claude Desktop configuration:

  {
    "mcpServers": {
      "easel": {
        "command": "easel",
        "args": ["mcp"]
      }
    }
  }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP()
		},
	}
}

func runMCP() error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}
	logger := newLogger(slog.LevelInfo)

	store, err := workspace.New(cfg.WorkspacePath(), logger)
	if err != nil {
		return err
	}
	renderer := render.NewCommandRenderer(cfg.Render.Command, cfg.Render.Args, logger)

	srv := mcp.NewServer(mcp.Options{
		Store:       store,
		Renderer:    renderer,
		Config:      cfg,
		Version:     version,
		Logger:      logger,
		OpenBrowser: openURL,
	})
	return srv.Run(context.Background())
}
