package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/tracker/internal/mcp"
	"github.com/joescharf/tracker/internal/store"
	"github.com/joescharf/tracker/internal/tracker"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio backed by its own
in-memory store. Configure it in an MCP client with:

  {
    "mcpServers": {
      "tracker": { "command": "tracker", "args": ["mcp"] }
    }
  }

To share issues with a running API server, start it with 'tracker serve --mcp'
and point the client at http://localhost:3000/mcp instead.

Available tools: tracker_list_projects, tracker_list_issues,
tracker_create_issue, tracker_update_issue, tracker_delete_issue`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	s, err := store.Open(ctx, viper.GetString("store"))
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	return mcp.NewServer(tracker.New(s), buildVersion).ServeStdio(ctx)
}
