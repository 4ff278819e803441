package main

import (
	"github.com/spf13/cobra"

	"pdpl_assistant/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the assistant as MCP tools over stdio",
	Long: `Starts an MCP server over stdin/stdout with the tools ask, extract_references
and lookup_passages. Logs go to stderr.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	agent, store, err := buildAgent(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := mcpserver.New(agent, store, mcpserver.Options{Version: version, QueryTimeout: cfg.QueryTimeout()})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
