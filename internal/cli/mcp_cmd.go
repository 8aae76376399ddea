package cli

import (
	"fmt"
	"strings"

	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/mcpservers"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Manage the MCP servers offered to agents",
	}

	cmd.AddCommand(newMCPListCmd())
	cmd.AddCommand(newMCPAddCmd())
	cmd.AddCommand(newMCPRmCmd())

	return cmd
}

func newMCPListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			servers, err := c.ListMCPServers(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, servers)
			}
			t := newTable(out, "Name", "Transport", "Target", "Source")
			for _, s := range servers {
				target := s.URL
				if target == "" {
					target = truncate(s.Command+" "+strings.Join(s.Args, " "), 60)
				}
				t.AppendRow([]any{s.Name, s.Transport(), target, orDash(s.Source)})
			}
			t.Render()
			renderCount(out, len(servers), len(servers))
			return nil
		},
	}
}

func newMCPAddCmd() *cobra.Command {
	var s domain.MCPServer
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace a user MCP server",
		Example: `  workbench mcp add notes --command npx --arg -y --arg @acme/notes-mcp
  workbench mcp add search --url https://search.example.com/sse`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s.Name = args[0]
			if err := mcpservers.Validate(s); err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			saved, err := c.AddMCPServer(cmd.Context(), s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved MCP server %s (%s)\n", saved.Name, saved.Transport())
			return nil
		},
	}
	cmd.Flags().StringVar(&s.Command, "command", "", "executable for a stdio server")
	cmd.Flags().StringArrayVar(&s.Args, "arg", nil, "argument for the command (repeatable)")
	cmd.Flags().StringToStringVar(&s.Env, "env", nil, "environment for the command (KEY=value)")
	cmd.Flags().StringVar(&s.URL, "url", "", "endpoint of an sse or http server")
	cmd.Flags().StringToStringVar(&s.Headers, "header", nil, "request header for a remote server (Name=value)")
	cmd.Flags().StringVar(&s.Protocol, "protocol", "", "transport override (stdio, sse, http)")
	cmd.Flags().StringVar(&s.Description, "description", "", "text shown in the server selector")
	return cmd
}

func newMCPRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove a user MCP server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.RemoveMCPServer(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed MCP server %s\n", args[0])
			return nil
		},
	}
}
