package cli

import (
	"fmt"

	"github.com/soyeahso/workbench/internal/apiclient"
	"github.com/soyeahso/workbench/internal/domain"
	"github.com/spf13/cobra"
)

func newPresetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "presets",
		Aliases: []string{"preset"},
		Short:   "Manage saved query presets",
	}

	cmd.AddCommand(newPresetsListCmd())
	cmd.AddCommand(newPresetsShowCmd())
	cmd.AddCommand(newPresetsAddCmd())
	cmd.AddCommand(newPresetsRmCmd())
	cmd.AddCommand(newPresetsApplyCmd())

	return cmd
}

func newPresetsListCmd() *cobra.Command {
	var page apiclient.Page
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			res, err := c.ListPresets(cmd.Context(), page)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, res)
			}
			t := newTable(out, "ID", "Label", "Mode", "Servers", "Folder", "Predefined")
			for _, p := range res.Presets {
				t.AppendRow([]any{p.ID, p.Label, p.AgentMode, joinOrDash(p.SelectedServers), orDash(p.SelectedFolder), p.IsPredefined})
			}
			t.Render()
			renderCount(out, len(res.Presets), res.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page.Limit, "limit", 0, "maximum presets (default server limit)")
	cmd.Flags().IntVar(&page.Offset, "offset", 0, "presets to skip")
	return cmd
}

func newPresetsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			p, err := c.GetPreset(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, p)
			}
			fmt.Fprintf(out, "ID:       %s\n", p.ID)
			fmt.Fprintf(out, "Label:    %s\n", p.Label)
			fmt.Fprintf(out, "Mode:     %s\n", p.AgentMode)
			fmt.Fprintf(out, "Servers:  %s\n", joinOrDash(p.SelectedServers))
			fmt.Fprintf(out, "Folder:   %s\n", orDash(p.SelectedFolder))
			if p.LLMConfig != nil {
				fmt.Fprintf(out, "LLM:      %s %s\n", p.LLMConfig.Provider, p.LLMConfig.ModelID)
			}
			fmt.Fprintf(out, "Updated:  %s\n", ago(p.UpdatedAt))
			fmt.Fprintf(out, "\n%s\n", p.Query)
			return nil
		},
	}
}

func newPresetsAddCmd() *cobra.Command {
	var (
		servers []string
		folder  string
		mode    string
	)
	cmd := &cobra.Command{
		Use:   "add <label> <query>",
		Short: "Save a new preset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := domain.ParseAgentMode(mode)
			if err != nil {
				return err
			}
			in := domain.PresetInput{
				Label:           args[0],
				Query:           args[1],
				SelectedServers: servers,
				AgentMode:       m,
			}
			if folder != "" {
				in.SelectedFolder = &folder
			}
			if err := in.Validate(false); err != nil {
				return err
			}

			c, err := newClient()
			if err != nil {
				return err
			}
			p, err := c.CreatePreset(cmd.Context(), in)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved preset %s (%s)\n", p.Label, p.ID)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&servers, "mcp", nil, "MCP server to select (repeatable)")
	cmd.Flags().StringVar(&folder, "folder", "", "workspace folder to select")
	cmd.Flags().StringVar(&mode, "mode", "", "agent mode (simple, ReAct, orchestrator, workflow)")
	return cmd
}

func newPresetsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.DeletePreset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted preset %s\n", args[0])
			return nil
		},
	}
}

func newPresetsApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <id>",
		Short: "Show the composer draft a preset produces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			d, err := c.ApplyPreset(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, d)
			}
			fmt.Fprintf(out, "Mode:     %s\n", d.AgentMode)
			fmt.Fprintf(out, "Servers:  %s\n", joinOrDash(d.SelectedServers))
			fmt.Fprintf(out, "Folder:   %s\n", orDash(d.SelectedFolder))
			fmt.Fprintf(out, "Ready:    %v\n", d.Ready)
			fmt.Fprintf(out, "\n%s\n", d.Query)
			return nil
		},
	}
}

func newModesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List agent modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			m, err := c.ListModes(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, m)
			}
			t := newTable(out, "Mode", "Label", "Folder", "Description")
			for _, info := range m.Modes {
				mode := string(info.Mode)
				if info.Mode == m.Default {
					mode += " *"
				}
				folder := ""
				if info.RequiresFolder {
					folder = "required"
				}
				t.AppendRow([]any{mode, info.Label, folder, info.Description})
			}
			t.Render()
			return nil
		},
	}
}
