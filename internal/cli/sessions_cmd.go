package cli

import (
	"fmt"

	"github.com/soyeahso/workbench/internal/apiclient"
	"github.com/soyeahso/workbench/internal/composer"
	"github.com/soyeahso/workbench/internal/domain"
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Browse chat history",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsNewCmd())
	cmd.AddCommand(newSessionsEventsCmd())
	cmd.AddCommand(newSessionsEndCmd())
	cmd.AddCommand(newSessionsRmCmd())
	cmd.AddCommand(newSessionsSearchCmd())

	return cmd
}

func newSessionsListCmd() *cobra.Command {
	var (
		filter apiclient.SessionFilter
		status string
		page   apiclient.Page
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List chat sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = domain.SessionStatus(status)
			if status != "" && !filter.Status.IsValid() {
				return fmt.Errorf("unknown status %q", status)
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			res, err := c.ListSessions(cmd.Context(), filter, page)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, res)
			}
			t := newTable(out, "ID", "Title", "Mode", "Status", "Events", "Last activity")
			for _, s := range res.Sessions {
				t.AppendRow([]any{s.ID, truncate(s.Title, 40), s.AgentMode, s.Status, s.TotalEvents, ago(s.LastActivity)})
			}
			t.Render()
			renderCount(out, len(res.Sessions), res.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.PresetID, "preset", "", "only sessions started from this preset")
	cmd.Flags().StringVar(&status, "status", "", "only sessions with this status (active, completed, error, cancelled)")
	cmd.Flags().IntVar(&page.Limit, "limit", 0, "maximum sessions (default server limit)")
	cmd.Flags().IntVar(&page.Offset, "offset", 0, "sessions to skip")
	return cmd
}

func newSessionsNewCmd() *cobra.Command {
	var (
		title    string
		presetID string
		mode     string
		servers  []string
		folder   string
	)
	cmd := &cobra.Command{
		Use:   "new [query]",
		Short: "Start a session from a query or a preset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := apiclient.NewSession{Title: title, PresetID: presetID}
			if presetID == "" {
				if len(args) == 0 {
					return fmt.Errorf("a query or --preset is required")
				}
				draft, err := buildDraft(args[0], mode, servers, folder)
				if err != nil {
					return err
				}
				in.Draft = &draft
			}

			c, err := newClient()
			if err != nil {
				return err
			}
			s, err := c.CreateSession(cmd.Context(), in)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), s)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started session %s (%s)\n", s.ID, s.AgentMode)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "session title (default derived from the query)")
	cmd.Flags().StringVar(&presetID, "preset", "", "start from this preset")
	cmd.Flags().StringVar(&mode, "mode", "", "agent mode (simple, ReAct, orchestrator, workflow)")
	cmd.Flags().StringSliceVar(&servers, "mcp", nil, "MCP server to select (repeatable)")
	cmd.Flags().StringVar(&folder, "folder", "", "workspace folder to select")
	return cmd
}

// buildDraft runs the flags through a composer so the same rules apply as
// in the UI.
func buildDraft(query, mode string, servers []string, folder string) (composer.Draft, error) {
	m, err := domain.ParseAgentMode(mode)
	if err != nil {
		return composer.Draft{}, err
	}
	c := composer.New()
	if err := c.SetMode(m); err != nil {
		return composer.Draft{}, err
	}
	c.SetQuery(query)
	c.SetServers(servers)
	if folder != "" {
		c.SelectFolder(folder)
	}
	if err := c.Validate(); err != nil {
		return composer.Draft{}, err
	}
	return c.Draft(), nil
}

func newSessionsEventsCmd() *cobra.Command {
	var (
		eventType string
		page      apiclient.Page
	)
	cmd := &cobra.Command{
		Use:   "events <id>",
		Short: "Show a session's events in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			res, err := c.Events(cmd.Context(), args[0], eventType, page)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, res)
			}
			t := newTable(out, "Time", "Type", "Data")
			for _, ev := range res.Events {
				typ := ev.Type
				if ev.IsError() {
					typ += " !"
				}
				t.AppendRow([]any{ev.Timestamp.Local().Format("15:04:05"), typ, truncate(string(ev.Data), 70)})
			}
			t.Render()
			renderCount(out, len(res.Events), res.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&eventType, "type", "", "only events of this type")
	cmd.Flags().IntVar(&page.Limit, "limit", 0, "maximum events (default server limit)")
	cmd.Flags().IntVar(&page.Offset, "offset", 0, "events to skip")
	return cmd
}

func newSessionsEndCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "end <id>",
		Short: "Mark a session finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := domain.SessionStatus(status)
			if !st.IsTerminal() {
				return fmt.Errorf("status must be completed, error or cancelled, got %q", status)
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			s, err := c.SetSessionStatus(cmd.Context(), args[0], st)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s is %s\n", s.ID, s.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", string(domain.StatusCompleted), "final status")
	return cmd
}

func newSessionsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a session and its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
			return nil
		},
	}
}

func newSessionsSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Full-text search across session events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			events, err := c.SearchEvents(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, events)
			}
			t := newTable(out, "Session", "Type", "Data")
			for _, ev := range events {
				t.AppendRow([]any{ev.SessionID, ev.Type, truncate(string(ev.Data), 70)})
			}
			t.Render()
			renderCount(out, len(events), len(events))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum events (default server limit)")
	return cmd
}
