package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/soyeahso/workbench/internal/apiclient"
	"github.com/soyeahso/workbench/internal/config"
	"github.com/soyeahso/workbench/internal/version"
	"github.com/spf13/cobra"
)

type statusReport struct {
	Build     version.Build `json:"build"`
	Config    string        `json:"config"`
	Data      string        `json:"data"`
	Logs      string        `json:"logs"`
	Gateway   string        `json:"gateway"`
	Workspace string        `json:"workspace"`
	Watch     bool          `json:"watch"`
	Store     string        `json:"store"`
	MCP       string        `json:"mcp"`
	Tracing   string        `json:"tracing,omitempty"`
	Server    serverStatus  `json:"server"`
	Issues    []string      `json:"issues,omitempty"`
}

type serverStatus struct {
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	Auth      string `json:"auth,omitempty"` // accepted | rejected
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show paths, configuration and whether the server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			c, err := newClient()
			if err != nil {
				return err
			}

			r := statusReport{
				Build:     version.Get(),
				Config:    paths.Config,
				Data:      paths.Data,
				Logs:      paths.Logs,
				Gateway:   fmt.Sprintf("port=%d bind=%s auth=%s tls=%v", cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode, cfg.Gateway.TLS.Enabled),
				Workspace: cfg.Workspace.DocsDir,
				Watch:     cfg.Workspace.WatchEnabled(),
				Store:     cfg.Store.Path,
				MCP:       cfg.MCP.ConfigPath,
				Tracing:   cfg.Telemetry.OTLPEndpoint,
				Server:    checkServer(cmd, c),
			}
			for _, issue := range config.Validate(&cfg) {
				r.Issues = append(r.Issues, issue.String())
			}

			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), r)
			}
			printStatus(cmd.OutOrStdout(), r)
			return nil
		},
	}
}

// checkServer checks liveness, then whether our credential is accepted.
func checkServer(cmd *cobra.Command, c *apiclient.Client) serverStatus {
	st := serverStatus{URL: c.BaseURL()}
	if _, err := c.Health(cmd.Context()); err != nil {
		log.Debug().Err(err).Str("url", st.URL).Msg("health check failed")
		return st
	}
	st.Reachable = true

	_, err := c.ListModes(cmd.Context())
	var ae *apiclient.APIError
	switch {
	case err == nil:
		st.Auth = "accepted"
	case errors.As(err, &ae) && ae.Status == http.StatusUnauthorized:
		st.Auth = "rejected"
	}
	return st
}

func printStatus(w io.Writer, r statusReport) {
	fmt.Fprintln(w, version.Info())
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Config:    %s\n", r.Config)
	fmt.Fprintf(w, "Data:      %s\n", r.Data)
	fmt.Fprintf(w, "Logs:      %s\n", r.Logs)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Gateway:   %s\n", r.Gateway)
	fmt.Fprintf(w, "Workspace: %s (watch=%v)\n", r.Workspace, r.Watch)
	fmt.Fprintf(w, "Store:     %s\n", r.Store)
	fmt.Fprintf(w, "MCP:       %s\n", r.MCP)
	if r.Tracing != "" {
		fmt.Fprintf(w, "Tracing:   %s\n", r.Tracing)
	}

	if !r.Server.Reachable {
		fmt.Fprintf(w, "Server:    not reachable at %s\n", r.Server.URL)
	} else {
		fmt.Fprintf(w, "Server:    ok at %s (credential %s)\n", r.Server.URL, orDash(r.Server.Auth))
	}

	if len(r.Issues) > 0 {
		fmt.Fprintf(w, "\nValidation issues (%d):\n", len(r.Issues))
		for _, issue := range r.Issues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	}
}
