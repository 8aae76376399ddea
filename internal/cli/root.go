package cli

import (
	"os"

	"github.com/soyeahso/workbench/internal/apiclient"
	"github.com/soyeahso/workbench/internal/config"
	"github.com/soyeahso/workbench/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	logLevel  string
	serverURL string
	token     string
	output    string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workbench",
		Short: "Workbench: workspace, presets and chat history for agent sessions",
		Long:  "Workbench serves the document workspace, query presets, MCP server selection and chat history behind an agent chat UI.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			if err := config.LoadDotEnv(".env", paths.DotEnv); err != nil {
				return err
			}
			log = logging.New(nil, resolveLevel(os.Getenv("WORKBENCH_LOG_LEVEL")))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.workbench/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")
	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "gateway URL (default from config)")
	cmd.PersistentFlags().StringVar(&token, "token", "", "gateway token or password (default from config)")
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newWorkspaceCmd())
	cmd.AddCommand(newPresetsCmd())
	cmd.AddCommand(newModesCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newSessionsCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// resolveLevel returns the --log-level flag, else fallback, else info.
func resolveLevel(fallback string) string {
	if logLevel != "" {
		return logLevel
	}
	if fallback != "" {
		return fallback
	}
	return "info"
}

// loadConfig reads the config file and resolves its path settings.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	paths.Fill(&cfg)
	return cfg, nil
}

// newClient builds an API client for the configured gateway. The --server
// and --token flags override the config.
func newClient() (*apiclient.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	base := serverURL
	if base == "" {
		base = cfg.GatewayURL()
	}
	secret := token
	if secret == "" {
		secret = cfg.GatewaySecret()
	}
	return apiclient.New(base, apiclient.WithToken(secret)), nil
}
