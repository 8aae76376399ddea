package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soyeahso/workbench/internal/config"
	"github.com/soyeahso/workbench/internal/gateway"
	"github.com/soyeahso/workbench/internal/hooks"
	"github.com/soyeahso/workbench/internal/logging"
	"github.com/soyeahso/workbench/internal/mcpservers"
	"github.com/soyeahso/workbench/internal/plugin"
	"github.com/soyeahso/workbench/internal/store"
	"github.com/soyeahso/workbench/internal/telemetry"
	"github.com/soyeahso/workbench/internal/workspace"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// lockSweepInterval is how often stale workspace write locks are dropped.
const lockSweepInterval = time.Minute

func newServeCmd() *cobra.Command {
	var (
		port    int
		bind    string
		docsDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if docsDir != "" {
				cfg.Workspace.DocsDir = docsDir
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			logger, closer, err := logging.Open(logging.Options{
				Level: resolveLevel(cfg.Logging.Level),
				Style: cfg.Logging.ConsoleStyle,
				File:  cfg.Logging.File,
			})
			if err != nil {
				return fmt.Errorf("opening log file: %w", err)
			}
			defer closer.Close()
			log = logger

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			// Load raw config for RPC access
			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				raw = make(map[string]any)
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, log)
			if err != nil {
				return err
			}
			defer shutdownTracing(context.Background())

			ws, err := workspace.New(cfg.Workspace.DocsDir, log,
				workspace.WithMaxUploadBytes(cfg.Workspace.MaxUploadBytes),
				workspace.WithLockTimeout(time.Duration(cfg.Workspace.LockTimeoutSeconds)*time.Second),
			)
			if err != nil {
				return fmt.Errorf("opening workspace: %w", err)
			}

			db, err := store.Open(cfg.Store.Path, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()
			presets := store.NewPresetStore(db)
			chats := store.NewChatStore(db)
			versions := store.NewVersionStore(db, store.DefaultKeepVersions)

			mcp := mcpservers.New(cfg.MCP.ConfigPath, log)
			if err := mcp.Load(); err != nil {
				return fmt.Errorf("loading MCP servers: %w", err)
			}

			hookMgr := hooks.NewManager(log)

			pluginReg := plugin.NewRegistry(hookMgr, cfg, plugin.Backends{
				Workspace: ws,
				Presets:   presets,
				Chats:     chats,
				MCP:       mcp,
			}, log)
			for _, p := range plugin.Builtins() {
				if err := pluginReg.Register(p); err != nil {
					return err
				}
			}
			if err := pluginReg.InitAll(ctx); err != nil {
				return fmt.Errorf("initializing plugins: %w", err)
			}
			defer pluginReg.CloseAll()

			srv := gateway.New(cfg, log,
				gateway.WithConfigRaw(raw),
				gateway.WithHooks(hookMgr),
				gateway.WithWorkspace(ws),
				gateway.WithPresets(presets),
				gateway.WithChats(chats),
				gateway.WithVersions(versions),
				gateway.WithMCPServers(mcp),
				gateway.WithPlugins(pluginReg),
			)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Start(gctx) })
			g.Go(func() error {
				sweepLocks(gctx, ws.Locks(), lockSweepInterval, log)
				return nil
			})
			g.Go(func() error {
				reloadOnHangup(gctx, mcp, log)
				return nil
			})
			return g.Wait()
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")
	cmd.Flags().StringVar(&docsDir, "docs-dir", "", "override the workspace directory")

	return cmd
}

// sweepLocks drops stale write locks until ctx is done.
func sweepLocks(ctx context.Context, locks *workspace.LockManager, every time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := locks.CleanupStale(); n > 0 {
				log.Debug().Int("count", n).Msg("dropped stale workspace locks")
			}
		}
	}
}

// reloadOnHangup rereads the MCP server files on SIGHUP.
func reloadOnHangup(ctx context.Context, mcp *mcpservers.Registry, log *logging.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := mcp.Reload(); err != nil {
				log.Error().Err(err).Msg("reloading MCP servers")
				continue
			}
			log.Info().Int("servers", len(mcp.Names())).Msg("MCP servers reloaded")
		}
	}
}
