// codegate-server is the agent execution gateway: an HTTP server that
// translates OpenAI-style chat and responses requests into supervised runs
// of the coding-agent CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"codegate/internal/agentexec"
	"codegate/internal/config"
	"codegate/internal/gateway"
	"codegate/internal/history"
	"codegate/internal/logging"
	"codegate/internal/observability"
	"codegate/internal/server/httpapi"
	"codegate/internal/workspace"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// workspaceMaxAge is how long an abandoned workspace survives before the
// startup sweep collects it.
const workspaceMaxAge = 24 * time.Hour

func main() {
	root := &cobra.Command{
		Use:           "codegate-server",
		Short:         "HTTP gateway in front of the coding-agent CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the codegate-server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("codegate-server", version)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := logging.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	logger := logging.NewComponentLogger("main")
	logger.Info("starting codegate-server model=%s listen=%s", cfg.Model, cfg.ListenAddr)

	supervisor := agentexec.New(agentexec.Config{
		Binary:      cfg.AgentBinary,
		InstallPath: cfg.AgentInstallPath,
		Model:       cfg.Model,
		APIKey:      cfg.AgentAPIKey,
	})
	if err := supervisor.Ready(); err != nil {
		logger.Warn("agent binary not resolvable yet: %v", err)
	}

	spaces := workspace.NewManager(cfg.WorkspaceRoot)
	spaces.Sweep(workspaceMaxAge)

	var store *history.Store
	if cfg.HistoryPath != "" {
		store, err = history.Open(cfg.HistoryPath)
		if err != nil {
			logger.Warn("history disabled: %v", err)
		} else {
			defer func() { _ = store.Close() }()
		}
	}

	metrics, err := observability.NewMetricsCollector(observability.MetricsConfig{Enabled: cfg.MetricsEnabled})
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	svc := gateway.New(cfg, supervisor, spaces, store, metrics)
	server := httpapi.New(cfg, svc, metrics)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
