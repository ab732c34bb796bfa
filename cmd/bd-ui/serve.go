package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/beads-ui/internal/bdclient"
	"github.com/steveyegge/beads-ui/internal/config"
	"github.com/steveyegge/beads-ui/internal/debug"
	"github.com/steveyegge/beads-ui/internal/gtclient"
	"github.com/steveyegge/beads-ui/internal/server"
	"github.com/steveyegge/beads-ui/internal/supervisor"
	"github.com/steveyegge/beads-ui/internal/telemetry"
	"github.com/steveyegge/beads-ui/internal/watch"
)

var (
	serveListen    string
	serveWorkspace string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard HTTP server",
	Long: `Starts the beads-ui HTTP server. All issue and agent data is fetched
on demand by running bd and gt through the process supervisor; the server
keeps no state of its own beyond request metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides config)")
	serveCmd.Flags().StringVarP(&serveWorkspace, "workspace", "w", "", "bd workspace root (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Listen = serveListen
	}
	if serveWorkspace != "" {
		cfg.Workspace = serveWorkspace
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := telemetry.Init(ctx, "bd-ui", Version); err != nil {
		// Telemetry is best-effort; the dashboard runs without it.
		fmt.Fprintf(os.Stderr, "Warning: telemetry init failed: %v\n", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		telemetry.Shutdown(shutdownCtx)
	}()

	sup := supervisor.New(supervisor.Config{
		Timeout:             cfg.Supervisor.Timeout,
		MaxConcurrent:       cfg.Supervisor.MaxConcurrent,
		BreakerThreshold:    cfg.Supervisor.BreakerThreshold,
		BreakerResetTimeout: cfg.Supervisor.BreakerResetTimeout,
		KillGrace:           cfg.Supervisor.KillGrace,
		Dir:                 cfg.Workspace,
	})
	defer sup.Close()
	runner := telemetry.WrapRunner(sup)

	var watcher *watch.Watcher
	if _, err := os.Stat(cfg.BeadsDir()); err == nil {
		watcher, err = watch.New(cfg.BeadsDir())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot watch %s: %v\n", cfg.BeadsDir(), err)
		} else {
			defer watcher.Close()
			go watcher.Start(ctx)
		}
	} else {
		debug.Logf("serve: no .beads directory at %s, change polling disabled\n", cfg.BeadsDir())
	}

	srv := server.New(cfg, Version,
		bdclient.New(runner, cfg.BDPath, cfg.Workspace),
		gtclient.New(runner, cfg.GTPath, cfg.Workspace),
		sup,
		watcher,
	)

	debug.PrintNormal("bd-ui %s listening on %s (workspace %s)\n", Version, cfg.Listen, cfg.Workspace)
	return srv.Start(ctx)
}
