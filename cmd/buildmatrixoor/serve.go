package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/buildmatrixoor/pkg/api"
	"github.com/ethpandaops/buildmatrixoor/pkg/runner"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the build matrix report over HTTP",
	Long: `Start the report server. The report is regenerated in the background on
api.refresh_interval and the latest one is served from memory.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.ValidateAPI(); err != nil {
		return fmt.Errorf("validating api config: %w", err)
	}

	deps, err := runner.DepsFromConfig(log, cfg)
	if err != nil {
		return err
	}

	r, err := runner.NewRunner(log, cfg, deps)
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}

	srv, err := api.NewServer(log, &cfg.API, r, deps)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	// Set up context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}

	// Wait for shutdown signal.
	sig := <-sigCh
	log.WithField("signal", sig).Info("Shutting down API server")
	cancel()

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("stopping api server: %w", err)
	}

	return nil
}
