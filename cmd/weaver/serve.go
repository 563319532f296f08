package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/weaver-ai/weaver/internal/config"
)

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the turn controller, event bus, and background reapers",
		Long: `Start the Weaver gateway: the HTTP turn controller (chat, events,
interrupt/resume, and session-version endpoints), its graph runtime, and the
background reaper that prunes checkpoint history and forgets idle event-bus
threads.

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	slog.Info("starting weaver", "version", version, "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("configuration loaded",
		"http_port", cfg.Server.HTTPPort,
		"llm_provider", cfg.LLM.DefaultProvider,
		"checkpoint_backend", cfg.Checkpoint.Backend,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng, err := buildEngine(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	slog.Info("weaver started", "http_addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort))

	<-ctx.Done()
	slog.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := eng.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("weaver stopped gracefully")
	return nil
}
