package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/weaver-ai/weaver/internal/config"
)

func buildDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check connectivity to the configured LLM provider and checkpoint store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), resolveConfigPath(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func runDoctor(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Printf("config: ok (%s)\n", configPath)

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := newLLMClient(ctx, cfg.LLM)
	if err != nil {
		fmt.Printf("llm provider %q: FAILED (%v)\n", cfg.LLM.DefaultProvider, err)
	} else {
		_ = client
		fmt.Printf("llm provider %q: ok\n", cfg.LLM.DefaultProvider)
	}

	checkpointer, err := newCheckpointStore(cfg.Checkpoint)
	if err != nil {
		fmt.Printf("checkpoint backend %q: FAILED (%v)\n", cfg.Checkpoint.Backend, err)
		return err
	}
	if _, err := checkpointer.List(ctx, "doctor-probe", 1); err != nil {
		fmt.Printf("checkpoint backend %q: FAILED (%v)\n", cfg.Checkpoint.Backend, err)
		return err
	}
	fmt.Printf("checkpoint backend %q: ok\n", cfg.Checkpoint.Backend)

	slog.Info("doctor checks complete")
	return nil
}
