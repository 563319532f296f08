// Command weaver runs the core orchestration engine: a router, an
// agent-graph runtime with interrupts and checkpoints, a deep-research
// engine, and a tool-invocation substrate with SSE event streaming.
//
// Usage:
//
//	weaver serve --config weaver.yaml
//	weaver migrate --config weaver.yaml
//	weaver doctor --config weaver.yaml
//
// Configuration is loaded from the path given by --config (or $WEAVER_CONFIG),
// falling back to ./weaver.yaml. LLM provider credentials are read from the
// config file's provider blocks, which may themselves reference environment
// variables such as ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY, and the
// standard AWS credential chain for Bedrock.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version, commit, and date are set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "weaver",
		Short: "Weaver - agent orchestration engine",
		Long: `Weaver routes a turn through a router, an agent-graph runtime, a
deep-research engine, and a tool-invocation substrate, streaming every node's
events over SSE and checkpointing state at every node boundary.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	root.AddCommand(
		buildServeCmd(),
		buildMigrateCmd(),
		buildDoctorCmd(),
	)
	return root
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("WEAVER_CONFIG"); env != "" {
		return env
	}
	return "weaver.yaml"
}
