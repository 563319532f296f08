package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaver-ai/weaver/internal/checkpoint"
	"github.com/weaver-ai/weaver/internal/config"
	"github.com/weaver-ai/weaver/internal/eventbus"
	"github.com/weaver-ai/weaver/internal/graph"
	"github.com/weaver-ai/weaver/internal/graph/nodes"
	"github.com/weaver-ai/weaver/internal/llm"
	"github.com/weaver-ai/weaver/internal/reaper"
	"github.com/weaver-ai/weaver/internal/research"
	"github.com/weaver-ai/weaver/internal/router"
	"github.com/weaver-ai/weaver/internal/tools"
	"github.com/weaver-ai/weaver/internal/tools/policy"
	"github.com/weaver-ai/weaver/internal/turnctl"
)

// engine is every long-lived component a "weaver serve" process owns,
// assembled from a loaded config. buildEngine is also used by "weaver
// doctor" to exercise construction (client dial, checkpoint store open)
// without starting the HTTP façade.
type engine struct {
	cfg          *config.Config
	client       llm.Client
	checkpointer checkpoint.Store
	bus          *eventbus.Bus
	registry     *tools.Registry
	executor     *tools.Executor
	resolver     *policy.Resolver
	research     *research.Engine
	router       *router.Router
	graph        *graph.Graph
	turnctl      *turnctl.Server
	reaper       *reaper.Reaper
}

func newLLMClient(ctx context.Context, cfg config.LLMConfig) (llm.Client, error) {
	provider := cfg.DefaultProvider
	if provider == "" {
		return nil, fmt.Errorf("llm.default_provider is required")
	}
	pcfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("no llm provider configured for %q", provider)
	}

	switch provider {
	case "anthropic":
		return llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:       pcfg.APIKey,
			BaseURL:      pcfg.BaseURL,
			DefaultModel: pcfg.DefaultModel,
		})
	case "openai":
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:       pcfg.APIKey,
			BaseURL:      pcfg.BaseURL,
			DefaultModel: pcfg.DefaultModel,
		})
	case "bedrock":
		return llm.NewBedrockClient(ctx, llm.BedrockConfig{
			DefaultModel: pcfg.DefaultModel,
		})
	case "gemini":
		return llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:       pcfg.APIKey,
			DefaultModel: pcfg.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

func newCheckpointStore(cfg config.CheckpointConfig) (checkpoint.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return checkpoint.NewMemoryStore(), nil
	case "file":
		return checkpoint.NewFileStore(cfg.Directory)
	case "postgres", "sqlite":
		return nil, fmt.Errorf("checkpoint backend %q requires an already-open *sql.DB; run %q first, then wire it in", cfg.Backend, "weaver migrate")
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}

func newPolicyResolver(cfg config.ApprovalConfig) *policy.Resolver {
	resolver := policy.NewResolver()
	resolver.RegisterAlias("bash", "exec")
	return resolver
}

// buildEngine wires every component from cfg but does not start any
// background loop (HTTP listener, reaper ticker) — that is Start's job.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine, error) {
	client, err := newLLMClient(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}

	checkpointer, err := newCheckpointStore(cfg.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: %w", err)
	}

	bus := eventbus.New(256, 64)

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, tools.BuiltinConfig{Workspace: "."}); err != nil {
		return nil, fmt.Errorf("register builtin tools: %w", err)
	}
	registry.Freeze()

	resolver := newPolicyResolver(cfg.Tools.Execution.Approval)
	executor := tools.NewExecutor(registry, resolver, tools.ExecConfig{
		Concurrency:    cfg.Tools.Execution.Parallelism,
		PerToolTimeout: cfg.Tools.Execution.Timeout,
		MaxAttempts:    cfg.Tools.Execution.MaxAttempts,
		RetryBackoff:   cfg.Tools.Execution.RetryBackoff,
	})

	researchEngine := research.New(research.Config{
		Client:               client,
		MaxEpochs:            cfg.Research.MaxEpochs,
		MaxSourcesPerEpoch:   cfg.Research.MaxSourcesPerEpoch,
		SearchConcurrency:    cfg.Research.SearchConcurrency,
		SummarizeConcurrency: cfg.Research.SummarizeConcurrency,
		DedupeTTL:            cfg.Research.DedupeTTL,
	})

	rt := router.New(client, router.Config{
		Model:               cfg.LLM.Routing.Classifier,
		ConfidenceThreshold: 0,
		FailureCooldown:     cfg.LLM.Routing.UnhealthyCooldown,
	}, bus)

	g := graph.New(graph.Config{Checkpointer: checkpointer, Bus: bus})
	nodes.Build(g, nodes.Config{
		Router:            rt,
		Client:            client,
		Registry:          registry,
		Executor:          executor,
		Research:          researchEngine,
		Bus:               bus,
		MaxToolIterations: cfg.Tools.Execution.MaxIterations,
		ContextPruning:    config.EffectiveContextPruningSettings(cfg.ContextPruning),
	})

	srv := turnctl.New(cfg.Server, turnctl.Deps{
		Graph:        g,
		Checkpointer: checkpointer,
		Bus:          bus,
		Logger:       logger,
	})

	rp, err := reaper.New(cfg.Reaper, checkpointer, bus, reaper.ThreadSourceFunc(srv.ThreadIDs), reaper.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("reaper: %w", err)
	}

	return &engine{
		cfg:          cfg,
		client:       client,
		checkpointer: checkpointer,
		bus:          bus,
		registry:     registry,
		executor:     executor,
		resolver:     resolver,
		research:     researchEngine,
		router:       rt,
		graph:        g,
		turnctl:      srv,
		reaper:       rp,
	}, nil
}

func (e *engine) Start(ctx context.Context) error {
	if err := e.turnctl.Start(ctx); err != nil {
		return err
	}
	return e.reaper.Start(ctx)
}

func (e *engine) Stop(ctx context.Context) error {
	if err := e.reaper.Stop(ctx); err != nil {
		return err
	}
	return e.turnctl.Stop(ctx)
}
