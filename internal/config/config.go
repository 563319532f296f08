package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/weaver-ai/weaver/internal/mcp"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the orchestration engine.
type Config struct {
	Version int `yaml:"version"`

	Server     ServerConfig     `yaml:"server"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`

	LLM      LLMConfig      `yaml:"llm"`
	Tools    ToolsConfig    `yaml:"tools"`
	Research ResearchConfig `yaml:"research"`
	Reaper   ReaperConfig   `yaml:"reaper"`
	MCP      mcp.Config     `yaml:"mcp"`

	// ContextPruning controls agent_node's tool-result pruning. Nil/zero
	// value (Mode "off") disables pruning and agent_node keeps full history.
	ContextPruning ContextPruningConfig `yaml:"context_pruning"`

	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`

	Watch bool `yaml:"watch"`
}

// Load reads and parses the configuration file at path, resolving $include
// directives, applying env overrides and defaults, then validating the
// result.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile reads a single YAML file with no $include resolution, matching
// the teacher's original strict single-document decode. Prefer Load for
// anything that might reference $include.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	applyServerDefaults(&cfg.Server)
	applyCheckpointDefaults(&cfg.Checkpoint)
	applyLLMDefaults(&cfg.LLM)
	applyToolsDefaults(&cfg.Tools)
	applyResearchDefaults(&cfg.Research)
	applyReaperDefaults(&cfg.Reaper)
	applyLoggingDefaults(&cfg.Logging)
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if value := strings.TrimSpace(os.Getenv("WEAVER_HOST")); value != "" {
		cfg.Server.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("WEAVER_HTTP_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.HTTPPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("DATABASE_URL")); value != "" {
		cfg.Checkpoint.DSN = value
	}
	if value := strings.TrimSpace(os.Getenv("LOG_LEVEL")); value != "" {
		cfg.Logging.Level = value
	}
	if value := strings.TrimSpace(os.Getenv("LOG_FORMAT")); value != "" {
		cfg.Logging.Format = value
	}
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); value != "" {
		cfg.Observability.Tracing.Enabled = true
		cfg.Observability.Tracing.Endpoint = value
	}
	if value := strings.TrimSpace(os.Getenv("CONFIG_WATCH")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			cfg.Watch = parsed
		}
	}
}

type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if err := ValidateVersion(cfg.Version); err != nil {
		issues = append(issues, err.Error())
	}

	if cfg.Server.HTTPPort < 0 || cfg.Server.HTTPPort > 65535 {
		issues = append(issues, "server.http_port must be between 0 and 65535")
	}

	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	if defaultProvider != "" {
		if _, ok := cfg.LLM.Providers[defaultProvider]; !ok {
			if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
				issues = append(issues, fmt.Sprintf("llm.providers missing entry for default_provider %q", cfg.LLM.DefaultProvider))
			}
		}
	}

	if backend := strings.ToLower(strings.TrimSpace(cfg.Checkpoint.Backend)); backend != "" {
		switch backend {
		case "memory", "file", "postgres", "sqlite":
		default:
			issues = append(issues, "checkpoint.backend must be \"memory\", \"file\", \"postgres\", or \"sqlite\"")
		}
	}

	if provider := strings.ToLower(strings.TrimSpace(cfg.Tools.WebSearch.Provider)); provider != "" {
		switch provider {
		case "searxng", "brave", "duckduckgo":
		default:
			issues = append(issues, "tools.websearch.provider must be \"searxng\", \"brave\", or \"duckduckgo\"")
		}
	}
	if cfg.Tools.Execution.MaxIterations < 0 {
		issues = append(issues, "tools.execution.max_iterations must be >= 0")
	}
	if cfg.Tools.Execution.Parallelism < 0 {
		issues = append(issues, "tools.execution.parallelism must be >= 0")
	}
	if profile := strings.ToLower(strings.TrimSpace(cfg.Tools.Execution.Approval.Profile)); profile != "" {
		switch profile {
		case "coding", "messaging", "readonly", "full", "minimal":
		default:
			issues = append(issues, "tools.execution.approval.profile must be \"coding\", \"messaging\", \"readonly\", \"full\", or \"minimal\"")
		}
	}

	if cfg.Research.MaxEpochs < 1 {
		issues = append(issues, "research.max_epochs must be >= 1")
	}
	if cfg.Research.MaxSourcesPerEpoch < 1 {
		issues = append(issues, "research.max_sources_per_epoch must be >= 1")
	}

	if pluginIssues := pluginValidationIssues(cfg); len(pluginIssues) > 0 {
		issues = append(issues, pluginIssues...)
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}

	return nil
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

// durationOrDefault returns d if non-zero, else fallback. Shared by the
// per-section default functions in the other config_*.go files.
func durationOrDefault(d, fallback time.Duration) time.Duration {
	if d == 0 {
		return fallback
	}
	return d
}
