package config

import "time"

// ToolsConfig configures the tool registry, execution, and policy layers.
type ToolsConfig struct {
	WebSearch WebSearchConfig `yaml:"websearch"`
	WebFetch  WebFetchConfig  `yaml:"web_fetch"`

	Execution ToolExecutionConfig `yaml:"execution"`
	Jobs      ToolJobsConfig      `yaml:"jobs"`
}

// ToolExecutionConfig controls runtime tool execution behavior.
type ToolExecutionConfig struct {
	Parallelism     int            `yaml:"parallelism"`
	Timeout         time.Duration  `yaml:"timeout"`
	MaxAttempts     int            `yaml:"max_attempts"`
	RetryBackoff    time.Duration  `yaml:"retry_backoff"`
	MaxIterations   int            `yaml:"max_iterations"`
	RequireApproval []string       `yaml:"require_approval"`
	Approval        ApprovalConfig `yaml:"approval"`
}

// ApprovalConfig controls tool approval behavior.
type ApprovalConfig struct {
	// Profile is a pre-configured tool access level.
	// Valid profiles: "coding", "messaging", "readonly", "full", "minimal".
	Profile string `yaml:"profile"`

	// Allowlist contains tools that are always allowed (no approval needed).
	// Supports patterns like "mcp:*", "read_*", "*" (all), and group
	// references like "group:web", "group:builtin".
	Allowlist []string `yaml:"allowlist"`

	// Denylist contains tools that are always denied. Supports the same
	// patterns and group references as Allowlist.
	Denylist []string `yaml:"denylist"`

	// DefaultDecision when no rule matches: "allowed", "denied", or "pending".
	DefaultDecision string `yaml:"default_decision"`

	// RequestTTL is how long a suspended approval request remains valid
	// before the interrupt is treated as abandoned.
	RequestTTL time.Duration `yaml:"request_ttl"`
}

type WebSearchConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Provider    string `yaml:"provider"`
	URL         string `yaml:"url"`
	BraveAPIKey string `yaml:"brave_api_key"`
}

type WebFetchConfig struct {
	Enabled  bool `yaml:"enabled"`
	MaxChars int  `yaml:"max_chars"`
}

// ToolJobsConfig controls async tool job persistence.
type ToolJobsConfig struct {
	Retention     time.Duration `yaml:"retention"`
	PruneInterval time.Duration `yaml:"prune_interval"`
}

func applyToolsDefaults(cfg *ToolsConfig) {
	if cfg == nil {
		return
	}
	if cfg.Execution.Parallelism == 0 {
		cfg.Execution.Parallelism = 4
	}
	cfg.Execution.Timeout = durationOrDefault(cfg.Execution.Timeout, 30*time.Second)
	if cfg.Execution.MaxAttempts == 0 {
		cfg.Execution.MaxAttempts = 2
	}
	cfg.Execution.RetryBackoff = durationOrDefault(cfg.Execution.RetryBackoff, 500*time.Millisecond)
	if cfg.Execution.MaxIterations == 0 {
		cfg.Execution.MaxIterations = 10
	}
	cfg.Execution.Approval.RequestTTL = durationOrDefault(cfg.Execution.Approval.RequestTTL, 15*time.Minute)

	cfg.Jobs.Retention = durationOrDefault(cfg.Jobs.Retention, 24*time.Hour)
	cfg.Jobs.PruneInterval = durationOrDefault(cfg.Jobs.PruneInterval, time.Hour)
}
