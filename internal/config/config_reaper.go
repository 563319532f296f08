package config

import "time"

// ReaperConfig configures the background reaper that prunes expired
// checkpoints, stale dedupe-cache entries, and finished event-bus threads.
type ReaperConfig struct {
	Enabled bool `yaml:"enabled"`

	// Cron is a robfig/cron/v3 expression controlling how often the reaper
	// runs. Takes precedence over Interval when both are set.
	Cron string `yaml:"cron"`

	// Interval is a fixed-period fallback when Cron is empty.
	Interval time.Duration `yaml:"interval"`

	// CheckpointRetention is how long a completed thread's checkpoints are
	// kept before being eligible for collection.
	CheckpointRetention time.Duration `yaml:"checkpoint_retention"`

	// CheckpointKeepVersions bounds how many of a thread's newest
	// checkpoints survive a sweep, regardless of age.
	CheckpointKeepVersions int `yaml:"checkpoint_keep_versions"`

	// EventBusIdleTimeout is how long a thread's event-bus subscriber ring
	// is kept after its last tracked activity.
	EventBusIdleTimeout time.Duration `yaml:"event_bus_idle_timeout"`
}

func applyReaperDefaults(cfg *ReaperConfig) {
	if cfg.Cron == "" && cfg.Interval == 0 {
		cfg.Interval = 10 * time.Minute
	}
	cfg.CheckpointRetention = durationOrDefault(cfg.CheckpointRetention, 7*24*time.Hour)
	cfg.EventBusIdleTimeout = durationOrDefault(cfg.EventBusIdleTimeout, 30*time.Minute)
	if cfg.CheckpointKeepVersions <= 0 {
		cfg.CheckpointKeepVersions = 50
	}
}
