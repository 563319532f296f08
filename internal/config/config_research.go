package config

import "time"

// ResearchConfig configures the deep-research engine's epoch loop.
type ResearchConfig struct {
	MaxEpochs            int           `yaml:"max_epochs"`
	MaxSourcesPerEpoch   int           `yaml:"max_sources_per_epoch"`
	SearchConcurrency    int           `yaml:"search_concurrency"`
	SummarizeConcurrency int           `yaml:"summarize_concurrency"`
	DedupeTTL            time.Duration `yaml:"dedupe_ttl"`
}

func applyResearchDefaults(cfg *ResearchConfig) {
	if cfg.MaxEpochs == 0 {
		cfg.MaxEpochs = 3
	}
	if cfg.MaxSourcesPerEpoch == 0 {
		cfg.MaxSourcesPerEpoch = 8
	}
	if cfg.SearchConcurrency == 0 {
		cfg.SearchConcurrency = 5
	}
	if cfg.SummarizeConcurrency == 0 {
		cfg.SummarizeConcurrency = 3
	}
	cfg.DedupeTTL = durationOrDefault(cfg.DedupeTTL, time.Hour)
}
