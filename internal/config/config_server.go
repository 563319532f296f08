package config

import "time"

// ServerConfig configures the turn controller's HTTP/SSE listener.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	HTTPPort     int           `yaml:"http_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// KeepaliveInterval is how often an idle SSE stream gets a comment
	// ping to keep intermediaries from closing it.
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
}

// CheckpointConfig configures the conversation-state checkpointer.
type CheckpointConfig struct {
	// Backend selects the checkpointer implementation: "memory", "file",
	// "postgres", or "sqlite". Defaults to "memory".
	Backend string `yaml:"backend"`

	// DSN is the connection string for the "postgres"/"sqlite" backends.
	DSN string `yaml:"dsn"`

	// Directory is the root directory for the "file" backend.
	Directory string `yaml:"directory"`

	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8080
	}
	cfg.ReadTimeout = durationOrDefault(cfg.ReadTimeout, 30*time.Second)
	cfg.KeepaliveInterval = durationOrDefault(cfg.KeepaliveInterval, 25*time.Second)
}

func applyCheckpointDefaults(cfg *CheckpointConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.Directory == "" {
		cfg.Directory = "checkpoints"
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 25
	}
	cfg.ConnMaxLifetime = durationOrDefault(cfg.ConnMaxLifetime, 5*time.Minute)
}
